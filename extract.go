// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// now is a function point that returns time.Now to the caller.
var now = time.Now

// Extract extracts all file entries of src into the directory dst and reports
// progress to sink, which may be nil. A nil cfg uses the default [Config].
//
// Directory entries are skipped, missing parent directories are created for
// every file. An entry whose path would resolve outside of dst aborts the
// extraction. Entries that fail to extract are logged and skipped unless
// [WithContinueOnEntryError] is disabled. All errors returned are of type
// [*Error].
//
// The sink receives a 0% snapshot before the first entry is read and a 100%
// snapshot after the archive was closed. On failure a 0% snapshot is sent
// instead. On success dst is returned.
func Extract(ctx context.Context, src Source, dst string, sink ProgressSink, cfg *Config) (string, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry capturing
	td := &TelemetryData{ID: uuid.NewString(), InputSize: -1}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	var name string
	if src != nil {
		name = src.String()
	}
	progress := NewProgressTracker(0, name, sink)
	progress.logger = cfg.Logger()

	if err := extract(ctx, src, dst, cfg, progress, td); err != nil {
		td.ExtractionFailed = true
		td.LastExtractionError = err
		cfg.Logger().Error("extraction failed", "source", name, "error", err)
		progress.Reset()
		return "", err
	}

	progress.Finish()
	cfg.Logger().Info("extraction finished", "source", name, "files", td.ExtractedFiles, "errors", td.ExtractionErrors)
	return dst, nil
}

// Result is the outcome of an extraction started with [ExtractAsync].
type Result struct {
	// Path is the destination on success
	Path string

	// Err is the error returned by [Extract]
	Err error
}

// ExtractAsync runs [Extract] on its own goroutine. The returned channel
// delivers exactly one [Result] and is closed afterwards. The sink is called
// on that goroutine.
func ExtractAsync(ctx context.Context, src Source, dst string, sink ProgressSink, cfg *Config) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		path, err := Extract(ctx, src, dst, sink, cfg)
		ch <- Result{Path: path, Err: err}
	}()
	return ch
}

// extract walks the entries of src and writes all files below dst.
func extract(ctx context.Context, src Source, dst string, cfg *Config, progress *ProgressTracker, td *TelemetryData) error {
	if src == nil {
		return newError(KindSourceUnreadable, "", fmt.Errorf("no source"))
	}
	if err := ctx.Err(); err != nil {
		return newError(KindCanceled, src.String(), err)
	}

	// open archive
	walker, err := src.open(cfg)
	if err != nil {
		return newError(KindSourceUnreadable, src.String(), err)
	}
	defer func() {
		if err := walker.Close(); err != nil {
			cfg.Logger().Warn("cannot close archive", "source", src.String(), "error", err)
		}
	}()
	td.ExtractedType = walker.Type()
	td.InputSize = walker.InputSize()

	t := cfg.Target()
	root, err := prepareDestination(t, dst, cfg)
	if err != nil {
		return err
	}

	// estimate progress denominator
	td.EstimatedSize = walker.TotalSize()
	progress.SetTotal(td.EstimatedSize)
	progress.Start()

	cfg.Logger().Info("start extraction", "type", walker.Type(), "source", src.String(), "destination", root, "total", td.EstimatedSize)
	buf := make([]byte, cfg.BufferSize())

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return newError(KindCanceled, src.String(), err)
		}

		entry, err := walker.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return newError(KindSourceUnreadable, src.String(), err)
		}

		if entry.IsDir() {
			td.SkippedDirs++
			cfg.Logger().Debug("skip directory", "name", entry.Name())
			continue
		}

		// a single traversal attempt means the archive is compromised
		path, err := validatePath(t, root, entry.Name())
		if err != nil {
			cfg.Logger().Error("path traversal detected", "name", entry.Name(), "error", err)
			return err
		}

		progress.SetLabel(walker.Label(entry))
		n, err := extractEntry(ctx, t, entry, path, buf, cfg, progress, td.ExtractionSize)
		td.ExtractionSize += n
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return newError(KindCanceled, path, ctxErr)
			}
			if err := handleError(cfg, td, path, err); err != nil {
				return err
			}
			continue
		}

		td.ExtractedFiles++
		cfg.Logger().Debug("extracted file", "path", path, "size", n)
	}
}

// extractEntry writes the content of entry to path. extracted is the number
// of bytes written by previous entries.
func extractEntry(ctx context.Context, t Target, entry archiveEntry, path string, buf []byte, cfg *Config, progress *ProgressTracker, extracted int64) (int64, error) {
	if err := t.CreateDir(filepath.Dir(path), cfg.CustomCreateDirMode()); err != nil {
		return 0, fmt.Errorf("cannot create directory: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, fmt.Errorf("cannot open entry: %w", err)
	}
	defer rc.Close()

	f, err := t.CreateFile(path, cfg.CustomDecompressFileMode(), cfg.Overwrite())
	if err != nil {
		return 0, fmt.Errorf("cannot create file: %w", err)
	}

	remaining := cfg.remainingExtractionSize(extracted)
	n, err := copyWithProgress(ctx, limitWriter(f, remaining), rc, buf, progress.Advance)
	cerr := f.Close()

	switch {
	case err != nil && remaining >= 0 && errors.Is(err, io.ErrShortWrite):
		return n, fmt.Errorf("maximum extraction size of %d bytes exceeded", cfg.MaxExtractionSize())
	case err != nil:
		return n, fmt.Errorf("cannot write file: %w", err)
	case cerr != nil:
		return n, fmt.Errorf("cannot close file: %w", cerr)
	}

	if mtime := entry.ModTime(); cfg.PreserveFileTimes() && !mtime.IsZero() {
		if err := t.Chtimes(path, mtime, mtime); err != nil {
			return n, fmt.Errorf("cannot set file times: %w", err)
		}
	}
	return n, nil
}

// prepareDestination creates dst if needed and returns its canonical form.
func prepareDestination(t Target, dst string, cfg *Config) (string, error) {
	abs, err := filepath.Abs(dst)
	if err != nil {
		return "", newError(KindDestinationUnwritable, dst, err)
	}

	if _, err := t.Lstat(abs); err != nil {
		if !os.IsNotExist(err) {
			return "", newError(KindDestinationUnwritable, abs, err)
		}
		if !cfg.CreateDestination() {
			return "", newError(KindDestinationUnwritable, abs, fmt.Errorf("destination does not exist"))
		}
		if err := t.CreateDir(abs, cfg.CustomCreateDirMode()); err != nil {
			return "", newError(KindDestinationUnwritable, abs, err)
		}
		cfg.Logger().Info("created destination directory", "path", abs)
	}

	root, err := t.EvalSymlinks(abs)
	if err != nil {
		return "", newError(KindDestinationUnwritable, abs, err)
	}

	stat, err := t.Lstat(root)
	if err != nil {
		return "", newError(KindDestinationUnwritable, root, err)
	}
	if !stat.IsDir() {
		return "", newError(KindDestinationUnwritable, root, fmt.Errorf("not a directory"))
	}

	return root, nil
}

// handleError counts and logs an entry that could not be extracted. It
// returns an error if the extraction should end.
func handleError(cfg *Config, td *TelemetryData, path string, err error) error {

	// increase error counter and set error
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", path, err)

	// do not end on error
	if cfg.ContinueOnEntryError() {
		cfg.Logger().Error("cannot extract entry", "path", path, "error", err)
		return nil
	}

	// end extraction on error
	return newError(KindEntryIOFailure, path, err)
}
