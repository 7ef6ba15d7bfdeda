// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/hashicorp/go-unzip"
	"github.com/hashicorp/go-unzip/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// CLI are the cli parameters for the unzip binary
type CLI struct {
	Archives          []string         `arg:"" name:"archive" help:"Path to zip archive. (\"-\" for STDIN)"`
	Charset           string           `optional:"" help:"Charset of entry names that are not flagged as UTF-8, e.g. Shift_JIS."`
	Config            kong.ConfigFlag  `short:"c" optional:"" help:"Load flag defaults from a YAML file."`
	Destination       string           `short:"d" default:"." help:"Output directory. Created if it does not exist."`
	MaxExtractionSize int64            `optional:"" default:"-1" help:"Maximum extraction size that is allowed (in bytes). (disable check: -1)"`
	MaxInputSize      int64            `optional:"" default:"-1" help:"Maximum archive size that is read (in bytes). (disable check: -1)"`
	Metrics           bool             `short:"M" optional:"" default:"false" help:"Print telemetry data to log after extraction."`
	MetricsFile       string           `optional:"" help:"Write prometheus metrics in text format to this file."`
	NoOverwrite       bool             `optional:"" help:"Fail on existing files instead of overwriting them."`
	NoProgress        bool             `optional:"" help:"Do not show a progress bar."`
	Parallel          int              `short:"P" default:"4" help:"Number of archives that are extracted concurrently."`
	PreserveTimes     bool             `short:"t" optional:"" help:"Set the modification time stored in the archive on extracted files."`
	Stream            bool             `short:"s" optional:"" help:"Read archives in a single pass instead of with random access."`
	Strict            bool             `short:"S" optional:"" help:"Abort the extraction if a single entry cannot be extracted."`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// exit codes per error kind
const (
	exitOK                    = 0
	exitFailure               = 1
	exitSourceUnreadable      = 2
	exitDestinationUnwritable = 3
	exitTraversalDetected     = 4
	exitEntryIOFailure        = 5
	exitCanceled              = 130
)

// Run the entrypoint into go-unzip as a cli tool
func Run(version, commit, date string) {
	var cli CLI
	kong.Parse(&cli,
		kong.Description("A zip extraction utility with progress reporting and path traversal protection"),
		kong.UsageOnError(),
		kong.Configuration(yamlConfig),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date),
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(os.Stderr, cli.Verbose, cli.Metrics)
	if err := cli.run(ctx, logger, os.Stderr); err != nil {
		logger.Error("extraction failed", "error", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// newLogger creates a slog logger that writes with charmbracelet/log to out
func newLogger(out io.Writer, verbose bool, metrics bool) *slog.Logger {
	level := charmlog.ErrorLevel
	switch {
	case verbose:
		level = charmlog.DebugLevel
	case metrics:
		level = charmlog.InfoLevel
	}
	return slog.New(charmlog.NewWithOptions(out, charmlog.Options{
		Level:           level,
		Prefix:          "unzip",
		ReportTimestamp: verbose,
	}))
}

// run extracts all archives of the cli
func (c *CLI) run(ctx context.Context, logger *slog.Logger, progressOut io.Writer) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	telemetryHook := func(ctx context.Context, td *unzip.TelemetryData) {
		collector.Hook(ctx, td)
		if c.Metrics {
			logger.Info("extraction finished", "telemetry", td)
		}
	}

	cfg := unzip.NewConfig(
		unzip.WithCharset(c.Charset),
		unzip.WithContinueOnEntryError(!c.Strict),
		unzip.WithLogger(logger),
		unzip.WithMaxExtractionSize(c.MaxExtractionSize),
		unzip.WithMaxInputSize(c.MaxInputSize),
		unzip.WithOverwrite(!c.NoOverwrite),
		unzip.WithPreserveFileTimes(c.PreserveTimes),
		unzip.WithTelemetryHook(telemetryHook),
	)

	var err error
	if len(c.Archives) == 1 {
		err = c.extractOne(ctx, c.Archives[0], cfg, progressOut)
	} else {
		err = c.extractAll(ctx, logger, cfg)
	}

	if len(c.MetricsFile) > 0 {
		if werr := prometheus.WriteToTextfile(c.MetricsFile, reg); werr != nil {
			logger.Error("cannot write metrics file", "path", c.MetricsFile, "error", werr)
		}
	}

	return err
}

// extractOne extracts a single archive into the destination and shows the
// progress as bar
func (c *CLI) extractOne(ctx context.Context, archive string, cfg *unzip.Config, progressOut io.Writer) error {
	src, err := c.source(archive)
	if err != nil {
		return err
	}

	var sink unzip.ProgressSink
	var bar *progressbar.ProgressBar
	if !c.NoProgress {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(progressOut),
			progressbar.OptionSetDescription(src.String()),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(progressOut)
			}),
		)
		sink = func(p unzip.Progress) {
			_ = bar.Set(p.Percent())
		}
	}

	res := <-unzip.ExtractAsync(ctx, src, c.Destination, sink, cfg)
	if bar != nil {
		if res.Err != nil {
			_ = bar.Exit()
		} else {
			_ = bar.Finish()
		}
	}
	if res.Err != nil {
		return errors.Wrapf(res.Err, "cannot extract %s", archive)
	}
	return nil
}

// extractAll extracts every archive into its own directory below the
// destination. The first failure cancels all other extractions.
func (c *CLI) extractAll(ctx context.Context, logger *slog.Logger, cfg *unzip.Config) error {
	g, ctx := errgroup.WithContext(ctx)
	if c.Parallel > 0 {
		g.SetLimit(c.Parallel)
	}

	for _, archive := range c.Archives {
		archive := archive
		g.Go(func() error {
			src, err := c.source(archive)
			if err != nil {
				return err
			}

			sink := func(p unzip.Progress) {
				logger.Debug("progress", "archive", archive, "percent", p.Percent(), "label", p.Label)
			}

			dst := filepath.Join(c.Destination, archiveDirName(archive))
			if _, err := unzip.Extract(ctx, src, dst, sink, cfg); err != nil {
				return errors.Wrapf(err, "cannot extract %s", archive)
			}
			return nil
		})
	}

	return g.Wait()
}

// source returns the source for archive
func (c *CLI) source(archive string) (unzip.Source, error) {
	if len(archive) == 0 {
		return nil, errors.New("empty archive path")
	}
	if archive == "-" {
		return &unzip.StreamSource{Name: "stdin", Reader: os.Stdin}, nil
	}
	if c.Stream {
		return unzip.AssetSource{FS: os.DirFS(filepath.Dir(archive)), Name: filepath.Base(archive)}, nil
	}
	return unzip.FileSource{Path: archive}, nil
}

// archiveDirName returns the base name of archive without extension
func archiveDirName(archive string) string {
	if archive == "-" {
		return "stdin"
	}
	base := filepath.Base(archive)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); len(name) > 0 {
		return name
	}
	return base
}

// exitCode maps err to the exit code of the binary
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var e *unzip.Error
	if !errors.As(err, &e) {
		return exitFailure
	}

	switch e.Kind {
	case unzip.KindSourceUnreadable:
		return exitSourceUnreadable
	case unzip.KindDestinationUnwritable:
		return exitDestinationUnwritable
	case unzip.KindTraversalDetected:
		return exitTraversalDetected
	case unzip.KindEntryIOFailure:
		return exitEntryIOFailure
	case unzip.KindCanceled:
		return exitCanceled
	default:
		return exitFailure
	}
}
