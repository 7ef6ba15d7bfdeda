// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"fmt"
	"io"
	"io/fs"
)

// Source is an archive that can be extracted. It is implemented by
// [FileSource], [StreamSource] and [AssetSource].
type Source interface {
	fmt.Stringer

	// open opens the archive and returns a walker over its entries
	open(cfg *Config) (archiveWalker, error)
}

// FileSource is a zip archive on durable storage. It is read with random
// access, so the total uncompressed size is known before extraction starts.
type FileSource struct {
	Path string
}

// String returns the path of the archive.
func (s FileSource) String() string {
	return s.Path
}

func (s FileSource) open(cfg *Config) (archiveWalker, error) {
	w, err := openZipFile(s.Path, cfg)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// StreamSource is a zip archive that is read in a single forward pass.
//
// Size is the compressed length of the stream if known and is used as the
// progress denominator. Decompressed content is usually larger than that, so
// progress may report 100% before the stream is fully drained. If Reader
// implements [io.Closer], it is closed when the extraction returns.
type StreamSource struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// String returns the name of the stream.
func (s *StreamSource) String() string {
	return s.Name
}

func (s *StreamSource) open(cfg *Config) (archiveWalker, error) {
	if s.Reader == nil {
		return nil, fmt.Errorf("stream %q has no reader", s.Name)
	}
	var closer io.Closer
	if c, ok := s.Reader.(io.Closer); ok {
		closer = c
	}
	return newZipStreamWalker(limitReader(s.Reader, cfg.MaxInputSize()), closer, s.Name, s.Size, cfg)
}

// AssetSource is a zip archive embedded as a resource, e.g. in an [embed.FS].
// The asset is opened when the extraction starts and read as a stream. Its
// size, as reported by Stat, is the progress denominator.
type AssetSource struct {
	FS   fs.FS
	Name string
}

// String returns the name of the asset.
func (s AssetSource) String() string {
	return s.Name
}

func (s AssetSource) open(cfg *Config) (archiveWalker, error) {
	if s.FS == nil {
		return nil, fmt.Errorf("asset %q has no filesystem", s.Name)
	}
	f, err := s.FS.Open(s.Name)
	if err != nil {
		return nil, fmt.Errorf("asset %q could not be opened: %w", s.Name, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("asset %q could not be opened: %w", s.Name, err)
	}
	if limit := cfg.MaxInputSize(); limit >= 0 && stat.Size() > limit {
		f.Close()
		return nil, fmt.Errorf("asset %q exceeds maximum input size of %d bytes", s.Name, limit)
	}
	return newZipStreamWalker(limitReader(f, cfg.MaxInputSize()), f, s.Name, stat.Size(), cfg)
}
