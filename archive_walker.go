// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"io"
	"io/fs"
	"time"
)

// archiveWalker is an interface that represents a forward-only walk over the
// entries of an opened archive
type archiveWalker interface {
	// Type returns the type of the walked archive
	Type() string

	// Next returns the next entry or io.EOF if there are no more entries.
	// Any previously returned entry is invalid after Next is called.
	Next() (archiveEntry, error)

	// TotalSize returns the denominator used for progress normalization
	TotalSize() uint64

	// InputSize returns the size of the archive itself, -1 if unknown
	InputSize() int64

	// Label returns the progress label for bytes copied from entry
	Label(entry archiveEntry) string

	// Close releases all handles of the archive
	Close() error
}

// archiveEntry is an interface that represents a file or directory in an archive
type archiveEntry interface {
	// Name returns the untrusted, slash separated name of the entry
	Name() string

	// IsDir returns true if the entry is a directory
	IsDir() bool

	// Size returns the declared uncompressed size, -1 if unknown
	Size() int64

	// Mode returns the mode stored in the archive
	Mode() fs.FileMode

	// ModTime returns the modification time stored in the archive, the zero
	// time if there is none
	ModTime() time.Time

	// Open returns a reader for the entry content. It can be called once.
	Open() (io.ReadCloser, error)
}
