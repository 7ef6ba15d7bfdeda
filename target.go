// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

//go:generate mockgen -source=target.go -destination=internal/mocks/mock_target.go -package=mocks

import (
	"io"
	"io/fs"
	"time"
)

// Target specifies all functions that are needed to write the contents of an
// archive to a filesystem
type Target interface {
	// CreateDir creates a directory at the specified path with the specified mode, including
	// all missing parents. If the directory already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// CreateFile creates a file at the specified path and returns a writer for its content.
	// The mode parameter is the file mode that should be set on a new file. If the file
	// already exists and overwrite is false, an error should be returned. If it exists and
	// overwrite is true, the file is truncated.
	CreateFile(path string, mode fs.FileMode, overwrite bool) (io.WriteCloser, error)

	// Lstat see docs for os.Lstat. Main purpose is to find the existing part of a path
	// during the traversal check.
	Lstat(path string) (fs.FileInfo, error)

	// EvalSymlinks see docs for filepath.EvalSymlinks. Main purpose is to resolve the
	// canonical form of an output path.
	EvalSymlinks(path string) (string, error)

	// Chtimes sets the access and modification time of an extracted file. It must not
	// follow a symlink at path.
	Chtimes(path string, atime time.Time, mtime time.Time) error
}
