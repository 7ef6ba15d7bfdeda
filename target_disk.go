// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// TargetDisk is the struct type that holds all information for interacting with the filesystem
type TargetDisk struct{}

// NewTargetDisk creates a new target for the local filesystem
func NewTargetDisk() *TargetDisk {
	return &TargetDisk{}
}

// CreateDir creates a directory at the specified path with the specified mode. If the directory already
// exists, nothing is done.
func (d *TargetDisk) CreateDir(path string, mode fs.FileMode) error {
	if err := os.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory (%w)", err)
	}
	return nil
}

// CreateFile creates a file at the specified path and returns it for writing. If the file already
// exists and overwrite is false, an error is returned.
func (d *TargetDisk) CreateFile(path string, mode fs.FileMode, overwrite bool) (io.WriteCloser, error) {
	// Check for path validity and if file existence+overwrite
	if stat, err := os.Lstat(path); !os.IsNotExist(err) {

		// something wrong with path
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}

		// check for overwrite
		if !overwrite {
			return nil, fmt.Errorf("file already exists")
		}

		// never truncate a directory
		if stat.IsDir() {
			return nil, fmt.Errorf("path is a directory")
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return f, nil
}

// Lstat returns the FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func (d *TargetDisk) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

// EvalSymlinks returns the path name after the evaluation of any symbolic links.
func (d *TargetDisk) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
