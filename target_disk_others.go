// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package unzip

import (
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Chtimes sets the access and modification time of path. Symlinks are never
// created by an extraction, so a regular file is expected at path.
func (d *TargetDisk) Chtimes(path string, atime time.Time, mtime time.Time) error {
	stat, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("failed to set file times (%w)", err)
	}
	if stat.Mode()&fs.ModeSymlink != 0 {
		return fmt.Errorf("failed to set file times (%s is a symlink)", path)
	}
	if err := os.Chtimes(path, atime, mtime); err != nil {
		return fmt.Errorf("failed to set file times (%w)", err)
	}
	return nil
}
