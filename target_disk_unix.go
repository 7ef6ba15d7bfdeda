// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build unix

package unzip

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Chtimes sets the access and modification time of path without following
// a symlink at path.
func (d *TargetDisk) Chtimes(path string, atime time.Time, mtime time.Time) error {
	if err := unix.Lutimes(path, []unix.Timeval{unixTimeval(atime), unixTimeval(mtime)}); err != nil {
		return fmt.Errorf("failed to set file times (%w)", err)
	}
	return nil
}

// unixTimeval converts a time.Time to a unix.Timeval. Note that it always rounds
// up to the nearest microsecond, so even one nanosecond past the previous nanosecond
// will be rounded up to the next microsecond.
// See the implementation of unix.NsecToTimeval for details on how this happens.
func unixTimeval(t time.Time) unix.Timeval {
	return unix.NsecToTimeval(t.UnixNano())
}
