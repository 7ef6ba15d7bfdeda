// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"github.com/klauspost/compress/zip"
)

// EstimateTotalUncompressedBytes sums the declared uncompressed size of every
// entry in the zip file at path without extracting anything. It returns 0 for
// an empty archive.
//
// If the archive metadata cannot be read, an [*Error] of kind
// [KindSourceUnreadable] is returned.
func EstimateTotalUncompressedBytes(path string) (uint64, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return 0, newError(KindSourceUnreadable, path, err)
	}
	defer rc.Close()

	return sumUncompressedSize(rc.File), nil
}
