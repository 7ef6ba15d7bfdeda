// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unzip

import "io"

// noopReaderCloser hands out the content of a stream entry without giving
// the caller a way to close the stream itself.
type noopReaderCloser struct {
	io.Reader
}

// Close does nothing. The stream is closed by its walker.
func (n *noopReaderCloser) Close() error {
	return nil
}
