// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unzip

import "io"

// limitErrorWriter is a wrapper around an io.Writer that returns io.ErrShortWrite
// once more than L bytes would be written.
type limitErrorWriter struct {
	W io.Writer // underlying writer
	L int64     // limit
	N int64     // number of bytes written
}

// Write writes p to the underlying writer as long as the limit allows it. If
// p does not fit, the part within the limit is written and io.ErrShortWrite
// is returned. An empty p never fails.
func (l *limitErrorWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	// limit already reached
	if l.N >= l.L {
		return 0, io.ErrShortWrite
	}

	// write the part within the limit
	if int64(len(p)) > l.L-l.N {
		n, err = l.W.Write(p[:l.L-l.N])
		if err == nil {
			err = io.ErrShortWrite
		}
		l.N += int64(n)
		return n, err
	}

	n, err = l.W.Write(p)
	l.N += int64(n)
	return n, err
}

// limitWriter wraps w so that at most maxSize bytes are written. A negative
// maxSize disables the limit.
func limitWriter(w io.Writer, maxSize int64) io.Writer {
	if maxSize < 0 {
		return w
	}
	return &limitErrorWriter{W: w, L: maxSize}
}
