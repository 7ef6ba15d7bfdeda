// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"errors"
	"io"
)

// errInputLimitExceeded is returned once a stream is longer than the
// configured maximum input size
var errInputLimitExceeded = errors.New("maximum input size exceeded")

// limitErrorReader is a reader that returns an error if the limit is exceeded
// before the underlying reader is fully read.
// If the limit is -1, all data from the original reader is read.
type limitErrorReader struct {
	R io.Reader // underlying reader
	L int64     // limit
	N int64     // number of bytes read
}

// Read reads from the underlying reader and fills up p. Once L bytes have
// been read, the next read returns errInputLimitExceeded unless the
// underlying reader is exhausted as well.
func (l *limitErrorReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	m := l.L - l.N
	if l.L == -1 || m > int64(len(p)) {
		m = int64(len(p))
	}

	// limit reached: probe a single byte to tell a full stream from an oversized one
	if m == 0 {
		var probe [1]byte
		n, err := l.R.Read(probe[:])
		if n > 0 {
			return 0, errInputLimitExceeded
		}
		if err == nil {
			err = errInputLimitExceeded
		}
		return 0, err
	}

	n, err := l.R.Read(p[:m])
	l.N += int64(n)
	return n, err
}

// ReadBytes returns how many bytes have been read from the underlying reader
func (l *limitErrorReader) ReadBytes() int64 {
	return l.N
}

// limitReader wraps r so that reading more than limit bytes fails. A negative
// limit returns r unchanged.
func limitReader(r io.Reader, limit int64) io.Reader {
	if limit < 0 {
		return r
	}
	return &limitErrorReader{R: r, L: limit}
}
