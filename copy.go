// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"context"
	"errors"
	"io"
)

// errInvalidWrite means a write returned an impossible count
var errInvalidWrite = errors.New("invalid write result")

// copyWithProgress copies src to dst in chunks of len(buf) and calls advance
// after every written chunk. ctx is checked before each read.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, buf []byte, advance func(uint64)) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if werr == nil {
					werr = errInvalidWrite
				}
			}
			written += int64(nw)
			if nw > 0 {
				advance(uint64(nw))
			}
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}

		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
