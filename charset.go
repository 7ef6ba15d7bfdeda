// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// flagUTF8 is the general purpose bit that marks UTF-8 encoded names
const flagUTF8 = 0x800

// nameDecoder converts a raw entry name into its UTF-8 representation
type nameDecoder func(raw string) string

// newNameDecoder returns a decoder for charset. A nil decoder is returned
// for an empty charset or UTF-8, which means names are used as stored.
func newNameDecoder(charset string) (nameDecoder, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return nil, nil
	}

	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}

	dec := enc.NewDecoder()
	return func(raw string) string {
		decoded, err := dec.String(raw)
		if err != nil {
			return raw
		}
		return decoded
	}, nil
}

// decodeName decodes raw with d unless the entry is flagged as UTF-8
func decodeName(d nameDecoder, raw string, flags uint16) string {
	if d == nil || flags&flagUTF8 != 0 {
		return raw
	}
	return d(raw)
}
