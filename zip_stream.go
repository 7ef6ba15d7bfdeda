// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"bufio"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"io"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
)

// Each record type is identified by a header signature starting with "PK".
const (
	localFileHeaderSignature  uint32 = 0x04034b50
	centralDirectorySignature uint32 = 0x02014b50
	endOfCentralDirSignature  uint32 = 0x06054b50
	dataDescriptorSignature   uint32 = 0x08074b50
)

const (
	localFileHeaderLen = 26 // fixed part of the local file header after the signature
	flagDataDescriptor = 0x8
	methodStore        = 0
	methodDeflate      = 8
	zip64ExtraID       = 0x0001
	streamBufferSize   = 64 * 1024
)

// errChecksum is returned when the content of an entry does not match its CRC-32
var errChecksum = errors.New("zip: checksum error")

// localFileHeader is the part of a local file header needed to read an entry
// from a stream.
type localFileHeader struct {
	flags            uint16
	method           uint16
	modified         time.Time
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	name             string
	zip64            bool
}

// msDosTime converts an MS-DOS date and time to a time in UTC. An empty
// date yields the zero time.
func msDosTime(dosDate uint16, dosTime uint16) time.Time {
	if dosDate == 0 {
		return time.Time{}
	}
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}

// hasDataDescriptor reports if CRC-32 and sizes follow the entry content
// instead of being stored in the header.
func (h *localFileHeader) hasDataDescriptor() bool {
	return h.flags&flagDataDescriptor != 0
}

// readLocalFileHeader reads a local file header from r. The signature must
// already be consumed.
func readLocalFileHeader(r io.Reader) (*localFileHeader, error) {
	var buf [localFileHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read local file header")
	}

	h := &localFileHeader{
		flags:            binary.LittleEndian.Uint16(buf[2:4]),
		method:           binary.LittleEndian.Uint16(buf[4:6]),
		modified:         msDosTime(binary.LittleEndian.Uint16(buf[8:10]), binary.LittleEndian.Uint16(buf[6:8])),
		crc32:            binary.LittleEndian.Uint32(buf[10:14]),
		compressedSize:   uint64(binary.LittleEndian.Uint32(buf[14:18])),
		uncompressedSize: uint64(binary.LittleEndian.Uint32(buf[18:22])),
	}
	nameLen := binary.LittleEndian.Uint16(buf[22:24])
	extraLen := binary.LittleEndian.Uint16(buf[24:26])

	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, errors.Wrap(err, "failed to read file name")
	}
	h.name = string(name)

	extra := make([]byte, extraLen)
	if _, err := io.ReadFull(r, extra); err != nil {
		return nil, errors.Wrapf(err, "failed to read extra field of %q", h.name)
	}
	if err := h.applyZip64(extra); err != nil {
		return nil, err
	}

	// the end of an entry with data descriptor can only be found by inflating it
	if h.hasDataDescriptor() {
		if h.method != methodDeflate {
			return nil, errors.Errorf("entry %q: only deflated entries can have a data descriptor", h.name)
		}
		if h.flags&flagEncrypted != 0 {
			return nil, errors.Errorf("entry %q: encrypted entry with data descriptor cannot be skipped", h.name)
		}
	}

	return h, nil
}

// applyZip64 replaces saturated sizes with the values of the zip64 extra field
func (h *localFileHeader) applyZip64(extra []byte) error {
	for len(extra) >= 4 {
		id := binary.LittleEndian.Uint16(extra[0:2])
		size := int(binary.LittleEndian.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return errors.Errorf("entry %q: invalid extra field", h.name)
		}
		field := extra[:size]
		extra = extra[size:]

		if id != zip64ExtraID {
			continue
		}
		h.zip64 = true

		if h.uncompressedSize == math.MaxUint32 {
			if len(field) < 8 {
				return errors.Errorf("entry %q: invalid zip64 extra field", h.name)
			}
			h.uncompressedSize = binary.LittleEndian.Uint64(field[:8])
			field = field[8:]
		}
		if h.compressedSize == math.MaxUint32 {
			if len(field) < 8 {
				return errors.Errorf("entry %q: invalid zip64 extra field", h.name)
			}
			h.compressedSize = binary.LittleEndian.Uint64(field[:8])
		}
	}
	return nil
}

// readDataDescriptor consumes the data descriptor that follows an entry. The
// signature of the descriptor is optional.
func readDataDescriptor(r io.Reader, zip64 bool) error {
	n := 12
	if zip64 {
		n = 20
	}

	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return errors.Wrap(err, "failed to read data descriptor")
	}

	// without signature the first four bytes were the CRC-32
	rest := n - 4
	if binary.LittleEndian.Uint32(buf[:4]) == dataDescriptorSignature {
		rest = n
	}
	if _, err := io.ReadFull(r, buf[4:4+rest]); err != nil {
		return errors.Wrap(err, "failed to read data descriptor")
	}
	return nil
}

// zipStreamWalker walks the entries of a zip archive by reading the local
// file headers in order. The central directory is never read.
type zipStreamWalker struct {
	br     *bufio.Reader
	closer io.Closer
	name   string
	size   int64
	decode nameDecoder
	cur    *zipStreamEntry
	done   bool
}

// newZipStreamWalker creates a walker reading from r. closer, if not nil, is
// closed with the walker or if the walker cannot be created.
func newZipStreamWalker(r io.Reader, closer io.Closer, name string, size int64, cfg *Config) (archiveWalker, error) {
	decode, err := newNameDecoder(cfg.Charset())
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	return &zipStreamWalker{
		br:     bufio.NewReaderSize(r, streamBufferSize),
		closer: closer,
		name:   name,
		size:   size,
		decode: decode,
	}, nil
}

// Type returns the file extension for zip files
func (w *zipStreamWalker) Type() string {
	return fileExtensionZip
}

// Next skips the rest of the current entry and returns the next one
func (w *zipStreamWalker) Next() (archiveEntry, error) {
	if w.done {
		return nil, io.EOF
	}

	if w.cur != nil {
		cur := w.cur
		w.cur = nil
		if err := cur.finish(); err != nil {
			return nil, err
		}
	}

	var sig [4]byte
	if _, err := io.ReadFull(w.br, sig[:]); err != nil {
		if err == io.EOF {
			w.done = true
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "failed to read header signature")
	}

	switch s := binary.LittleEndian.Uint32(sig[:]); s {
	case localFileHeaderSignature:
	case centralDirectorySignature, endOfCentralDirSignature:
		// all entries are read once the central directory starts
		w.done = true
		return nil, io.EOF
	default:
		return nil, errors.Errorf("invalid zip header signature %#08x", s)
	}

	h, err := readLocalFileHeader(w.br)
	if err != nil {
		return nil, err
	}

	w.cur = &zipStreamEntry{w: w, h: h, name: decodeName(w.decode, h.name, h.flags)}
	return w.cur, nil
}

// TotalSize returns the compressed size of the stream
func (w *zipStreamWalker) TotalSize() uint64 {
	if w.size <= 0 {
		return 0
	}
	return uint64(w.size)
}

// InputSize returns the compressed size of the stream, -1 if unknown
func (w *zipStreamWalker) InputSize() int64 {
	if w.size <= 0 {
		return -1
	}
	return w.size
}

// Label returns the name of the entry
func (w *zipStreamWalker) Label(entry archiveEntry) string {
	return entry.Name()
}

// Close closes the underlying stream if it is closable
func (w *zipStreamWalker) Close() error {
	w.done = true
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// zipStreamEntry is an entry read from a zip stream
type zipStreamEntry struct {
	w      *zipStreamWalker
	h      *localFileHeader
	name   string
	opened bool
	raw    *io.LimitedReader // compressed content, nil for entries with data descriptor
	dec    io.ReadCloser     // decompressor of a deflated entry
	count  *countingReader   // decompressed content of an entry with data descriptor
}

// Name returns the name of the entry
func (e *zipStreamEntry) Name() string {
	return e.name
}

// IsDir returns true if the entry is a directory
func (e *zipStreamEntry) IsDir() bool {
	return strings.HasSuffix(e.h.name, "/")
}

// Size returns the uncompressed size from the local header, -1 if the
// size is stored behind the content
func (e *zipStreamEntry) Size() int64 {
	if e.h.hasDataDescriptor() {
		return -1
	}
	return int64(e.h.uncompressedSize)
}

// Mode returns the mode of the entry. Local headers carry no attributes.
func (e *zipStreamEntry) Mode() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}

// ModTime returns the MS-DOS modification time of the local header
func (e *zipStreamEntry) ModTime() time.Time {
	return e.h.modified
}

// Open returns a reader for the entry content. Closing it does not close
// the stream.
func (e *zipStreamEntry) Open() (io.ReadCloser, error) {
	if e.opened {
		return nil, errors.Errorf("entry %q already opened", e.name)
	}
	e.opened = true

	if e.h.flags&flagEncrypted != 0 {
		return nil, errEncryptedEntry
	}

	var r io.Reader
	switch e.h.method {
	case methodStore:
		e.raw = &io.LimitedReader{R: e.w.br, N: int64(e.h.compressedSize)}
		r = e.raw
	case methodDeflate:
		if e.h.hasDataDescriptor() {
			// the buffered reader is an io.ByteReader, so inflating stops
			// exactly at the end of the deflate stream
			e.dec = flate.NewReader(e.w.br)
			e.count = &countingReader{r: e.dec}
			return &noopReaderCloser{e.count}, nil
		}
		e.raw = &io.LimitedReader{R: e.w.br, N: int64(e.h.compressedSize)}
		e.dec = flate.NewReader(e.raw)
		r = e.dec
	default:
		return nil, errors.Errorf("unsupported compression method %d", e.h.method)
	}

	return &noopReaderCloser{&checksumReader{
		r:    r,
		hash: crc32.NewIEEE(),
		want: e.h.crc32,
		size: e.h.uncompressedSize,
	}}, nil
}

// finish positions the stream behind the entry
func (e *zipStreamEntry) finish() error {
	if e.dec != nil {
		defer e.dec.Close()
	}

	if !e.h.hasDataDescriptor() {
		if e.raw == nil {
			e.raw = &io.LimitedReader{R: e.w.br, N: int64(e.h.compressedSize)}
		}
		if _, err := io.Copy(io.Discard, e.raw); err != nil {
			return errors.Wrapf(err, "failed to skip entry %q", e.name)
		}
		if e.raw.N > 0 {
			return errors.Wrapf(io.ErrUnexpectedEOF, "failed to skip entry %q", e.name)
		}
		return nil
	}

	if e.dec == nil {
		e.dec = flate.NewReader(e.w.br)
		e.count = &countingReader{r: e.dec}
		defer e.dec.Close()
	}
	if _, err := io.Copy(io.Discard, e.count); err != nil {
		return errors.Wrapf(err, "failed to skip entry %q", e.name)
	}

	// writers that learn the size late switch to 64 bit sizes in the descriptor
	zip64 := e.h.zip64 || e.count.n >= math.MaxUint32
	return readDataDescriptor(e.w.br, zip64)
}

// countingReader counts the bytes read from r
type countingReader struct {
	r io.Reader
	n uint64
}

// Read reads from the underlying reader
func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// checksumReader verifies size and CRC-32 of the content once r is drained
type checksumReader struct {
	r    io.Reader
	hash hash.Hash32
	want uint32
	size uint64
	n    uint64
}

// Read reads from the underlying reader and checks the content at io.EOF
func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.hash.Write(p[:n])
	c.n += uint64(n)

	if err == io.EOF {
		if c.n != c.size {
			return n, io.ErrUnexpectedEOF
		}
		if c.hash.Sum32() != c.want {
			return n, errChecksum
		}
	}
	return n, err
}
