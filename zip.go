// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

// fileExtensionZip is the file extension for zip files.
const fileExtensionZip = "zip"

// flagEncrypted is the general purpose bit that marks encrypted entries
const flagEncrypted = 0x1

// errEncryptedEntry is returned when an encrypted entry is opened
var errEncryptedEntry = errors.New("encrypted entries are not supported")

// openZipFile opens the zip archive at path for random access.
func openZipFile(path string, cfg *Config) (*zipWalker, error) {
	decode, err := newNameDecoder(cfg.Charset())
	if err != nil {
		return nil, err
	}

	inputSize := int64(-1)
	if stat, err := os.Stat(path); err == nil {
		inputSize = stat.Size()
	}
	if limit := cfg.MaxInputSize(); limit >= 0 && inputSize > limit {
		return nil, fmt.Errorf("archive exceeds maximum input size of %d bytes", limit)
	}

	// insecure names are rejected per entry by validatePath
	rc, err := zip.OpenReader(path)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("cannot create zip reader: %w", err)
	}

	return &zipWalker{rc: rc, zr: &rc.Reader, path: path, inputSize: inputSize, decode: decode}, nil
}

// sumUncompressedSize sums the declared uncompressed size of all files
func sumUncompressedSize(files []*zip.File) uint64 {
	var total uint64
	for _, f := range files {
		total += f.UncompressedSize64
	}
	return total
}

// zipWalker is a walker for zip files with random access
type zipWalker struct {
	rc        *zip.ReadCloser
	zr        *zip.Reader
	fp        int
	path      string
	inputSize int64
	decode    nameDecoder
}

// Type returns the file extension for zip files
func (z *zipWalker) Type() string {
	return fileExtensionZip
}

// Next returns the next entry in the zip archive
func (z *zipWalker) Next() (archiveEntry, error) {
	if z.fp >= len(z.zr.File) {
		return nil, io.EOF
	}
	defer func() { z.fp++ }()
	zf := z.zr.File[z.fp]
	return &zipEntry{zf: zf, name: decodeName(z.decode, zf.Name, zf.Flags)}, nil
}

// TotalSize returns the sum of the declared uncompressed sizes
func (z *zipWalker) TotalSize() uint64 {
	return sumUncompressedSize(z.zr.File)
}

// InputSize returns the size of the zip file
func (z *zipWalker) InputSize() int64 {
	return z.inputSize
}

// Label returns the path of the archive for every entry
func (z *zipWalker) Label(archiveEntry) string {
	return z.path
}

// Close closes the zip file
func (z *zipWalker) Close() error {
	if z.rc == nil {
		return nil
	}
	err := z.rc.Close()
	z.rc = nil
	return err
}

// zipEntry is an entry in a zip archive
type zipEntry struct {
	zf   *zip.File
	name string
}

// Name returns the name of the entry
func (z *zipEntry) Name() string {
	return z.name
}

// IsDir returns true if the entry is a directory
func (z *zipEntry) IsDir() bool {
	return z.zf.FileHeader.Mode().IsDir()
}

// Size returns the size of the entry
func (z *zipEntry) Size() int64 {
	return int64(z.zf.FileHeader.UncompressedSize64)
}

// Mode returns the mode of the entry
func (z *zipEntry) Mode() fs.FileMode {
	return z.zf.FileHeader.Mode()
}

// msDosEpoch is the time the zip reader reports for an empty MS-DOS date and time
var msDosEpoch = time.Date(1980, 0, 0, 0, 0, 0, 0, time.UTC)

// ModTime returns the modification time of the entry, the zero time if the
// entry has neither an MS-DOS date nor an extended timestamp
func (z *zipEntry) ModTime() time.Time {
	fh := z.zf.FileHeader
	if fh.ModifiedDate == 0 && fh.Modified.Equal(msDosEpoch) {
		return time.Time{}
	}
	return fh.Modified
}

// Open returns a reader for the entry
func (z *zipEntry) Open() (io.ReadCloser, error) {
	if z.zf.Flags&flagEncrypted != 0 {
		return nil, errEncryptedEntry
	}
	return z.zf.Open()
}
