// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-unzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closeTracker is a reader that records if it was closed
type closeTracker struct {
	*bytes.Reader
	closed bool
}

// Close marks the reader as closed
func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

// TestExtractStream tests the extraction of archives that are read in a single pass
func TestExtractStream(t *testing.T) {
	cases := []struct {
		name        string
		data        func(t *testing.T) []byte
		opts        []unzip.ConfigOption
		expectFiles map[string]string
		expectErr   error
	}{
		{
			name:        "deflated entries with data descriptor",
			data:        func(t *testing.T) []byte { return createZip(t, scenarioEntries...) },
			expectFiles: map[string]string{"dir/a.txt": "0123456789", "b.txt": "abcde"},
		},
		{
			name: "raw stored and deflated entries",
			data: func(t *testing.T) []byte {
				return createZip(t,
					testEntry{name: "stored.txt", body: "stored", method: zip.Store, raw: true},
					testEntry{name: "sub/deflated.txt", body: "deflated deflated deflated", method: zip.Deflate, raw: true},
				)
			},
			expectFiles: map[string]string{"stored.txt": "stored", "sub/deflated.txt": "deflated deflated deflated"},
		},
		{
			name:        "empty archive",
			data:        func(t *testing.T) []byte { return createZip(t) },
			expectFiles: map[string]string{},
		},
		{
			name:        "empty stream",
			data:        func(t *testing.T) []byte { return nil },
			expectFiles: map[string]string{},
		},
		{
			name: "entry with wrong checksum is skipped",
			data: func(t *testing.T) []byte {
				return createZip(t,
					testEntry{name: "broken.txt", body: "broken", method: zip.Store, raw: true, crc: 1},
					testEntry{name: "ok.txt", body: "ok", method: zip.Store, raw: true},
				)
			},
			expectFiles: map[string]string{"broken.txt": "broken", "ok.txt": "ok"},
		},
		{
			name: "entry with wrong checksum in strict mode",
			data: func(t *testing.T) []byte {
				return createZip(t,
					testEntry{name: "broken.txt", body: "broken", method: zip.Store, raw: true, crc: 1},
					testEntry{name: "ok.txt", body: "ok", method: zip.Store, raw: true},
				)
			},
			opts:      []unzip.ConfigOption{unzip.WithContinueOnEntryError(false)},
			expectErr: unzip.ErrEntryIOFailure,
		},
		{
			name: "unread encrypted entry is skipped",
			data: func(t *testing.T) []byte {
				return createZip(t,
					testEntry{name: "secret.txt", body: "secret", method: zip.Store, flags: 0x1, raw: true},
					file("ok.txt", "ok"),
				)
			},
			expectFiles: map[string]string{"ok.txt": "ok"},
		},
		{
			name: "unsupported compression method is skipped",
			data: func(t *testing.T) []byte {
				return createZip(t,
					testEntry{name: "bzip2.txt", body: "not really bzip2", method: 12, raw: true},
					file("ok.txt", "ok"),
				)
			},
			expectFiles: map[string]string{"ok.txt": "ok"},
		},
		{
			name: "stored entry with data descriptor",
			data: func(t *testing.T) []byte {
				return createZip(t, testEntry{name: "stored.txt", body: "stored", method: zip.Store})
			},
			expectErr: unzip.ErrSourceUnreadable,
		},
		{
			name: "truncated entry",
			data: func(t *testing.T) []byte {
				return createZip(t, file("a.txt", "some content that is cut off"))[:40]
			},
			expectErr: unzip.ErrSourceUnreadable,
		},
		{
			name:      "not a zip stream",
			data:      func(t *testing.T) []byte { return []byte("this is not a zip archive") },
			expectErr: unzip.ErrSourceUnreadable,
		},
		{
			name:      "path traversal",
			data:      func(t *testing.T) []byte { return createZip(t, file("../escape.txt", "evil"), file("z.txt", "z")) },
			expectErr: unzip.ErrTraversalDetected,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data(t)
			tmp := t.TempDir()
			dst := filepath.Join(tmp, "out")
			src := &unzip.StreamSource{Name: "stream", Reader: bytes.NewReader(data), Size: int64(len(data))}

			var rec progressRecorder
			path, err := unzip.Extract(context.Background(), src, dst, rec.sink, unzip.NewConfig(tc.opts...))

			if tc.expectErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectErr), "expected %v, got %v", tc.expectErr, err)
				assert.Empty(t, path)
				assert.Equal(t, 0, rec.percents()[len(rec.percents())-1])
				assert.NoFileExists(t, filepath.Join(tmp, "escape.txt"))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, dst, path)
			checkProgress(t, &rec)
			if diff := cmp.Diff(tc.expectFiles, listFiles(t, dst)); diff != "" {
				t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestExtractStreamLabels tests that incremental snapshots carry the entry name
func TestExtractStreamLabels(t *testing.T) {
	data := createZip(t, file("a.txt", "0123456789"))
	src := &unzip.StreamSource{Name: "stream.zip", Reader: bytes.NewReader(data), Size: 10}

	var rec progressRecorder
	_, err := unzip.Extract(context.Background(), src, t.TempDir(), rec.sink, nil)
	require.NoError(t, err)

	// the compressed size is used as denominator, so a.txt alone reaches 100%
	require.Len(t, rec.snapshots, 2)
	assert.Equal(t, unzip.Progress{BytesProcessed: 0, TotalBytes: 1, Label: "stream.zip"}, rec.snapshots[0])
	assert.Equal(t, "a.txt", rec.snapshots[1].Label)
	assert.Equal(t, 100, rec.snapshots[1].Percent())
}

// TestExtractStreamUnknownSize tests a stream without denominator
func TestExtractStreamUnknownSize(t *testing.T) {
	data := createZip(t, scenarioEntries...)
	src := &unzip.StreamSource{Name: "stream", Reader: bytes.NewReader(data)}

	var rec progressRecorder
	_, err := unzip.Extract(context.Background(), src, t.TempDir(), rec.sink, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100}, rec.percents())
}

// TestExtractStreamCloses tests that a closable reader is closed after the extraction
func TestExtractStreamCloses(t *testing.T) {
	for _, data := range [][]byte{createZip(t, scenarioEntries...), []byte("not a zip")} {
		r := &closeTracker{Reader: bytes.NewReader(data)}
		src := &unzip.StreamSource{Name: "stream", Reader: r, Size: int64(len(data))}
		_, _ = unzip.Extract(context.Background(), src, t.TempDir(), nil, nil)
		assert.True(t, r.closed, "reader was not closed")
	}
}

// TestExtractAsset tests the extraction of archives embedded in a filesystem
func TestExtractAsset(t *testing.T) {
	data := createZip(t, scenarioEntries...)
	fsys := fstest.MapFS{"assets/archive.zip": &fstest.MapFile{Data: data}}

	t.Run("existing asset", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "out")
		var rec progressRecorder
		path, err := unzip.Extract(context.Background(), unzip.AssetSource{FS: fsys, Name: "assets/archive.zip"}, dst, rec.sink, nil)
		require.NoError(t, err)
		assert.Equal(t, dst, path)
		checkProgress(t, &rec)

		want := map[string]string{"dir/a.txt": "0123456789", "b.txt": "abcde"}
		if diff := cmp.Diff(want, listFiles(t, dst)); diff != "" {
			t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("missing asset", func(t *testing.T) {
		_, err := unzip.Extract(context.Background(), unzip.AssetSource{FS: fsys, Name: "assets/missing.zip"}, t.TempDir(), nil, nil)
		assert.ErrorIs(t, err, unzip.ErrSourceUnreadable)
	})
}

// TestExtractMaxInputSize tests that oversized archives are rejected
func TestExtractMaxInputSize(t *testing.T) {
	data := createZip(t, scenarioEntries...)
	cfg := unzip.NewConfig(unzip.WithMaxInputSize(int64(len(data) - 1)))

	t.Run("file", func(t *testing.T) {
		tmp := t.TempDir()
		archive := writeZip(t, tmp, scenarioEntries...)
		_, err := unzip.Extract(context.Background(), unzip.FileSource{Path: archive}, filepath.Join(tmp, "out"), nil, cfg)
		assert.ErrorIs(t, err, unzip.ErrSourceUnreadable)
	})

	t.Run("asset", func(t *testing.T) {
		fsys := fstest.MapFS{"archive.zip": &fstest.MapFile{Data: data}}
		_, err := unzip.Extract(context.Background(), unzip.AssetSource{FS: fsys, Name: "archive.zip"}, t.TempDir(), nil, cfg)
		assert.ErrorIs(t, err, unzip.ErrSourceUnreadable)
	})

	t.Run("stream", func(t *testing.T) {
		// the stream is only read up to the central directory, so the limit has to cut an entry
		src := &unzip.StreamSource{Name: "stream", Reader: bytes.NewReader(data)}
		_, err := unzip.Extract(context.Background(), src, t.TempDir(), nil, unzip.NewConfig(unzip.WithMaxInputSize(40)))
		assert.ErrorIs(t, err, unzip.ErrSourceUnreadable)
	})

	t.Run("stream within limit", func(t *testing.T) {
		src := &unzip.StreamSource{Name: "stream", Reader: bytes.NewReader(data)}
		_, err := unzip.Extract(context.Background(), src, t.TempDir(), nil, unzip.NewConfig(unzip.WithMaxInputSize(int64(len(data)))))
		assert.NoError(t, err)
	})
}
