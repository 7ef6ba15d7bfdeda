// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip_test

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-unzip"
	"github.com/hashicorp/go-unzip/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter fails every write and records if it was closed
type failingWriter struct {
	closed bool
}

// Write fails
func (f *failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

// Close marks the writer as closed
func (f *failingWriter) Close() error {
	f.closed = true
	return nil
}

// newDiskBackedTarget returns a mock target that delegates Lstat, EvalSymlinks
// and CreateDir to the disk. CreateFile has to be set up by the caller.
func newDiskBackedTarget(t *testing.T) *mocks.MockTarget {
	disk := unzip.NewTargetDisk()
	m := mocks.NewMockTarget(gomock.NewController(t))
	m.EXPECT().Lstat(gomock.Any()).DoAndReturn(disk.Lstat).AnyTimes()
	m.EXPECT().EvalSymlinks(gomock.Any()).DoAndReturn(disk.EvalSymlinks).AnyTimes()
	m.EXPECT().CreateDir(gomock.Any(), gomock.Any()).DoAndReturn(disk.CreateDir).AnyTimes()
	return m
}

// TestExtractEntryFailures tests entry level failures injected by the target
func TestExtractEntryFailures(t *testing.T) {
	cases := []struct {
		name        string
		strict      bool
		createFile  func(w *failingWriter) func(string, fs.FileMode, bool) (io.WriteCloser, error)
		expectFiles map[string]string
		expectKind  unzip.ErrorKind
	}{
		{
			name: "file cannot be created",
			createFile: func(*failingWriter) func(string, fs.FileMode, bool) (io.WriteCloser, error) {
				return func(path string, mode fs.FileMode, overwrite bool) (io.WriteCloser, error) {
					if filepath.Base(path) == "a.txt" {
						return nil, errors.New("permission denied")
					}
					return unzip.NewTargetDisk().CreateFile(path, mode, overwrite)
				}
			},
			expectFiles: map[string]string{"b.txt": "abcde"},
		},
		{
			name: "file cannot be written",
			createFile: func(w *failingWriter) func(string, fs.FileMode, bool) (io.WriteCloser, error) {
				return func(path string, mode fs.FileMode, overwrite bool) (io.WriteCloser, error) {
					if filepath.Base(path) == "a.txt" {
						return w, nil
					}
					return unzip.NewTargetDisk().CreateFile(path, mode, overwrite)
				}
			},
			expectFiles: map[string]string{"b.txt": "abcde"},
		},
		{
			name:   "file cannot be written in strict mode",
			strict: true,
			createFile: func(w *failingWriter) func(string, fs.FileMode, bool) (io.WriteCloser, error) {
				return func(path string, mode fs.FileMode, overwrite bool) (io.WriteCloser, error) {
					return w, nil
				}
			},
			expectFiles: map[string]string{},
			expectKind:  unzip.KindEntryIOFailure,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tmp := t.TempDir()
			archive := writeZip(t, tmp, scenarioEntries...)
			dst := filepath.Join(tmp, "out")

			w := &failingWriter{}
			target := newDiskBackedTarget(t)
			target.EXPECT().CreateFile(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(tc.createFile(w)).AnyTimes()

			var td *unzip.TelemetryData
			cfg := unzip.NewConfig(
				unzip.WithTarget(target),
				unzip.WithContinueOnEntryError(!tc.strict),
				unzip.WithTelemetryHook(func(ctx context.Context, d *unzip.TelemetryData) { td = d }),
			)

			_, err := unzip.Extract(context.Background(), unzip.FileSource{Path: archive}, dst, nil, cfg)
			if tc.expectKind != unzip.KindUnknown {
				var e *unzip.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tc.expectKind, e.Kind)
				assert.True(t, td.ExtractionFailed)
			} else {
				require.NoError(t, err)
				assert.False(t, td.ExtractionFailed)
			}

			assert.Equal(t, int64(1), td.ExtractionErrors)
			assert.Error(t, td.LastExtractionError)
			if diff := cmp.Diff(tc.expectFiles, listFiles(t, dst)); diff != "" {
				t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestExtractReleasesFailedFiles tests that a failed file is closed
func TestExtractReleasesFailedFiles(t *testing.T) {
	tmp := t.TempDir()
	archive := writeZip(t, tmp, file("a.txt", "content"))

	w := &failingWriter{}
	target := newDiskBackedTarget(t)
	target.EXPECT().CreateFile(gomock.Any(), gomock.Any(), true).Return(w, nil).Times(1)

	_, err := unzip.Extract(context.Background(), unzip.FileSource{Path: archive}, filepath.Join(tmp, "out"), nil, unzip.NewConfig(unzip.WithTarget(target)))
	require.NoError(t, err)
	assert.True(t, w.closed, "failed file was not closed")
}

// TestExtractDestinationNotCreated tests a target that cannot create the destination
func TestExtractDestinationNotCreated(t *testing.T) {
	tmp := t.TempDir()
	archive := writeZip(t, tmp, scenarioEntries...)
	dst := filepath.Join(tmp, "out")

	target := mocks.NewMockTarget(gomock.NewController(t))
	target.EXPECT().Lstat(gomock.Any()).Return(nil, fs.ErrNotExist).AnyTimes()
	target.EXPECT().CreateDir(dst, gomock.Any()).Return(errors.New("read-only file system")).Times(1)

	_, err := unzip.Extract(context.Background(), unzip.FileSource{Path: archive}, dst, nil, unzip.NewConfig(unzip.WithTarget(target)))
	assert.ErrorIs(t, err, unzip.ErrDestinationUnwritable)
}

// TestExtractTelemetry tests the telemetry data of a successful extraction
func TestExtractTelemetry(t *testing.T) {
	tmp := t.TempDir()
	archive := writeZip(t, tmp, scenarioEntries...)

	var td *unzip.TelemetryData
	calls := 0
	cfg := unzip.NewConfig(unzip.WithTelemetryHook(func(ctx context.Context, d *unzip.TelemetryData) {
		calls++
		td = d
	}))

	_, err := unzip.Extract(context.Background(), unzip.FileSource{Path: archive}, filepath.Join(tmp, "out"), nil, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	assert.NotEmpty(t, td.ID)
	assert.Equal(t, "zip", td.ExtractedType)
	assert.Equal(t, uint64(15), td.EstimatedSize)
	assert.Equal(t, int64(2), td.ExtractedFiles)
	assert.Equal(t, int64(1), td.SkippedDirs)
	assert.Equal(t, int64(15), td.ExtractionSize)
	assert.Equal(t, int64(0), td.ExtractionErrors)
	assert.Greater(t, td.InputSize, int64(0))
	assert.GreaterOrEqual(t, td.ExtractionDuration, time.Duration(0))
	assert.False(t, td.ExtractionFailed)
	assert.NoError(t, td.LastExtractionError)
}

// TestExtractAsync tests that the result is delivered once on the channel
func TestExtractAsync(t *testing.T) {
	tmp := t.TempDir()
	archive := writeZip(t, tmp, scenarioEntries...)
	dst := filepath.Join(tmp, "out")

	var rec progressRecorder
	ch := unzip.ExtractAsync(context.Background(), unzip.FileSource{Path: archive}, dst, rec.sink, nil)

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		assert.Equal(t, dst, res.Path)
	case <-time.After(10 * time.Second):
		t.Fatal("extraction did not finish")
	}

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after the result")
	checkProgress(t, &rec)
}

// TestExtractAsyncError tests that errors are delivered on the channel
func TestExtractAsyncError(t *testing.T) {
	res := <-unzip.ExtractAsync(context.Background(), unzip.FileSource{Path: filepath.Join(t.TempDir(), "missing.zip")}, t.TempDir(), nil, nil)
	assert.ErrorIs(t, res.Err, unzip.ErrSourceUnreadable)
	assert.Empty(t, res.Path)
}

// TestExtractConcurrent tests independent extractions running at the same time
func TestExtractConcurrent(t *testing.T) {
	tmp := t.TempDir()
	archive := writeZip(t, tmp, scenarioEntries...)

	var channels []<-chan unzip.Result
	for i := 0; i < 4; i++ {
		dst := filepath.Join(tmp, "out", string(rune('a'+i)))
		channels = append(channels, unzip.ExtractAsync(context.Background(), unzip.FileSource{Path: archive}, dst, nil, nil))
	}

	for _, ch := range channels {
		res := <-ch
		require.NoError(t, res.Err)
		if diff := cmp.Diff(map[string]string{"dir/a.txt": "0123456789", "b.txt": "abcde"}, listFiles(t, res.Path)); diff != "" {
			t.Errorf("extracted files mismatch (-want +got):\n%s", diff)
		}
	}
}
