// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
)

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config provides a configuration struct and options to adjust the configuration.
//
// The configuration struct holds all configuration options for the extraction process.
// The configuration options can be adjusted using the option pattern style.
//
// The default configuration mirrors a best-effort extraction: entries that fail to
// extract are logged and skipped, while path traversal always aborts the extraction.
type Config struct {
	// bufferSize is the size of the chunks used to copy entry content
	bufferSize int

	// charset is the name of the charset used to decode entry names that
	// are not flagged as UTF-8
	charset string

	// continueOnEntryError decides if the extraction should be continued
	// if a single entry cannot be extracted
	continueOnEntryError bool

	// create destination directory if it does not exist
	createDestination bool

	// customCreateDirMode is the file mode for created directories (respecting umask)
	customCreateDirMode fs.FileMode

	// customDecompressFileMode is the file mode for an extracted file (respecting umask)
	customDecompressFileMode fs.FileMode

	// logger stream for extraction
	logger logger

	// maxExtractionSize is the maximum size over all extracted files.
	// Set value to -1 to disable the check.
	maxExtractionSize int64

	// maxInputSize is the maximum size of the archive that is read.
	// Set value to -1 to disable the check.
	maxInputSize int64

	// Define if files should be overwritten in the destination
	overwrite bool

	// preserveFileTimes decides if the modification time of an entry is set on the extracted file
	preserveFileTimes bool

	// target is the filesystem the archive is extracted to
	target Target

	// telemetryHook is a function to consume telemetry data after finished extraction
	// Important: do not adjust this value after extraction started
	telemetryHook TelemetryHook
}

// BufferSize returns the size of the chunks that are copied between
// two progress updates.
func (c *Config) BufferSize() int {
	return c.bufferSize
}

// Charset returns the charset used to decode entry names without the
// UTF-8 flag. An empty string means the names are used as they are.
func (c *Config) Charset() string {
	return c.charset
}

// ContinueOnEntryError returns true if the extraction should continue
// when a single entry cannot be read or written.
func (c *Config) ContinueOnEntryError() bool {
	return c.continueOnEntryError
}

// CreateDestination returns true if the destination directory should be
// created if it does not exist.
func (c *Config) CreateDestination() bool {
	return c.createDestination
}

// CustomCreateDirMode returns the file mode for created directories.
// (respecting umask)
func (c *Config) CustomCreateDirMode() fs.FileMode {
	return c.customCreateDirMode
}

// CustomDecompressFileMode returns the file mode for an extracted file.
// (respecting umask)
func (c *Config) CustomDecompressFileMode() fs.FileMode {
	return c.customDecompressFileMode
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxExtractionSize returns the maximum size over all extracted files.
func (c *Config) MaxExtractionSize() int64 {
	return c.maxExtractionSize
}

// MaxInputSize returns the maximum size of the archive that is read.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// Overwrite returns true if files should be overwritten in the destination.
func (c *Config) Overwrite() bool {
	return c.overwrite
}

// PreserveFileTimes returns true if the modification time stored in the archive
// is set on extracted files.
func (c *Config) PreserveFileTimes() bool {
	return c.preserveFileTimes
}

// Target returns the filesystem target.
func (c *Config) Target() Target {
	if c.target == nil {
		return NewTargetDisk()
	}
	return c.target
}

// TelemetryHook returns the telemetry hook.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

// remainingExtractionSize returns how many bytes may still be written after
// extracted bytes have been written. -1 means unlimited.
func (c *Config) remainingExtractionSize(extracted int64) int64 {
	if c.MaxExtractionSize() < 0 {
		return -1
	}
	if remaining := c.MaxExtractionSize() - extracted; remaining > 0 {
		return remaining
	}
	return 0
}

const (
	defaultBufferSize               = 32 * 1024 // 32 KiB chunks
	defaultCharset                  = ""        // use names as stored
	defaultContinueOnEntryError     = true      // skip entries that fail
	defaultCreateDestination        = true      // create destination directory
	defaultCustomCreateDirMode      = 0750      // default directory permissions rwxr-x---
	defaultCustomDecompressFileMode = 0640      // default file permissions rw-r-----
	defaultMaxExtractionSize        = -1        // no limit
	defaultMaxInputSize             = -1        // no limit
	defaultOverwrite                = true      // replace existing files
	defaultPreserveFileTimes        = false     // files get the time of extraction
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	// no operation telemetry hook
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {
		// noop
	}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {

	// setup default values
	config := &Config{
		bufferSize:               defaultBufferSize,
		charset:                  defaultCharset,
		continueOnEntryError:     defaultContinueOnEntryError,
		createDestination:        defaultCreateDestination,
		customCreateDirMode:      defaultCustomCreateDirMode,
		customDecompressFileMode: defaultCustomDecompressFileMode,
		logger:                   defaultLogger,
		maxExtractionSize:        defaultMaxExtractionSize,
		maxInputSize:             defaultMaxInputSize,
		overwrite:                defaultOverwrite,
		preserveFileTimes:        defaultPreserveFileTimes,
		target:                   NewTargetDisk(),
		telemetryHook:            defaultTelemetryHook,
	}

	// Loop through each option
	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithBufferSize options pattern function to set the chunk size used to copy
// entry content. Values <= 0 are ignored.
func WithBufferSize(size int) ConfigOption {
	return func(c *Config) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithCharset options pattern function to set the IANA charset name (e.g. "Shift_JIS",
// "GBK" or "IBM437") used to decode entry names that are not flagged as UTF-8.
func WithCharset(charset string) ConfigOption {
	return func(c *Config) {
		c.charset = charset
	}
}

// WithContinueOnEntryError options pattern function to continue when a single entry
// cannot be extracted. If set to true, the error is logged, counted in the telemetry
// data and the extraction continues. If set to false, the extraction stops and
// returns an error of kind [KindEntryIOFailure].
func WithContinueOnEntryError(yes bool) ConfigOption {
	return func(c *Config) {
		c.continueOnEntryError = yes
	}
}

// WithCreateDestination options pattern function to create
// destination directory if it does not exist.
func WithCreateDestination(create bool) ConfigOption {
	return func(c *Config) {
		c.createDestination = create
	}
}

// WithCustomCreateDirMode options pattern function to set the file mode
// for created directories. (respecting umask)
func WithCustomCreateDirMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customCreateDirMode = mode
	}
}

// WithCustomDecompressFileMode options pattern function to set the file mode for an
// extracted file. (respecting umask)
func WithCustomDecompressFileMode(mode fs.FileMode) ConfigOption {
	return func(c *Config) {
		c.customDecompressFileMode = mode
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxExtractionSize options pattern function to set maximum size over all
// extracted files. (-1 to disable check)
func WithMaxExtractionSize(maxExtractionSize int64) ConfigOption {
	return func(c *Config) {
		if maxExtractionSize < 0 {
			maxExtractionSize = -1
		}
		c.maxExtractionSize = maxExtractionSize
	}
}

// WithMaxInputSize options pattern function to set the maximum size of the archive
// that is read. Larger files are rejected before extraction, streams fail once the
// limit is passed. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		if maxInputSize < 0 {
			maxInputSize = -1
		}
		c.maxInputSize = maxInputSize
	}
}

// WithOverwrite options pattern function specify if files should be overwritten in the destination.
func WithOverwrite(enable bool) ConfigOption {
	return func(c *Config) {
		c.overwrite = enable
	}
}

// WithPreserveFileTimes options pattern function to set the modification time stored
// in the archive on extracted files. Failing to set it is an entry error.
func WithPreserveFileTimes(preserve bool) ConfigOption {
	return func(c *Config) {
		c.preserveFileTimes = preserve
	}
}

// WithTarget options pattern function to set the filesystem [Target].
func WithTarget(t Target) ConfigOption {
	return func(c *Config) {
		c.target = t
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is called after extraction.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
