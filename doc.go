// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package unzip extracts zip archives to a destination directory while
// reporting progress and rejecting entries that would escape the destination.
//
// An archive is provided as a [Source]. A [FileSource] is read with random
// access, which allows the total uncompressed size to be estimated up front.
// A [StreamSource] or [AssetSource] is read in a single forward pass; the
// compressed length of the stream is then used to normalize progress.
//
// Progress is delivered to a [ProgressSink] at most once per whole percent.
// Configuration is done using the [Config], which is adjusted with
// [ConfigOption] functions. Telemetry data is handed to a [TelemetryHook]
// after every extraction.
package unzip
