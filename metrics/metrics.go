// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package metrics exports the telemetry data of extractions as prometheus
// metrics. A [Collector] is attached to an extraction with
// unzip.WithTelemetryHook(collector.Hook).
package metrics

import (
	"context"

	"github.com/hashicorp/go-unzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "unzip"

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Collector holds the prometheus metrics of all extractions it observed.
// It is safe for concurrent use.
type Collector struct {
	extractions *prometheus.CounterVec
	files       prometheus.Counter
	bytes       prometheus.Counter
	errors      prometheus.Counter
	skippedDirs prometheus.Counter
	duration    *prometheus.HistogramVec
}

// NewCollector creates a collector and registers its metrics at reg. A nil
// reg creates metrics that are not registered anywhere.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "The number of finished extractions",
		}, []string{"type", "result"}),
		files: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_files_total",
			Help:      "The number of extracted files",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extracted_bytes_total",
			Help:      "The number of bytes written to extracted files",
		}),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_errors_total",
			Help:      "The number of entries that could not be extracted",
		}),
		skippedDirs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_dirs_total",
			Help:      "The number of skipped directory entries",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "The duration of an extraction, in seconds",
			// use prometheus.DefBuckets
		}, []string{"type"}),
	}
}

// Hook records td. It matches unzip.TelemetryHook.
func (c *Collector) Hook(ctx context.Context, td *unzip.TelemetryData) {
	if td == nil {
		return
	}

	result := resultSuccess
	if td.ExtractionFailed {
		result = resultFailure
	}
	archiveType := td.ExtractedType
	if len(archiveType) == 0 {
		archiveType = "unknown"
	}

	c.extractions.WithLabelValues(archiveType, result).Inc()
	c.files.Add(float64(td.ExtractedFiles))
	c.bytes.Add(float64(td.ExtractionSize))
	c.errors.Add(float64(td.ExtractionErrors))
	c.skippedDirs.Add(float64(td.SkippedDirs))
	c.duration.WithLabelValues(archiveType).Observe(td.ExtractionDuration.Seconds())
}
