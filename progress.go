// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"math/bits"
)

// Progress is a snapshot of an extraction. Snapshots forced at the start, the
// end or on failure report 0 of 1 or 1 of 1 bytes and carry the name of the
// source as label.
type Progress struct {
	// BytesProcessed is the number of bytes written so far
	BytesProcessed uint64

	// TotalBytes is the denominator used for normalization
	TotalBytes uint64

	// Label is the archive path or the name of the current entry
	Label string
}

// Fraction returns BytesProcessed / TotalBytes clamped to [0, 1]. A snapshot
// without total is complete.
func (p Progress) Fraction() float64 {
	if p.TotalBytes == 0 || p.BytesProcessed >= p.TotalBytes {
		return 1
	}
	return float64(p.BytesProcessed) / float64(p.TotalBytes)
}

// Percent returns the whole percentage of the snapshot, between 0 and 100.
func (p Progress) Percent() int {
	return percentOf(p.BytesProcessed, p.TotalBytes)
}

// ProgressSink receives progress snapshots. It is called on the goroutine that
// drives the extraction and must not block for long.
type ProgressSink func(Progress)

// percentOf returns floor(processed * 100 / total), clamped to 100. A total of
// 0 is 100 percent.
func percentOf(processed uint64, total uint64) int {
	if total == 0 || processed >= total {
		return 100
	}
	// processed < total, so the high word is below total and Div64 cannot overflow
	hi, lo := bits.Mul64(processed, 100)
	q, _ := bits.Div64(hi, lo, total)
	return int(q)
}

// ProgressTracker turns byte counts into progress snapshots. The sink is
// called at most once per whole percent and percentages never decrease.
// A ProgressTracker must not be shared between goroutines.
type ProgressTracker struct {
	total       uint64
	processed   uint64
	lastPercent int
	name        string
	label       string
	sink        ProgressSink
	logger      logger
}

// NewProgressTracker creates a tracker for total bytes. name labels the
// forced snapshots and, until [ProgressTracker.SetLabel] is called, every
// other snapshot. A nil sink discards all snapshots.
func NewProgressTracker(total uint64, name string, sink ProgressSink) *ProgressTracker {
	return &ProgressTracker{
		total:       total,
		lastPercent: -1,
		name:        name,
		label:       name,
		sink:        sink,
		logger:      defaultLogger,
	}
}

// SetTotal changes the denominator. It must be called before the first
// [ProgressTracker.Advance].
func (p *ProgressTracker) SetTotal(total uint64) {
	p.total = total
}

// SetLabel sets the label of following incremental snapshots.
func (p *ProgressTracker) SetLabel(label string) {
	p.label = label
}

// Processed returns the number of bytes advanced so far.
func (p *ProgressTracker) Processed() uint64 {
	return p.processed
}

// Advance adds delta processed bytes and emits a snapshot if the whole
// percentage increased.
func (p *ProgressTracker) Advance(delta uint64) {
	p.processed += delta
	percent := percentOf(p.processed, p.total)
	if percent <= p.lastPercent {
		return
	}
	p.lastPercent = percent
	p.emit(Progress{BytesProcessed: p.processed, TotalBytes: p.total, Label: p.label})
}

// Start emits a 0% snapshot.
func (p *ProgressTracker) Start() {
	p.lastPercent = 0
	p.emit(Progress{BytesProcessed: 0, TotalBytes: 1, Label: p.name})
}

// Finish emits a 100% snapshot, unless 100% was already emitted.
func (p *ProgressTracker) Finish() {
	if p.lastPercent >= 100 {
		return
	}
	p.lastPercent = 100
	p.emit(Progress{BytesProcessed: 1, TotalBytes: 1, Label: p.name})
}

// Reset emits a 0% snapshot to signal a failed extraction.
func (p *ProgressTracker) Reset() {
	p.lastPercent = 0
	p.emit(Progress{BytesProcessed: 0, TotalBytes: 1, Label: p.name})
}

// emit hands the snapshot to the sink. A panicking sink is logged and ignored.
func (p *ProgressTracker) emit(snapshot Progress) {
	if p.sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("progress sink panicked", "panic", r, "label", snapshot.Label)
		}
	}()
	p.sink(snapshot)
}
