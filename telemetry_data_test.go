// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/go-unzip"
)

// TestDataString tests the String method of the data struct
func TestDataString(t *testing.T) {
	m := unzip.TelemetryData{
		ID:                  "abc",
		EstimatedSize:       2048,
		ExtractedType:       "zip",
		ExtractionDuration:  time.Duration(5 * time.Millisecond),
		ExtractionSize:      1024,
		ExtractedFiles:      5,
		ExtractionErrors:    1,
		LastExtractionError: fmt.Errorf("example error"),
		InputSize:           4096,
		SkippedDirs:         1,
	}

	expected := `{"last_extraction_error":"example error","id":"abc","estimated_size":2048,"extracted_files":5,"extraction_duration":5000000,"extraction_errors":1,"extraction_failed":false,"extraction_size":1024,"extracted_type":"zip","input_size":4096,"skipped_dirs":1}`
	if m.String() != expected {
		t.Errorf("Expected '%s', but got '%s'", expected, m.String())
	}
}

// TestDataStringWithoutError tests that a missing error is an empty string
func TestDataStringWithoutError(t *testing.T) {
	m := unzip.TelemetryData{InputSize: -1}

	expected := `{"last_extraction_error":"","id":"","estimated_size":0,"extracted_files":0,"extraction_duration":0,"extraction_errors":0,"extraction_failed":false,"extraction_size":0,"extracted_type":"","input_size":-1,"skipped_dirs":0}`
	if m.String() != expected {
		t.Errorf("Expected '%s', but got '%s'", expected, m.String())
	}
}
