// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unzip

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an extraction failed.
type ErrorKind int

const (
	// KindUnknown is the zero value and never returned by this package.
	KindUnknown ErrorKind = iota

	// KindSourceUnreadable means the archive could not be opened or parsed.
	KindSourceUnreadable

	// KindDestinationUnwritable means the destination directory could not
	// be created or is not a directory.
	KindDestinationUnwritable

	// KindTraversalDetected means an entry resolves outside the destination.
	KindTraversalDetected

	// KindEntryIOFailure means a single entry could not be read or written.
	// It is only returned if [WithContinueOnEntryError] is disabled.
	KindEntryIOFailure

	// KindCanceled means the context was canceled during the extraction.
	KindCanceled
)

var (
	// ErrSourceUnreadable is matched by errors of kind [KindSourceUnreadable].
	ErrSourceUnreadable = errors.New("cannot read archive")

	// ErrDestinationUnwritable is matched by errors of kind [KindDestinationUnwritable].
	ErrDestinationUnwritable = errors.New("cannot write destination")

	// ErrTraversalDetected is matched by errors of kind [KindTraversalDetected].
	ErrTraversalDetected = errors.New("path traversal detected")

	// ErrEntryIOFailure is matched by errors of kind [KindEntryIOFailure].
	ErrEntryIOFailure = errors.New("cannot extract entry")

	// ErrCanceled is matched by errors of kind [KindCanceled].
	ErrCanceled = errors.New("extraction canceled")

	errUnknown = errors.New("extraction failed")
)

// String returns the name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindSourceUnreadable:
		return "SourceUnreadable"
	case KindDestinationUnwritable:
		return "DestinationUnwritable"
	case KindTraversalDetected:
		return "TraversalDetected"
	case KindEntryIOFailure:
		return "EntryIOFailure"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindSourceUnreadable:
		return ErrSourceUnreadable
	case KindDestinationUnwritable:
		return ErrDestinationUnwritable
	case KindTraversalDetected:
		return ErrTraversalDetected
	case KindEntryIOFailure:
		return ErrEntryIOFailure
	case KindCanceled:
		return ErrCanceled
	default:
		return errUnknown
	}
}

// Error is returned by [Extract] and carries the kind of the failure, the
// path it relates to and the underlying cause. Callers branch on the kind
// with [errors.Is] against the Err* sentinels or with [errors.As].
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if len(e.Path) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// newError creates an *Error of kind k.
func newError(k ErrorKind, path string, err error) *Error {
	return &Error{Kind: k, Path: path, Err: err}
}
