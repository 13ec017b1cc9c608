// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package internalerror defines the error taxonomy shared by every layer of
// the storage engine. Every fallible operation returns (or wraps, via
// github.com/pkg/errors) one of the sentinel errors declared here, so that
// callers can recover the failure Kind with Cause regardless of how much
// context has been layered on top.
package internalerror

import "github.com/pkg/errors"

// Kind classifies the root cause of an error.
type Kind int

const (
	// DeviceBusy indicates the device's command queue is temporarily
	// unable to accept more work.
	DeviceBusy Kind = iota

	// DeviceTerminated indicates the device's worker has already shut
	// down; the device can no longer be used.
	DeviceTerminated

	// StorageFull indicates the data region has no free portion large
	// enough to satisfy an allocation, or the journal ring buffer has no
	// room for a record.
	StorageFull

	// StorageCorrupted indicates an on-disk invariant was violated (bad
	// checksum, unknown record tag, malformed header).
	StorageCorrupted

	// InvalidInput indicates a caller-supplied argument violates a
	// documented precondition.
	InvalidInput

	// InconsistentState indicates an in-memory invariant was violated;
	// the owning Storage must not be used further.
	InconsistentState

	// Other covers everything else (I/O errors from the underlying NVM,
	// OS-level failures, and so on).
	Other
)

func (k Kind) String() string {
	switch k {
	case DeviceBusy:
		return "DeviceBusy"
	case DeviceTerminated:
		return "DeviceTerminated"
	case StorageFull:
		return "StorageFull"
	case StorageCorrupted:
		return "StorageCorrupted"
	case InvalidInput:
		return "InvalidInput"
	case InconsistentState:
		return "InconsistentState"
	default:
		return "Other"
	}
}

// kindError is the concrete sentinel type. Sentinels compare equal to
// themselves via errors.Is (they have no wrapped cause of their own), and
// every exported sentinel below is one.
type kindError struct {
	kind Kind
}

func (e *kindError) Error() string { return e.kind.String() }

// Sentinel errors, one per Kind. Application code never returns these bare;
// it wraps them with github.com/pkg/errors (errors.Wrap/WithMessagef) to
// attach context, and recovers the Kind later via KindOf.
var (
	ErrDeviceBusy        = &kindError{DeviceBusy}
	ErrDeviceTerminated  = &kindError{DeviceTerminated}
	ErrStorageFull       = &kindError{StorageFull}
	ErrStorageCorrupted  = &kindError{StorageCorrupted}
	ErrInvalidInput      = &kindError{InvalidInput}
	ErrInconsistentState = &kindError{InconsistentState}
	ErrOther             = &kindError{Other}
)

func sentinelFor(kind Kind) error {
	switch kind {
	case DeviceBusy:
		return ErrDeviceBusy
	case DeviceTerminated:
		return ErrDeviceTerminated
	case StorageFull:
		return ErrStorageFull
	case StorageCorrupted:
		return ErrStorageCorrupted
	case InvalidInput:
		return ErrInvalidInput
	case InconsistentState:
		return ErrInconsistentState
	default:
		return ErrOther
	}
}

// New builds a new error of the given kind with a formatted message, keeping
// the sentinel as its cause so KindOf still recovers it.
func New(kind Kind, format string, args ...interface{}) error {
	return errors.Wrapf(sentinelFor(kind), format, args...)
}

// KindOf walks err's cause chain (via errors.Cause) and returns the Kind of
// the first internalerror sentinel found, or Other if none is present.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		cause := errors.Cause(err)
		if cause == err {
			break
		}
		err = cause
	}
	return Other
}

// IsFatal reports whether an error of this kind should terminate the
// device's worker goroutine rather than merely fail the offending command.
func (k Kind) IsFatal() bool {
	switch k {
	case InconsistentState, StorageCorrupted, Other:
		return true
	default:
		return false
	}
}
