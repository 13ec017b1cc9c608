// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nvm defines the non-volatile-memory abstraction a Storage reads
// and writes through, along with the backends that implement it: a real
// file (with optional direct I/O and an advisory exclusive lock), an
// in-memory buffer for tests, and a clonable shared-memory buffer used to
// exercise Storage.open/create against the same bytes from multiple
// vantage points in a test.
package nvm

import (
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// NonVolatileMemory is the persistence abstraction backing a Storage. All
// positions and sizes involved in a read or write must fall on BlockSize()
// boundaries.
//
// Implementations are not required to be safe for concurrent use; a
// Storage (and, above it, a Device) owns its NVM exclusively.
type NonVolatileMemory interface {
	io.Reader
	io.Writer
	io.Seeker

	// Sync flushes any buffered content to the physical device. It is a
	// no-op for implementations with no internal buffering.
	Sync() error

	// Position returns the current read/write cursor.
	Position() uint64

	// Capacity returns the total addressable size in bytes.
	Capacity() uint64

	// BlockSize returns this instance's alignment unit.
	BlockSize() block.Size

	// Split divides the memory at position into two independent
	// NonVolatileMemory values covering [0, position) and
	// [position, Capacity()).
	//
	// It fails with internalerror.InvalidInput if position exceeds
	// Capacity() or is not block aligned.
	Split(position uint64) (NonVolatileMemory, NonVolatileMemory, error)
}

// ConvertToOffset resolves a whence-relative seek target (as used by
// io.Seeker's whence argument: io.SeekStart, io.SeekCurrent or
// io.SeekEnd) into an absolute offset, validating it against mem's
// capacity and current position.
func ConvertToOffset(mem NonVolatileMemory, offset int64, whence int) (uint64, error) {
	switch whence {
	case io.SeekStart:
		if offset < 0 || uint64(offset) > mem.Capacity() {
			return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
				"seek target %d is out of range [0, %d]", offset, mem.Capacity()))
		}
		return uint64(offset), nil
	case io.SeekEnd:
		v := int64(mem.Capacity()) + offset
		if v < 0 {
			return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
				"seek target %d is negative", v))
		}
		return uint64(v), nil
	case io.SeekCurrent:
		v := int64(mem.Position()) + offset
		if v < 0 {
			return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
				"seek target %d is negative", v))
		}
		return uint64(v), nil
	default:
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"unknown seek whence %d", whence))
	}
}

// AlignedWriteAll lets the caller fill a plain, unaligned buffer via f and
// takes care of copying it into an AlignedBytes (padded with arbitrary
// bytes up to the next block boundary -- any existing data in that padding
// range is overwritten) before writing it to mem.
func AlignedWriteAll(mem NonVolatileMemory, f func(w io.Writer) error) error {
	buf := &growBuffer{}
	if err := f(buf); err != nil {
		return err
	}
	aligned := block.NewAlignedBytesFromBytes(buf.bytes, mem.BlockSize())
	aligned.Align()
	_, err := mem.Write(aligned.AsBytes())
	return err
}

// AlignedReadBytes reads size bytes from mem, by way of a block-aligned
// scratch buffer, and returns exactly size bytes (i.e. any padding read to
// satisfy alignment is trimmed off).
func AlignedReadBytes(mem NonVolatileMemory, size int) (*block.AlignedBytes, error) {
	buf := block.NewAlignedBytes(size, mem.BlockSize())
	buf.Align()
	if _, err := io.ReadFull(mem, buf.AsBytes()); err != nil {
		return nil, errors.WithStack(err)
	}
	buf.Truncate(size)
	return buf, nil
}

// growBuffer is the minimal io.Writer AlignedWriteAll's callback is handed;
// it exists purely to avoid exposing a raw *[]byte in the public API.
type growBuffer struct {
	bytes []byte
}

func (b *growBuffer) Write(p []byte) (int, error) {
	b.bytes = append(b.bytes, p...)
	return len(p), nil
}
