// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// MemoryNvm is a memory-backed NonVolatileMemory, intended for tests and
// benchmarks. It does not provide the durability NonVolatileMemory's
// contract otherwise implies.
type MemoryNvm struct {
	buf      []byte
	position uint64
}

// NewMemoryNvm wraps buf as a MemoryNvm.
func NewMemoryNvm(buf []byte) *MemoryNvm {
	return &MemoryNvm{buf: buf}
}

// Bytes exposes the backing slice, for test assertions.
func (m *MemoryNvm) Bytes() []byte {
	return m.buf
}

func (m *MemoryNvm) Read(p []byte) (int, error) {
	if !m.BlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"read of %d bytes is not block aligned", len(p)))
	}
	n := copy(p, m.buf[m.position:])
	m.position += uint64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemoryNvm) Write(p []byte) (int, error) {
	if !m.BlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"write of %d bytes is not block aligned", len(p)))
	}
	n := copy(m.buf[m.position:], p)
	m.position += uint64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (m *MemoryNvm) Seek(offset int64, whence int) (int64, error) {
	position, err := ConvertToOffset(m, offset, whence)
	if err != nil {
		return 0, err
	}
	if !m.BlockSize().IsAligned(position) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"seek target %d is not block aligned", position))
	}
	m.position = position
	return int64(position), nil
}

// Sync is a no-op: MemoryNvm has no internal buffering beyond the backing
// slice itself.
func (m *MemoryNvm) Sync() error { return nil }

// Position returns the current read/write cursor.
func (m *MemoryNvm) Position() uint64 { return m.position }

// Capacity returns len(buf).
func (m *MemoryNvm) Capacity() uint64 { return uint64(len(m.buf)) }

// BlockSize always returns block.Min(); MemoryNvm does not model a
// configurable block size (use SharedMemoryNvm for that).
func (m *MemoryNvm) BlockSize() block.Size { return block.Min() }

// Split divides the buffer in two at position, consuming m.
func (m *MemoryNvm) Split(position uint64) (NonVolatileMemory, NonVolatileMemory, error) {
	if position != m.BlockSize().CeilAlign(position) {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d is not block aligned", position))
	}
	if position > m.Capacity() {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d exceeds capacity %d", position, m.Capacity()))
	}
	left := NewMemoryNvm(m.buf[:position])
	right := NewMemoryNvm(m.buf[position:])
	return left, right, nil
}
