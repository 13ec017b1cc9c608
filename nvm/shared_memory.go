// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// SharedMemoryNvm is a memory-backed NonVolatileMemory whose underlying
// buffer is shared (via a mutex-guarded pointer) across every value
// obtained from the same original buffer, including those produced by
// Split and Clone. It exists so tests can create a storage, close it, and
// re-open a fresh handle onto the exact same bytes.
//
// Like MemoryNvm, it provides no real durability.
type SharedMemoryNvm struct {
	mu         *sync.Mutex
	buf        *[]byte
	start, end uint64
	blockSize  block.Size
	position   uint64
}

// NewSharedMemoryNvm wraps buf with the minimum block size.
func NewSharedMemoryNvm(buf []byte) *SharedMemoryNvm {
	return NewSharedMemoryNvmWithBlockSize(buf, block.Min())
}

// NewSharedMemoryNvmWithBlockSize wraps buf with an explicit block size.
func NewSharedMemoryNvmWithBlockSize(buf []byte, blockSize block.Size) *SharedMemoryNvm {
	return &SharedMemoryNvm{
		mu:        &sync.Mutex{},
		buf:       &buf,
		start:     0,
		end:       uint64(len(buf)),
		blockSize: blockSize,
	}
}

// SetBlockSize changes the block size used for alignment checks.
func (m *SharedMemoryNvm) SetBlockSize(blockSize block.Size) {
	m.blockSize = blockSize
}

// Clone returns a handle sharing the same backing buffer and the same
// [start, end) window, but with its own independent cursor.
func (m *SharedMemoryNvm) Clone() *SharedMemoryNvm {
	clone := *m
	return &clone
}

// Bytes returns a snapshot copy of the full shared buffer, for test
// assertions.
func (m *SharedMemoryNvm) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(*m.buf))
	copy(out, *m.buf)
	return out
}

func (m *SharedMemoryNvm) Read(p []byte) (int, error) {
	if !m.BlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"read of %d bytes is not block aligned", len(p)))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	window := (*m.buf)[m.position:m.end]
	n := copy(p, window)
	m.position += uint64(n)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *SharedMemoryNvm) Write(p []byte) (int, error) {
	if !m.BlockSize().IsAligned(uint64(len(p))) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"write of %d bytes is not block aligned", len(p)))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	window := (*m.buf)[m.position:m.end]
	n := copy(window, p)
	m.position += uint64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (m *SharedMemoryNvm) Seek(offset int64, whence int) (int64, error) {
	position, err := ConvertToOffset(m, offset, whence)
	if err != nil {
		return 0, err
	}
	if !m.BlockSize().IsAligned(position) {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"seek target %d is not block aligned", position))
	}
	if m.start+position > m.end {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"seek target %d exceeds window", position))
	}
	m.position = m.start + position
	return int64(position), nil
}

// Sync is a no-op.
func (m *SharedMemoryNvm) Sync() error { return nil }

// Position returns the current read/write cursor, relative to this
// handle's window.
func (m *SharedMemoryNvm) Position() uint64 { return m.position - m.start }

// Capacity returns the size of this handle's window.
func (m *SharedMemoryNvm) Capacity() uint64 { return m.end - m.start }

// BlockSize returns this handle's configured alignment unit.
func (m *SharedMemoryNvm) BlockSize() block.Size { return m.blockSize }

// Split divides this handle's window at position into two handles sharing
// the same backing buffer.
func (m *SharedMemoryNvm) Split(position uint64) (NonVolatileMemory, NonVolatileMemory, error) {
	if position != m.BlockSize().CeilAlign(position) {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d is not block aligned", position))
	}
	if position > m.Capacity() {
		return nil, nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"split position %d exceeds capacity %d", position, m.Capacity()))
	}
	left := m.Clone()
	right := m.Clone()

	left.end = left.start + position
	right.start = left.end

	left.position = left.start
	right.position = right.start
	return left, right, nil
}
