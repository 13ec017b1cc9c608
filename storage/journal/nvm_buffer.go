// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"io"

	"github.com/cznic/mathutil"
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/nvm"
)

// nvmBuffer sits between the ring buffer and an aligned NonVolatileMemory,
// coalescing the ring buffer's small, often-adjacent writes into whole
// blocks so the underlying NVM never sees an unaligned access.
type nvmBuffer struct {
	inner    nvm.NonVolatileMemory
	position uint64

	writeBuf       *block.AlignedBytes
	writeBufOffset uint64
	dirty          bool

	readBuf *block.AlignedBytes
}

func newNvmBuffer(inner nvm.NonVolatileMemory) *nvmBuffer {
	bs := inner.BlockSize()
	return &nvmBuffer{
		inner:    inner,
		writeBuf: block.NewAlignedBytes(0, bs),
		readBuf:  block.NewAlignedBytes(0, bs),
	}
}

func (b *nvmBuffer) blockSize() block.Size { return b.inner.BlockSize() }

func (b *nvmBuffer) isDirtyArea(offset uint64, length int) bool {
	if !b.dirty || length == 0 || b.writeBuf.Len() == 0 {
		return false
	}
	if b.writeBufOffset < offset {
		return offset < b.writeBufOffset+uint64(b.writeBuf.Len())
	}
	return b.writeBufOffset < offset+uint64(length)
}

func (b *nvmBuffer) flush() error {
	if b.writeBuf.Len() == 0 || !b.dirty {
		return nil
	}
	if _, err := b.inner.Seek(int64(b.writeBufOffset), io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := b.inner.Write(b.writeBuf.AsBytes()); err != nil {
		return errors.WithStack(err)
	}

	if bs := int(b.blockSize().AsUint16()); b.writeBuf.Len() > bs {
		dropLen := b.writeBuf.Len() - bs
		remainder := append([]byte(nil), b.writeBuf.AsBytes()[dropLen:]...)
		b.writeBuf.Truncate(0)
		b.writeBuf.AlignedResize(bs)
		copy(b.writeBuf.AsBytes(), remainder)
		b.writeBufOffset += uint64(dropLen)
	}
	b.dirty = false
	return nil
}

func (b *nvmBuffer) checkOverflow(writeLen int) error {
	if b.position+uint64(writeLen) > b.inner.Capacity() {
		return errors.WithStack(internalerror.New(internalerror.InconsistentState,
			"journal buffer write of %d bytes at position %d overflows capacity %d",
			writeLen, b.position, b.inner.Capacity()))
	}
	return nil
}

// Sync flushes the write buffer and durably syncs the underlying NVM.
func (b *nvmBuffer) Sync() error {
	if err := b.flush(); err != nil {
		return err
	}
	return b.inner.Sync()
}

func (b *nvmBuffer) Position() uint64 { return b.position }
func (b *nvmBuffer) Capacity() uint64 { return b.inner.Capacity() }

func (b *nvmBuffer) Seek(offset int64, whence int) (int64, error) {
	position, err := nvm.ConvertToOffset(b, offset, whence)
	if err != nil {
		return 0, err
	}
	b.position = position
	return int64(position), nil
}

func (b *nvmBuffer) BlockSize() block.Size { return b.blockSize() }

// Split flushes any buffered writes and splits the underlying NVM at
// position, returning each half wrapped in its own nvmBuffer.
func (b *nvmBuffer) Split(position uint64) (nvm.NonVolatileMemory, nvm.NonVolatileMemory, error) {
	if err := b.flush(); err != nil {
		return nil, nil, err
	}
	left, right, err := b.inner.Split(position)
	if err != nil {
		return nil, nil, err
	}
	return newNvmBuffer(left), newNvmBuffer(right), nil
}

func (b *nvmBuffer) Read(p []byte) (int, error) {
	if b.isDirtyArea(b.position, len(p)) {
		if err := b.flush(); err != nil {
			return 0, err
		}
	}

	bs := b.blockSize()
	alignedStart := bs.FloorAlign(b.position)
	alignedEnd := bs.CeilAlign(b.position + uint64(len(p)))

	b.readBuf.AlignedResize(int(alignedEnd - alignedStart))
	if _, err := b.inner.Seek(int64(alignedStart), io.SeekStart); err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := io.ReadFull(b.inner, b.readBuf.AsBytes())
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, errors.WithStack(err)
	}

	start := int(b.position - alignedStart)
	end := mathutil.Max(start, mathutil.Min(start+len(p), n))
	readSize := end - start
	copy(p, b.readBuf.AsBytes()[start:end])
	b.position += uint64(readSize)
	return readSize, nil
}

func (b *nvmBuffer) Write(p []byte) (int, error) {
	if err := b.checkOverflow(len(p)); err != nil {
		return 0, err
	}

	writeBufStart := b.writeBufOffset
	writeBufEnd := writeBufStart + uint64(b.writeBuf.Len())
	if writeBufStart <= b.position && b.position <= writeBufEnd {
		start := int(b.position - b.writeBufOffset)
		end := start + len(p)
		b.writeBuf.AlignedResize(end)
		copy(b.writeBuf.AsBytes()[start:end], p)
		b.position += uint64(len(p))
		b.dirty = true
		return len(p), nil
	}

	if err := b.flush(); err != nil {
		return 0, err
	}

	bs := b.blockSize()
	if bs.IsAligned(b.position) {
		b.writeBufOffset = b.position
		b.writeBuf.AlignedResize(0)
	} else {
		size := int(bs.AsUint16())
		b.writeBufOffset = bs.FloorAlign(b.position)
		b.writeBuf.AlignedResize(size)
		if _, err := b.inner.Seek(int64(b.writeBufOffset), io.SeekStart); err != nil {
			return 0, errors.WithStack(err)
		}
		if _, err := io.ReadFull(b.inner, b.writeBuf.AsBytes()); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	return b.Write(p)
}
