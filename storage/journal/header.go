// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/nvm"
)

// Header is the small fixed record stored at the very start of the journal
// region, recording where the ring buffer's head was as of the last sync.
// A reopen replays records from the stored head onward and skips those
// before it. Bytes past the persisted head are never released before the
// header is rewritten, so a stale header only costs extra replay.
type Header struct {
	RingBufferHead uint64
}

const headerEncodedSize = 8

// RegionSize returns how many bytes of the journal region this header
// occupies: always exactly one block, regardless of the header's encoded
// size, so the ring buffer proper always starts on a block boundary.
func (h Header) RegionSize(blockSize block.Size) uint16 {
	return blockSize.AsUint16()
}

// WriteTo serializes h into buf, which must be at least one block long;
// the remainder is zero-padded.
func (h Header) WriteTo(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	binary.BigEndian.PutUint64(buf[:headerEncodedSize], h.RingBufferHead)
}

// ReadHeaderFrom parses a Header out of the first headerEncodedSize bytes
// of buf.
func ReadHeaderFrom(buf []byte) Header {
	return Header{RingBufferHead: binary.BigEndian.Uint64(buf[:headerEncodedSize])}
}

// HeaderRegion wraps the one-block region at the front of a journal's NVM
// reserved for its Header.
type HeaderRegion struct {
	nvm nvm.NonVolatileMemory
	buf []byte
}

// NewHeaderRegion wraps the given NVM (already positioned at the journal
// region's start) as a HeaderRegion.
func NewHeaderRegion(n nvm.NonVolatileMemory) *HeaderRegion {
	return &HeaderRegion{nvm: n, buf: make([]byte, n.BlockSize().AsUint16())}
}

// Write persists h to the front of the region.
func (r *HeaderRegion) Write(h Header) error {
	h.WriteTo(r.buf)
	if _, err := r.nvm.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := r.nvm.Write(r.buf); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Sync durably syncs the underlying NVM.
func (r *HeaderRegion) Sync() error { return r.nvm.Sync() }

// Read reads back the persisted Header.
func (r *HeaderRegion) Read() (Header, error) {
	if _, err := r.nvm.Seek(0, io.SeekStart); err != nil {
		return Header{}, errors.WithStack(err)
	}
	if _, err := io.ReadFull(r.nvm, r.buf); err != nil {
		return Header{}, errors.WithStack(err)
	}
	return ReadHeaderFrom(r.buf), nil
}
