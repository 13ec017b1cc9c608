// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/nvm"
)

// RingBuffer is the append-only, wraparound byte region a JournalRegion
// writes its records into. Three cursors track its state:
//
//	unreleasedHead <= head <= tail   (all modulo capacity)
//
// tail is where the next record will be appended. head is the boundary
// dequeuing has reached: everything before it has already been handed to a
// caller (typically garbage collection) at least once. unreleasedHead is
// the boundary below which every record is known to be reflected
// elsewhere (the data region, or already garbage collected) and may
// safely be overwritten.
type RingBuffer struct {
	buf      *nvmBuffer
	capacity uint64

	unreleasedHead address.Address
	head           address.Address
	tail           address.Address
}

// NewRingBuffer wraps inner as an empty RingBuffer.
func NewRingBuffer(inner nvm.NonVolatileMemory) *RingBuffer {
	return &RingBuffer{buf: newNvmBuffer(inner), capacity: inner.Capacity()}
}

// Capacity returns the ring buffer's total size in bytes.
func (rb *RingBuffer) Capacity() uint64 { return rb.capacity }

// Usage returns how many bytes between unreleasedHead and tail are
// currently occupied by live or not-yet-released records.
func (rb *RingBuffer) Usage() uint64 {
	tail, head := rb.tail.AsUint64(), rb.unreleasedHead.AsUint64()
	if tail >= head {
		return tail - head
	}
	return rb.capacity - head + tail
}

// Head returns the current dequeue boundary.
func (rb *RingBuffer) Head() address.Address { return rb.head }

// Tail returns the current append position.
func (rb *RingBuffer) Tail() address.Address { return rb.tail }

// UnreleasedHead returns the current release boundary.
func (rb *RingBuffer) UnreleasedHead() address.Address { return rb.unreleasedHead }

func (rb *RingBuffer) willOverflow(size int) bool {
	return rb.tail.AsUint64()+uint64(size)+endOfRecordsSize > rb.capacity
}

// checkFreeSpace verifies that writing size record bytes (plus the
// trailing EndOfRecords marker) at tail cannot overtake unreleasedHead.
// The write end is rounded up to a block boundary because the buffered
// writer overwrites everything up to the next boundary.
func (rb *RingBuffer) checkFreeSpace(size int) error {
	writeEnd := rb.buf.BlockSize().CeilAlign(rb.tail.AsUint64() + uint64(size) + endOfRecordsSize)
	freeEnd := rb.capacity + rb.unreleasedHead.AsUint64()
	if rb.tail < rb.unreleasedHead {
		freeEnd = rb.unreleasedHead.AsUint64()
	}
	if writeEnd > freeEnd {
		return errors.WithStack(internalerror.New(internalerror.StorageFull,
			"journal region is full: unreleased_head=%d, head=%d, tail=%d, write_end=%d, free_end=%d",
			rb.unreleasedHead, rb.head, rb.tail, writeEnd, freeEnd))
	}
	return nil
}

// Enqueue appends rec, writing a GoToFront marker and wrapping to the
// front of the buffer first if rec would not otherwise fit before the end.
// It returns the Entry recording where rec actually landed.
func (rb *RingBuffer) Enqueue(rec Record) (Entry, error) {
	size := rec.ExternalSize()
	if err := rb.checkFreeSpace(size); err != nil {
		return Entry{}, err
	}

	if rb.willOverflow(size) {
		if _, err := rb.buf.Seek(int64(rb.tail.AsUint64()), io.SeekStart); err != nil {
			return Entry{}, errors.WithStack(err)
		}
		if err := GoToFront().WriteTo(rb.buf); err != nil {
			return Entry{}, err
		}
		rb.tail = 0
		if err := rb.checkFreeSpace(size); err != nil {
			return Entry{}, err
		}
	}

	start := rb.tail
	if _, err := rb.buf.Seek(int64(start.AsUint64()), io.SeekStart); err != nil {
		return Entry{}, errors.WithStack(err)
	}
	if err := rec.WriteTo(rb.buf); err != nil {
		return Entry{}, err
	}
	rb.tail = start.Add(address.Address(size))

	if _, err := rb.buf.Seek(int64(rb.tail.AsUint64()), io.SeekStart); err != nil {
		return Entry{}, errors.WithStack(err)
	}
	if err := EndOfRecords().WriteTo(rb.buf); err != nil {
		return Entry{}, err
	}

	return Entry{Start: start, Record: rec}, nil
}

func (rb *RingBuffer) scanFrom(pos address.Address, limit int) ([]Entry, address.Address, error) {
	var entries []Entry
	wrapped := false
	for limit < 0 || len(entries) < limit {
		if _, err := rb.buf.Seek(int64(pos.AsUint64()), io.SeekStart); err != nil {
			return entries, pos, errors.WithStack(err)
		}
		rec, err := ReadFrom(rb.buf)
		if err != nil {
			return entries, pos, err
		}
		switch rec.Kind {
		case KindEndOfRecords:
			return entries, pos, nil
		case KindGoToFront:
			if wrapped {
				return entries, pos, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
					"journal ring buffer wrapped past the front twice in one scan"))
			}
			wrapped = true
			pos = 0
		default:
			e := Entry{Start: pos, Record: rec}
			entries = append(entries, e)
			pos = e.End()
		}
	}
	return entries, pos, nil
}

// DequeueEntries reads up to limit records starting at head, advancing head
// past whatever it reads. A negative limit reads everything up to tail.
func (rb *RingBuffer) DequeueEntries(limit int) ([]Entry, error) {
	entries, newHead, err := rb.scanFrom(rb.head, limit)
	if err != nil {
		return entries, err
	}
	rb.head = newHead
	return entries, nil
}

// RestoreEntries replays every record from storedHead (the value a
// journal Header last persisted) up to the first EndOfRecords marker, which
// is how a reopened journal rediscovers where its tail actually is. It must
// run before any Enqueue or DequeueEntries call, and sets head and
// unreleasedHead to storedHead.
func (rb *RingBuffer) RestoreEntries(storedHead address.Address) ([]Entry, error) {
	if rb.unreleasedHead != rb.head || rb.head != rb.tail {
		return nil, errors.WithStack(internalerror.New(internalerror.InconsistentState,
			"RestoreEntries must run on a freshly opened ring buffer"))
	}
	entries, tail, err := rb.scanFrom(storedHead, -1)
	if err != nil {
		return nil, err
	}
	rb.tail = tail
	rb.head = storedHead
	rb.unreleasedHead = storedHead
	return entries, nil
}

// ReleaseBytesUntil advances unreleasedHead to until, permitting the ring
// buffer to eventually overwrite everything before it.
func (rb *RingBuffer) ReleaseBytesUntil(until address.Address) {
	rb.unreleasedHead = until
}

// ReadEmbeddedData reads the payload of an Embed record previously written
// at p.
func (rb *RingBuffer) ReadEmbeddedData(p address.Address, size uint16) ([]byte, error) {
	if _, err := rb.buf.Seek(int64(p.AsUint64()), io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(rb.buf, data); err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Sync flushes buffered writes and durably syncs the underlying NVM.
func (rb *RingBuffer) Sync() error { return rb.buf.Sync() }
