// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/portion"
	"github.com/frugalos/cannyls/storage/journal"
)

// Storage is the assembled lusf engine: the on-disk header, the in-memory
// lump index, the journal region (write-ahead log) and the data region
// (bulk payload storage). Every exported method below is meant to be
// called from a single goroutine at a time -- serializing access is the
// device package's job, not this one's.
type Storage struct {
	header  Header
	index   *LumpIndex
	journal *journal.Region
	data    *DataRegion
}

// Header returns the storage's on-disk header.
func (s *Storage) Header() Header {
	return s.header
}

// Get returns the bytes stored under id, or ok=false if no lump with that
// id exists.
func (s *Storage) Get(id lump.Id) (lump.Data, bool, error) {
	p, ok := s.index.Get(id)
	if !ok {
		return lump.Data{}, false, nil
	}
	if p.Kind() == portion.KindJournal {
		raw, err := s.journal.GetEmbeddedData(p.Journal())
		if err != nil {
			return lump.Data{}, false, err
		}
		data, err := lump.NewEmbedded(raw)
		if err != nil {
			return lump.Data{}, false, err
		}
		return data, true, nil
	}
	rd, err := s.data.Get(p.Data())
	if err != nil {
		return lump.Data{}, false, err
	}
	return lump.FromRegionData(rd), true, nil
}

// Head returns the approximate size of the lump stored under id, without
// reading its payload.
func (s *Storage) Head(id lump.Id) (lump.Header, bool) {
	p, ok := s.index.Get(id)
	if !ok {
		return lump.Header{}, false
	}
	return lump.Header{ApproximateSize: p.Len(s.header.BlockSize)}, true
}

// List returns every live lump id, in ascending order.
func (s *Storage) List() []lump.Id {
	return s.index.List()
}

// ListRange returns every live lump id in [start, end), in ascending order.
func (s *Storage) ListRange(start, end lump.Id) []lump.Id {
	return s.index.ListRange(start, end)
}

// Put stores data under id, returning true if id was newly created and
// false if it overwrote an existing lump.
//
// Any portion id previously occupied is released before the new one is
// written, so a lump is never double-counted against the allocator. For
// data bound for the data region, the write happens before the journal
// record documenting it, so a crash between the two leaves no dangling
// index entry once the journal is replayed on the next open.
func (s *Storage) Put(id lump.Id, data lump.Data) (bool, error) {
	existed, err := s.deleteIfExists(id, false)
	if err != nil {
		return false, err
	}

	if embedded, ok := data.Embedded(); ok {
		if err := s.journal.RecordsEmbed(s.index, id, embedded); err != nil {
			return false, err
		}
		return !existed, nil
	}

	p, err := s.data.Put(data)
	if err != nil {
		return false, err
	}
	if err := s.journal.RecordsPut(s.index, id, p); err != nil {
		s.data.Delete(p)
		return false, err
	}
	return !existed, nil
}

// Delete removes id, returning whether it existed.
func (s *Storage) Delete(id lump.Id) (bool, error) {
	return s.deleteIfExists(id, true)
}

// DeleteRange removes every lump id in [start, end), returning the ids
// actually removed. A single DeleteRange journal record covers the whole
// span regardless of how many ids it happened to match.
//
// Each matched id's portion is captured before the journal record is
// appended (which is what removes the ids from the index), so the
// data-region portions can still be released afterwards.
func (s *Storage) DeleteRange(start, end lump.Id) ([]lump.Id, error) {
	ids := s.index.ListRange(start, end)
	if len(ids) == 0 {
		return nil, nil
	}
	portions := make([]portion.Portion, len(ids))
	for i, id := range ids {
		portions[i], _ = s.index.Get(id)
	}
	if err := s.journal.RecordsDeleteRange(s.index, start, end); err != nil {
		return nil, err
	}
	for _, p := range portions {
		if p.Kind() == portion.KindData {
			s.data.Delete(p.Data())
		}
	}
	return ids, nil
}

func (s *Storage) deleteIfExists(id lump.Id, record bool) (bool, error) {
	old, existed := s.index.Get(id)
	if !existed {
		return false, nil
	}
	if record {
		if err := s.journal.RecordsDelete(s.index, id); err != nil {
			return false, err
		}
	} else {
		s.index.Remove(id)
	}
	if old.Kind() == portion.KindData {
		s.data.Delete(old.Data())
	}
	return true, nil
}

// AllocateData returns a Data value of the given length, pre-aligned to
// this storage's block size so that a following Put performs no extra
// copy.
func (s *Storage) AllocateData(size int) (lump.Data, error) {
	return lump.AlignedAllocate(size, s.header.BlockSize)
}

// AllocateDataWithBytes returns an aligned Data value carrying a copy of
// bytes.
func (s *Storage) AllocateDataWithBytes(data []byte) (lump.Data, error) {
	d, err := lump.AlignedAllocate(len(data), s.header.BlockSize)
	if err != nil {
		return lump.Data{}, err
	}
	copy(d.BytesMut(), data)
	return d, nil
}

// RunSideJobOnce performs one unit of background maintenance: a journal GC
// queue refill, a sync of pending appends, or a batch of GC steps followed
// by a sync-countdown tick. The device worker calls it whenever it has gone
// idle.
func (s *Storage) RunSideJobOnce() error {
	return s.journal.RunSideJobOnce(s.index)
}

// JournalSync forces the journal's buffered writes to disk, independent
// of the normal sync-interval cadence.
func (s *Storage) JournalSync() error {
	return s.journal.Sync()
}

// JournalGC runs the journal's garbage collector to completion over
// whatever is currently in the ring buffer.
func (s *Storage) JournalGC() error {
	return s.journal.GCAllEntries(s.index)
}

// JournalSnapshot reports the journal ring buffer's current cursor
// positions, for diagnostics and tests.
func (s *Storage) JournalSnapshot() journal.Snapshot {
	return s.journal.TakeSnapshot()
}

// SetAutomaticGCMode toggles whether every journal append also performs
// one GC step. It defaults to enabled; tests that want deterministic
// control over GC timing disable it and drive JournalGC/RunSideJobOnce by
// hand.
func (s *Storage) SetAutomaticGCMode(enabled bool) {
	s.journal.SetAutomaticGCMode(enabled)
}

// Usage reports the data region's free capacity in blocks, and the number
// of live lumps in the index.
type Usage struct {
	FreeBlocks uint64
	LumpCount  int
}

// Usage reports the storage's current allocator and index occupancy.
func (s *Storage) Usage() Usage {
	return Usage{FreeBlocks: s.data.FreeBlocks(), LumpCount: s.index.Len()}
}

// RangeUsage reports the number of live lumps in [start, end) and their
// combined approximate size, in the same units Head reports for a single
// lump (native portion length, rounded up to the data region's block
// boundary for data-region lumps).
type RangeUsage struct {
	LumpCount       int
	ApproximateSize uint64
}

// UsageRange reports RangeUsage over [start, end), without reading any
// lump's payload.
func (s *Storage) UsageRange(start, end lump.Id) RangeUsage {
	var u RangeUsage
	for _, id := range s.index.ListRange(start, end) {
		p, ok := s.index.Get(id)
		if !ok {
			continue
		}
		u.LumpCount++
		u.ApproximateSize += uint64(p.Len(s.header.BlockSize))
	}
	return u
}
