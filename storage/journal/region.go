// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/nvm"
	"github.com/frugalos/cannyls/portion"
)

// gcCountInSideJob is how many garbage-collection steps RunSideJobOnce
// performs before giving up and trying a sync instead, so a side job never
// monopolizes the device worker for an unbounded stretch.
const gcCountInSideJob = 64

// Index is the subset of a LumpIndex a JournalRegion needs, so this package
// never has to import the storage package that owns the concrete type.
type Index interface {
	Get(id lump.Id) (portion.Portion, bool)
	Insert(id lump.Id, p portion.Portion) (portion.Portion, bool)
	Remove(id lump.Id) (portion.Portion, bool)
	ListRange(start, end lump.Id) []lump.Id
}

// Region is the write-ahead log of a storage: a header recording the ring
// buffer's last-synced head, and the ring buffer itself.
type Region struct {
	headerRegion *HeaderRegion
	ringBuffer   *RingBuffer
	options      RegionOptions

	gcQueue       []Entry
	syncCountdown uint64
	automaticGC   bool
}

// Initialize formats a fresh journal region: a header recording an empty
// ring buffer, followed by that ring buffer's own EndOfRecords marker.
func Initialize(n nvm.NonVolatileMemory, options RegionOptions) error {
	headerPart, bodyPart, err := n.Split(uint64(options.BlockSize.AsUint16()))
	if err != nil {
		return err
	}
	hr := NewHeaderRegion(headerPart)
	if err := hr.Write(Header{RingBufferHead: 0}); err != nil {
		return err
	}
	if err := hr.Sync(); err != nil {
		return err
	}
	if _, err := bodyPart.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if err := nvm.AlignedWriteAll(bodyPart, func(w io.Writer) error {
		return EndOfRecords().WriteTo(w)
	}); err != nil {
		return err
	}
	return errors.WithStack(bodyPart.Sync())
}

// Open reads an existing journal region's header, replays its ring buffer
// into index, and returns the assembled Region.
func Open(n nvm.NonVolatileMemory, options RegionOptions, index Index) (*Region, error) {
	headerPart, bodyPart, err := n.Split(uint64(options.BlockSize.AsUint16()))
	if err != nil {
		return nil, err
	}
	hr := NewHeaderRegion(headerPart)
	header, err := hr.Read()
	if err != nil {
		return nil, err
	}
	rb := NewRingBuffer(bodyPart)
	entries, err := rb.RestoreEntries(address.Address(header.RingBufferHead))
	if err != nil {
		return nil, err
	}
	region := &Region{
		headerRegion:  hr,
		ringBuffer:    rb,
		options:       options,
		syncCountdown: options.SyncInterval,
		automaticGC:   true,
	}
	if err := region.restore(index, entries); err != nil {
		return nil, err
	}
	return region, nil
}

func (r *Region) restore(index Index, entries []Entry) error {
	for _, e := range entries {
		switch e.Record.Kind {
		case KindPut:
			index.Insert(e.Record.LumpID, portion.FromData(e.Record.Portion))
		case KindEmbed:
			index.Insert(e.Record.LumpID, portion.FromJournal(r.embeddedPortion(e)))
		case KindDelete:
			index.Remove(e.Record.LumpID)
		case KindDeleteRange:
			for _, id := range index.ListRange(e.Record.RangeStart, e.Record.RangeEnd) {
				index.Remove(id)
			}
		}
	}
	return nil
}

func (r *Region) embeddedPortion(e Entry) portion.JournalPortion {
	return portion.JournalPortion{
		Start: e.Start.Add(address.Address(EmbeddedDataOffset)),
		Len:   uint16(len(e.Record.Data)),
	}
}

// RecordsPut appends a Put record for id and reflects it in index.
func (r *Region) RecordsPut(index Index, id lump.Id, p portion.DataPortion) error {
	if _, err := r.ringBuffer.Enqueue(Put(id, p)); err != nil {
		return err
	}
	index.Insert(id, portion.FromData(p))
	return r.afterAppend(index)
}

// RecordsEmbed appends an Embed record carrying data and reflects it in
// index.
func (r *Region) RecordsEmbed(index Index, id lump.Id, data []byte) error {
	entry, err := r.ringBuffer.Enqueue(Embed(id, data))
	if err != nil {
		return err
	}
	index.Insert(id, portion.FromJournal(r.embeddedPortion(entry)))
	return r.afterAppend(index)
}

// RecordsDelete appends a Delete record for id and removes it from index.
func (r *Region) RecordsDelete(index Index, id lump.Id) error {
	if _, err := r.ringBuffer.Enqueue(Delete(id)); err != nil {
		return err
	}
	index.Remove(id)
	return r.afterAppend(index)
}

// RecordsDeleteRange appends a single DeleteRange record covering
// [start, end) and removes every id currently in that range from index.
func (r *Region) RecordsDeleteRange(index Index, start, end lump.Id) error {
	if _, err := r.ringBuffer.Enqueue(DeleteRange(start, end)); err != nil {
		return err
	}
	for _, id := range index.ListRange(start, end) {
		index.Remove(id)
	}
	return r.afterAppend(index)
}

// GetEmbeddedData reads back the payload of a previously embedded lump.
func (r *Region) GetEmbeddedData(p portion.JournalPortion) ([]byte, error) {
	return r.ringBuffer.ReadEmbeddedData(p.Start, p.Len)
}

func (r *Region) afterAppend(index Index) error {
	if r.automaticGC {
		if err := r.gcOnce(index); err != nil {
			return err
		}
	}
	return r.trySync()
}

// trySync burns one tick off the sync-interval countdown, issuing the
// actual sync once it runs out.
func (r *Region) trySync() error {
	if r.syncCountdown == 0 {
		return r.Sync()
	}
	r.syncCountdown--
	return nil
}

// RunSideJobOnce performs one unit of background maintenance, in order of
// precedence: top up the garbage-collection queue when it has run dry,
// else flush any appends still waiting on the sync-interval countdown,
// else work through the queue (up to gcCountInSideJob entries) and burn a
// countdown tick.
func (r *Region) RunSideJobOnce(index Index) error {
	switch {
	case len(r.gcQueue) == 0:
		return r.fillGCQueue(index)
	case r.syncCountdown != r.options.SyncInterval:
		return r.Sync()
	default:
		for i := 0; i < gcCountInSideJob && len(r.gcQueue) > 0; i++ {
			if err := r.gcOnce(index); err != nil {
				return err
			}
		}
		return r.trySync()
	}
}

// fillGCQueue refills an empty garbage-collection queue from the ring
// buffer. An empty queue means every record between unreleasedHead and
// head has been relocated already, so the current head is persisted as the
// new journal entry start position (releasing everything before it) first.
func (r *Region) fillGCQueue(index Index) error {
	if err := r.writeJournalHeader(); err != nil {
		return err
	}
	if r.ringBuffer.Head() == r.ringBuffer.Tail() {
		return nil
	}
	entries, err := r.ringBuffer.DequeueEntries(int(r.options.GCQueueSize))
	if err != nil {
		return err
	}
	r.gcQueue = entries
	return nil
}

// gcOnce performs one unit of garbage collection: it discards queued
// entries until it finds one that is still live, and copies that one
// forward to the tail so its old slot can eventually be reclaimed. If the
// queue is empty and the ring buffer is over half full, the queue is
// topped up first rather than waiting for the next idle tick.
func (r *Region) gcOnce(index Index) error {
	if len(r.gcQueue) == 0 && r.ringBuffer.Capacity() < r.ringBuffer.Usage()*2 {
		if err := r.fillGCQueue(index); err != nil {
			return err
		}
	}
	for len(r.gcQueue) > 0 {
		entry := r.gcQueue[0]
		r.gcQueue = r.gcQueue[1:]

		garbage, err := r.isGarbage(index, entry)
		if err != nil {
			return err
		}
		if !garbage {
			return r.reappend(index, entry)
		}
	}
	return nil
}

func (r *Region) isGarbage(index Index, entry Entry) (bool, error) {
	switch entry.Record.Kind {
	case KindPut:
		cur, ok := index.Get(entry.Record.LumpID)
		if !ok || cur.Kind() != portion.KindData {
			return true, nil
		}
		return cur.Data() != entry.Record.Portion, nil
	case KindEmbed:
		cur, ok := index.Get(entry.Record.LumpID)
		if !ok || cur.Kind() != portion.KindJournal {
			return true, nil
		}
		return cur.Journal() != r.embeddedPortion(entry), nil
	default:
		// Delete/DeleteRange records are transient: by the time gc
		// reaches one in ring order, every earlier record it could
		// have invalidated has already been swept.
		return true, nil
	}
}

func (r *Region) reappend(index Index, entry Entry) error {
	newEntry, err := r.ringBuffer.Enqueue(entry.Record)
	if err != nil {
		return err
	}
	if entry.Record.Kind == KindEmbed {
		index.Insert(entry.Record.LumpID, portion.FromJournal(r.embeddedPortion(newEntry)))
	}
	return nil
}

// between reports whether y lies on the circular walk from x to z.
func between(x, y, z address.Address) bool {
	return (x <= y && y <= z) || (z <= x && x <= y) || (y <= z && z <= x)
}

// GCAllEntries runs gc to completion: every entry present in the ring
// buffer as of the call is either dropped as garbage or copied forward,
// until the scan boundary passes the tail captured at the start of the
// call, at which point the advanced head is persisted and everything
// before it released.
func (r *Region) GCAllEntries(index Index) error {
	limit := r.ringBuffer.Tail()
	for {
		beforeHead := r.ringBuffer.Head()
		if len(r.gcQueue) == 0 {
			if err := r.fillGCQueue(index); err != nil {
				return err
			}
		}
		for len(r.gcQueue) > 0 {
			if err := r.gcOnce(index); err != nil {
				return err
			}
		}
		if between(beforeHead, limit, r.ringBuffer.Head()) {
			break
		}
	}
	return r.writeJournalHeader()
}

// writeJournalHeader persists the current head as the position recovery
// will scan from, then advances unreleasedHead to it: everything between
// the two has been relocated, and nothing past the persisted head may be
// overwritten before it is persisted.
func (r *Region) writeJournalHeader() error {
	head := r.ringBuffer.Head()
	if err := r.headerRegion.Write(Header{RingBufferHead: uint64(head)}); err != nil {
		return err
	}
	if err := r.headerRegion.Sync(); err != nil {
		return err
	}
	r.ringBuffer.ReleaseBytesUntil(head)
	return nil
}

// Sync flushes the ring buffer's buffered writes down to the device and
// restarts the sync-interval countdown. The journal header is deliberately
// not rewritten here: it only ever moves when the gc queue turns over (see
// writeJournalHeader).
func (r *Region) Sync() error {
	if err := r.ringBuffer.Sync(); err != nil {
		return err
	}
	r.syncCountdown = r.options.SyncInterval
	return nil
}

// SetAutomaticGCMode toggles whether every Records* call also performs one
// gc step to amortize collection cost. The sync-interval countdown keeps
// running either way.
func (r *Region) SetAutomaticGCMode(enabled bool) {
	r.automaticGC = enabled
}

// Snapshot describes the ring buffer's current cursor positions, for
// diagnostics.
type Snapshot struct {
	UnreleasedHead address.Address
	Head           address.Address
	Tail           address.Address
}

// TakeSnapshot returns the ring buffer's current cursor positions.
func (r *Region) TakeSnapshot() Snapshot {
	return Snapshot{
		UnreleasedHead: r.ringBuffer.UnreleasedHead(),
		Head:           r.ringBuffer.Head(),
		Tail:           r.ringBuffer.Tail(),
	}
}
