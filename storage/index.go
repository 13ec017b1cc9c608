// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"sort"

	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/portion"
)

// LumpIndex is the in-memory map from every live LumpId to the Portion
// (journal-embedded or data-region) holding its bytes. It is the single
// source of truth Get/Put/Delete consult; the journal only exists to
// rebuild it after a restart.
//
// Portions are kept in their packed portion.U64 form, which is the whole
// reason this type exists instead of a bare map[lump.Id]portion.Portion:
// at millions of entries the 8-byte packed form matters.
type LumpIndex struct {
	entries map[lump.Id]portion.U64
}

// NewLumpIndex returns an empty index.
func NewLumpIndex() *LumpIndex {
	return &LumpIndex{entries: make(map[lump.Id]portion.U64)}
}

// Get returns id's portion, if present.
func (idx *LumpIndex) Get(id lump.Id) (portion.Portion, bool) {
	v, ok := idx.entries[id]
	if !ok {
		return portion.Portion{}, false
	}
	return portion.Unpack(v), true
}

// Insert records that id now lives at p, returning whatever it previously
// pointed at (if anything).
func (idx *LumpIndex) Insert(id lump.Id, p portion.Portion) (portion.Portion, bool) {
	old, existed := idx.entries[id]
	idx.entries[id] = portion.Pack(p)
	if !existed {
		return portion.Portion{}, false
	}
	return portion.Unpack(old), true
}

// Remove deletes id, returning its last portion (if it existed).
func (idx *LumpIndex) Remove(id lump.Id) (portion.Portion, bool) {
	old, ok := idx.entries[id]
	if !ok {
		return portion.Portion{}, false
	}
	delete(idx.entries, id)
	return portion.Unpack(old), true
}

// Len returns the number of live lumps.
func (idx *LumpIndex) Len() int {
	return len(idx.entries)
}

// List returns every live id, in ascending order.
func (idx *LumpIndex) List() []lump.Id {
	ids := make([]lump.Id, 0, len(idx.entries))
	for id := range idx.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lump.Compare(ids[i], ids[j]) < 0 })
	return ids
}

// ListRange returns every live id in [start, end), in ascending order.
func (idx *LumpIndex) ListRange(start, end lump.Id) []lump.Id {
	var out []lump.Id
	for _, id := range idx.List() {
		if lump.Compare(id, start) >= 0 && lump.Compare(id, end) < 0 {
			out = append(out, id)
		}
	}
	return out
}

// DataPortions returns the DataPortion of every entry that lives in the
// data region (as opposed to being embedded in the journal), used to
// rebuild a data region's free-space allocator on open.
func (idx *LumpIndex) DataPortions() []portion.DataPortion {
	var out []portion.DataPortion
	for _, v := range idx.entries {
		p := portion.Unpack(v)
		if p.Kind() == portion.KindData {
			out = append(out, p.Data())
		}
	}
	return out
}
