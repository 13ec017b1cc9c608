// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import (
	"sort"

	"github.com/cznic/mathutil"
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/portion"
)

// Allocator tracks a data region's free block ranges and satisfies
// allocation requests with genuine best fit: of every free range large
// enough to hold the request, the smallest one is chosen (ties broken by
// lowest start address), so large free ranges are preserved for large
// requests rather than eaten away by a long run of small ones.
//
// Go has no standard-library ordered set, so the free list below is kept
// as a slice sorted by start address, searched with sort.Search; this is
// the direct idiomatic substitute for the balanced-tree approach a
// language with one would reach for.
type Allocator struct {
	byStart []FreePortion // sorted ascending by Start()
}

// New returns an allocator with a single free range spanning
// [0, capacity), split into several portions if capacity exceeds MaxLen.
func New(capacity address.Address) *Allocator {
	a := &Allocator{}
	a.insertSpan(0, capacity.AsUint64())
	return a
}

// Build reconstructs an allocator's free list from the portions already in
// use, as read back from a LumpIndex when a storage is opened.
func Build(capacity address.Address, allocated []portion.DataPortion) *Allocator {
	sorted := append([]portion.DataPortion(nil), allocated...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	a := &Allocator{}
	cursor := address.Address(0)
	for _, p := range sorted {
		if p.Start > cursor {
			a.insertSpan(cursor, p.Start.Sub(cursor).AsUint64())
		}
		cursor = p.End()
	}
	if cursor < capacity {
		a.insertSpan(cursor, capacity.Sub(cursor).AsUint64())
	}
	return a
}

// insertSpan inserts the free range [start, start+length) as however many
// FreePortions of at most MaxLen blocks it takes to cover it, per the
// maximum-single-free-portion-length rule.
func (a *Allocator) insertSpan(start address.Address, length uint64) {
	for length > 0 {
		chunk := mathutil.MinUint64(length, MaxLen)
		a.insert(NewFreePortion(start, uint32(chunk)))
		start = start.Add(address.Address(chunk))
		length -= chunk
	}
}

func (a *Allocator) search(start address.Address) int {
	return sort.Search(len(a.byStart), func(i int) bool { return a.byStart[i].Start() >= start })
}

func (a *Allocator) insert(p FreePortion) {
	i := a.search(p.Start())
	a.byStart = append(a.byStart, FreePortion(0))
	copy(a.byStart[i+1:], a.byStart[i:])
	a.byStart[i] = p
}

func (a *Allocator) removeAt(i int) {
	a.byStart = append(a.byStart[:i], a.byStart[i+1:]...)
}

// Allocate reserves size contiguous blocks, returning internalerror.StorageFull
// if no free range is large enough.
func (a *Allocator) Allocate(size uint32) (portion.DataPortion, error) {
	best := -1
	for i, p := range a.byStart {
		if p.Len() < size {
			continue
		}
		if best == -1 || p.Len() < a.byStart[best].Len() {
			best = i
		}
	}
	if best == -1 {
		return portion.DataPortion{}, errors.WithStack(internalerror.New(internalerror.StorageFull,
			"no free data region portion of at least %d blocks remains", size))
	}

	result, remainder, consumed, _ := a.byStart[best].Allocate(size)
	if consumed {
		a.removeAt(best)
	} else {
		a.byStart[best] = remainder
	}
	return result, nil
}

// Release returns a previously allocated portion to the free list, merging
// it with any adjacent free ranges.
func (a *Allocator) Release(p portion.DataPortion) {
	free := NewFreePortion(p.Start, uint32(p.Len))

	if i := a.search(free.Start()); i > 0 && a.byStart[i-1].End() == free.Start() {
		if merged, ok := a.byStart[i-1].CheckedExtend(free); ok {
			a.removeAt(i - 1)
			free = merged
		}
	}

	if j := a.search(free.End()); j < len(a.byStart) && a.byStart[j].Start() == free.End() {
		if merged, ok := free.CheckedExtend(a.byStart[j]); ok {
			a.removeAt(j)
			free = merged
		}
	}

	a.insert(free)
}

// Usage returns the total free capacity, in blocks, currently tracked.
func (a *Allocator) Usage() uint64 {
	var total uint64
	for _, p := range a.byStart {
		total += uint64(p.Len())
	}
	return total
}
