// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocator

import (
	"testing"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/portion"
)

func mustAddr(t *testing.T, v uint64) address.Address {
	t.Helper()
	a, err := address.FromUint64(v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAllocateExhaustsCapacity(t *testing.T) {
	a := New(mustAddr(t, 100))
	p, err := a.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	if p.Start != 0 || p.Len != 100 {
		t.Fatalf("unexpected allocation %+v", p)
	}
	if _, err := a.Allocate(1); internalerror.KindOf(err) != internalerror.StorageFull {
		t.Fatalf("expected StorageFull once capacity is exhausted, got %v", err)
	}
}

func TestAllocateBestFit(t *testing.T) {
	a := New(mustAddr(t, 0))
	// Build three disjoint free ranges: 100 blocks at a low address, 10 at
	// a middle one and 50 at a high one, then ask for 10 -- best fit must
	// pick the exact-size 10-block range, not the first-fitting 100.
	a.insert(NewFreePortion(mustAddr(t, 0), 100))
	a.insert(NewFreePortion(mustAddr(t, 200), 10))
	a.insert(NewFreePortion(mustAddr(t, 300), 50))

	p, err := a.Allocate(10)
	if err != nil {
		t.Fatal(err)
	}
	if p.Start.AsUint64() != 200 {
		t.Fatalf("best fit chose start %d, want 200", p.Start.AsUint64())
	}
}

func TestAllocateTiesBreakByLowestStart(t *testing.T) {
	a := New(mustAddr(t, 0))
	a.insert(NewFreePortion(mustAddr(t, 100), 10))
	a.insert(NewFreePortion(mustAddr(t, 0), 10))

	p, err := a.Allocate(10)
	if err != nil {
		t.Fatal(err)
	}
	if p.Start.AsUint64() != 0 {
		t.Fatalf("tie-break chose start %d, want 0 (lowest)", p.Start.AsUint64())
	}
}

func TestReleaseCoalescesBothNeighbors(t *testing.T) {
	a := New(mustAddr(t, 300))
	p1, err := a.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := a.Allocate(100)
	if err != nil {
		t.Fatal(err)
	}
	// a.byStart is now just [200,300) free.
	a.Release(p1) // [0,100) free, [100,200) allocated, [200,300) free
	a.Release(p2) // everything free again, coalesced into one range

	if len(a.byStart) != 1 {
		t.Fatalf("expected coalescing to leave one free range, got %d: %+v", len(a.byStart), a.byStart)
	}
	full, err := a.Allocate(300)
	if err != nil {
		t.Fatalf("expected the coalesced range to satisfy a full-capacity allocation: %v", err)
	}
	if full.Start.AsUint64() != 0 || full.Len != 300 {
		t.Fatalf("unexpected coalesced allocation %+v", full)
	}
}

func TestBuildReconstructsFreeList(t *testing.T) {
	allocated := []portion.DataPortion{
		{Start: mustAddr(t, 50), Len: 10},
		{Start: mustAddr(t, 10), Len: 5},
	}
	a := Build(mustAddr(t, 100), allocated)

	if got := a.Usage(); got != 100-10-5 {
		t.Fatalf("Usage() = %d, want %d", got, 100-10-5)
	}

	// The gap [15,50) and the tail [60,100) must both be allocatable.
	if _, err := a.Allocate(35); err != nil {
		t.Fatalf("expected the [15,50) gap to be allocatable: %v", err)
	}
	if _, err := a.Allocate(40); err != nil {
		t.Fatalf("expected the [60,100) tail to be allocatable: %v", err)
	}
}

func TestBuildSplitsSpansLongerThanMaxLen(t *testing.T) {
	capacity := mustAddr(t, uint64(MaxLen)+10)
	a := Build(capacity, nil)

	if got := a.Usage(); got != uint64(MaxLen)+10 {
		t.Fatalf("Usage() = %d, want %d", got, uint64(MaxLen)+10)
	}
	for _, p := range a.byStart {
		if p.Len() > MaxLen {
			t.Fatalf("free portion %+v exceeds MaxLen %d", p, MaxLen)
		}
	}
	if _, err := a.Allocate(uint32(MaxLen) + 10); err == nil {
		t.Fatal("expected a single allocation spanning the capacity-exceeding split to fail")
	}
}

func TestReleaseDoesNotCoalescePastMaxLen(t *testing.T) {
	a := &Allocator{}
	a.insert(NewFreePortion(mustAddr(t, 0), MaxLen))
	a.Release(portion.DataPortion{Start: mustAddr(t, MaxLen), Len: 10})

	if len(a.byStart) != 2 {
		t.Fatalf("expected two uncoalesced free portions at the MaxLen boundary, got %d: %+v", len(a.byStart), a.byStart)
	}
	for _, p := range a.byStart {
		if p.Len() > MaxLen {
			t.Fatalf("free portion %+v exceeds MaxLen %d", p, MaxLen)
		}
	}
}

func TestFreePortionAllocateAndExtend(t *testing.T) {
	fp := NewFreePortion(mustAddr(t, 0), 100)
	result, remainder, consumed, ok := fp.Allocate(40)
	if !ok || consumed {
		t.Fatalf("unexpected Allocate result: ok=%v consumed=%v", ok, consumed)
	}
	if result.Start.AsUint64() != 0 || result.Len != 40 {
		t.Fatalf("unexpected result %+v", result)
	}
	if remainder.Start().AsUint64() != 40 || remainder.Len() != 60 {
		t.Fatalf("unexpected remainder start=%d len=%d", remainder.Start().AsUint64(), remainder.Len())
	}

	merged, ok := NewFreePortion(mustAddr(t, 0), 40).CheckedExtend(remainder)
	if !ok {
		t.Fatal("expected adjacent free portions to extend")
	}
	if merged.Start().AsUint64() != 0 || merged.Len() != 100 {
		t.Fatalf("unexpected merge result start=%d len=%d", merged.Start().AsUint64(), merged.Len())
	}

	if _, ok := NewFreePortion(mustAddr(t, 0), 10).CheckedExtend(NewFreePortion(mustAddr(t, 50), 10)); ok {
		t.Fatal("non-adjacent free portions must not extend")
	}
}
