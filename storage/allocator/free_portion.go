// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package allocator implements the data region's free-space tracker: a
// best-fit allocator over the block ranges not currently occupied by any
// lump.
package allocator

import (
	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/portion"
)

// FreePortion is a free block range packed into a single uint64: 24 bits of
// length followed by 40 bits of start address, mirroring the packed layout
// portion.U64 uses for allocated portions. 24 bits of length lets one free
// portion span far more blocks than any single allocation (bounded by
// portion.DataPortion.Len's 16 bits) ever could, which matters right after
// a large file is deleted.
//
// MaxLen is the longest single span the 24-bit length field can hold; a
// free range longer than that must be represented as several adjacent
// FreePortions (see Allocator.insertSpan).
type FreePortion uint64

// MaxLen is the largest blockLen NewFreePortion (and therefore any single
// FreePortion) can represent.
const MaxLen = (1 << 24) - 1

// NewFreePortion packs a free range of blockLen blocks starting at start.
// It panics if blockLen exceeds MaxLen; callers that cannot bound blockLen
// ahead of time should split the span themselves (see Allocator.insertSpan).
func NewFreePortion(start address.Address, blockLen uint32) FreePortion {
	if blockLen > MaxLen {
		panic("allocator: free portion length exceeds the 24-bit packed field")
	}
	return FreePortion(start.AsUint64() | (uint64(blockLen) << 40))
}

// Start returns the free range's first block.
func (p FreePortion) Start() address.Address {
	a, _ := address.FromUint64(uint64(p) & address.Max)
	return a
}

// Len returns the free range's length, in blocks.
func (p FreePortion) Len() uint32 {
	return uint32(uint64(p) >> 40)
}

// End returns the block immediately after the free range.
func (p FreePortion) End() address.Address {
	return p.Start().Add(address.Address(p.Len()))
}

// CheckedExtend returns a FreePortion covering both p and other if they are
// adjacent (in either order) and the combined length still fits in the
// 24-bit length field, along with true. Otherwise it returns p unchanged
// and false -- two adjacent free portions that are individually at the cap
// are left uncoalesced rather than merged into a corrupt, truncated length,
// per the maximum-single-free-portion-length rule.
func (p FreePortion) CheckedExtend(other FreePortion) (FreePortion, bool) {
	if p.End() == other.Start() && uint64(p.Len())+uint64(other.Len()) <= MaxLen {
		return NewFreePortion(p.Start(), p.Len()+other.Len()), true
	}
	if other.End() == p.Start() && uint64(p.Len())+uint64(other.Len()) <= MaxLen {
		return NewFreePortion(other.Start(), other.Len()+p.Len()), true
	}
	return p, false
}

// Allocate carves a size-block allocation off the front of p. ok is false
// if p is smaller than size. consumed reports whether the whole of p was
// used, in which case remainder is meaningless.
func (p FreePortion) Allocate(size uint32) (result portion.DataPortion, remainder FreePortion, consumed bool, ok bool) {
	if p.Len() < size {
		return portion.DataPortion{}, 0, false, false
	}
	result = portion.DataPortion{Start: p.Start(), Len: uint16(size)}
	if p.Len() == size {
		return result, 0, true, true
	}
	remainder = NewFreePortion(p.Start().Add(address.Address(size)), p.Len()-size)
	return result, remainder, false, true
}
