// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package portion describes the sub-regions (of the journal region and of
// the data region) that a Lump's bytes occupy, and the packed 64-bit
// encoding used to store millions of them cheaply inside a LumpIndex.
package portion

import (
	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/block"
)

// DataPortion is a sub-region of the data region, measured in blocks.
type DataPortion struct {
	// Start is the portion's first block.
	Start address.Address
	// Len is the portion's length in blocks.
	Len uint16
}

// End returns the block immediately after the portion; the half-open range
// [Start, End) is what has actually been written.
func (p DataPortion) End() address.Address {
	return p.Start.Add(address.Address(p.Len))
}

// JournalPortion is a sub-region of the journal region, measured in bytes.
type JournalPortion struct {
	// Start is the portion's first byte, relative to the journal region.
	Start address.Address
	// Len is the portion's length in bytes.
	Len uint16
}

// Kind distinguishes the two Portion variants.
type Kind int

const (
	// KindJournal marks a Portion that lives in the journal region
	// (i.e. an embedded small value).
	KindJournal Kind = iota
	// KindData marks a Portion that lives in the data region.
	KindData
)

// Portion is a tagged union over DataPortion and JournalPortion: exactly one
// of its two constructors is meaningful at a time, as indicated by Kind().
type Portion struct {
	kind    Kind
	journal JournalPortion
	data    DataPortion
}

// FromJournal wraps a JournalPortion.
func FromJournal(p JournalPortion) Portion {
	return Portion{kind: KindJournal, journal: p}
}

// FromData wraps a DataPortion.
func FromData(p DataPortion) Portion {
	return Portion{kind: KindData, data: p}
}

// Kind reports which variant this Portion holds.
func (p Portion) Kind() Kind { return p.kind }

// Journal returns the wrapped JournalPortion. It panics if Kind() is not
// KindJournal.
func (p Portion) Journal() JournalPortion {
	if p.kind != KindJournal {
		panic("portion: not a journal portion")
	}
	return p.journal
}

// Data returns the wrapped DataPortion. It panics if Kind() is not
// KindData.
func (p Portion) Data() DataPortion {
	if p.kind != KindData {
		panic("portion: not a data portion")
	}
	return p.data
}

// Len returns the portion's length in bytes, given the storage's block
// size (needed to scale a DataPortion's block count into bytes).
func (p Portion) Len(blockSize block.Size) uint32 {
	switch p.kind {
	case KindJournal:
		return uint32(p.journal.Len)
	default:
		return uint32(p.data.Len) * uint32(blockSize.AsUint16())
	}
}

// Equal reports whether p and other describe the same region.
func (p Portion) Equal(other Portion) bool {
	if p.kind != other.kind {
		return false
	}
	if p.kind == KindJournal {
		return p.journal == other.journal
	}
	return p.data == other.data
}

// U64 is the packed 64-bit representation of a Portion, used by LumpIndex
// to avoid the per-entry overhead of the tagged-union form above. Bit
// layout, high to low: 1 kind bit, 23 length bits, 40 start-address bits.
type U64 uint64

// Pack converts a Portion into its packed form.
func Pack(p Portion) U64 {
	var kind, start, length uint64
	switch p.kind {
	case KindJournal:
		kind, start, length = 0, p.journal.Start.AsUint64(), uint64(p.journal.Len)
	default:
		kind, start, length = 1, p.data.Start.AsUint64(), uint64(p.data.Len)
	}
	return U64(start | (length << 40) | (kind << 63))
}

// Unpack reverses Pack.
func Unpack(v U64) Portion {
	raw := uint64(v)
	isJournal := (raw >> 63) == 0
	length := uint16(raw >> 40)
	start, err := address.FromUint64(raw & address.Max)
	if err != nil {
		panic(err)
	}
	if isJournal {
		return FromJournal(JournalPortion{Start: start, Len: length})
	}
	return FromData(DataPortion{Start: start, Len: length})
}
