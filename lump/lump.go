// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lump defines the unit of data a storage stores: a 128-bit LumpId
// paired with up to ~30MB of arbitrary bytes. cannyls itself performs no
// integrity checking of lump contents; that is left to the caller.
package lump

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// IDSize is the width, in bytes, of a LumpId.
const IDSize = 16

// Id is a lump's 128-bit identifier, stored big-endian.
type Id [IDSize]byte

// NewID builds an Id from a big.Int, which must fit in 128 bits.
func NewID(v *big.Int) Id {
	var id Id
	b := v.Bytes()
	if len(b) > IDSize {
		panic("lump: id overflows 128 bits")
	}
	copy(id[IDSize-len(b):], b)
	return id
}

// ParseID parses a hex-encoded (up to 32 digits, leading zeroes optional)
// LumpId, e.g. both "ab12" and "000000ab12" parse to the same Id.
//
// It fails with internalerror.InvalidInput if s is not valid hex or encodes
// a value wider than 128 bits.
func ParseID(s string) (Id, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	if len(s) > IDSize*2 {
		return Id{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"lump id %q is wider than 128 bits", s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Id{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"lump id %q is not valid hex: %s", s, err))
	}
	var id Id
	copy(id[IDSize-len(raw):], raw)
	return id, nil
}

// String formats the id as a zero-padded 32-digit hex string.
func (id Id) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the big-endian byte representation.
func (id Id) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

// Compare orders ids lexicographically on their big-endian bytes, which
// matches numeric order.
func Compare(a, b Id) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// MaxSize is the largest data length (in bytes) a Data can hold: the
// largest size representable with the minimum block size, minus the
// trailing padding-length marker.
const MaxSize = 0xFFFF*block.MinSize - 2

// MaxEmbeddedSize is the largest data length that can be embedded directly
// in the journal region instead of the data region.
const MaxEmbeddedSize = 0xFFFF

// dataKind distinguishes the storage representation backing a Data value.
type dataKind int

const (
	kindJournal dataKind = iota
	kindDataRegion
	kindUnaligned
)

// Data holds a lump's payload.
//
// Constructing one with New leaves it unaligned to any block boundary; on
// Put the storage must copy it once to align it. Callers who plan to Put
// repeatedly, or who care about that one extra copy, should obtain a Data
// through Storage.AllocateData instead, which returns one already aligned
// to the storage's block size.
type Data struct {
	kind      dataKind
	unaligned []byte
	embedded  []byte
	region    *RegionData
}

// New wraps data for storage in the data region. It fails with
// internalerror.InvalidInput if data exceeds MaxSize.
func New(data []byte) (Data, error) {
	if len(data) > MaxSize {
		return Data{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"lump data of %d bytes exceeds the %d byte maximum", len(data), MaxSize))
	}
	return Data{kind: kindUnaligned, unaligned: data}, nil
}

// NewEmbedded wraps data for embedding directly in the journal region. It
// fails with internalerror.InvalidInput if data exceeds MaxEmbeddedSize.
func NewEmbedded(data []byte) (Data, error) {
	if len(data) > MaxEmbeddedSize {
		return Data{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"embedded lump data of %d bytes exceeds the %d byte maximum", len(data), MaxEmbeddedSize))
	}
	return Data{kind: kindJournal, embedded: data}, nil
}

// FromRegionData wraps an already block-aligned RegionData, as produced by
// the data region when reading back a stored lump.
func FromRegionData(d *RegionData) Data {
	return Data{kind: kindDataRegion, region: d}
}

// AlignedAllocate allocates a Data of the given length, pre-aligned to
// blockSize, with unspecified initial contents.
func AlignedAllocate(dataLen int, blockSize block.Size) (Data, error) {
	if dataLen > MaxSize {
		return Data{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"lump data of %d bytes exceeds the %d byte maximum", dataLen, MaxSize))
	}
	return FromRegionData(NewRegionData(dataLen, blockSize)), nil
}

// Bytes returns the payload.
func (d Data) Bytes() []byte {
	switch d.kind {
	case kindJournal:
		return d.embedded
	case kindDataRegion:
		return d.region.Bytes()
	default:
		return d.unaligned
	}
}

// BytesMut returns a mutable view of the payload.
func (d Data) BytesMut() []byte {
	switch d.kind {
	case kindJournal:
		return d.embedded
	case kindDataRegion:
		return d.region.BytesMut()
	default:
		return d.unaligned
	}
}

// Equal reports whether two Data values carry the same bytes.
func (d Data) Equal(other Data) bool {
	a, b := d.Bytes(), other.Bytes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (d Data) String() string {
	b := d.Bytes()
	n := len(b)
	if n > 128 {
		n = 128
	}
	omitted := ""
	if n < len(b) {
		omitted = fmt.Sprintf(" (%d bytes omitted)", len(b)-n)
	}
	return fmt.Sprintf("Data{bytes: %v%s}", b[:n], omitted)
}

// Embedded returns the raw bytes and true if this Data was built with
// NewEmbedded (and therefore belongs in the journal region).
func (d Data) Embedded() ([]byte, bool) {
	if d.kind != kindJournal {
		return nil, false
	}
	return d.embedded, true
}

// Aligned returns the backing RegionData and true if this Data was produced
// by AlignedAllocate/FromRegionData (and therefore needs no extra copy
// before being handed to the data region).
func (d Data) Aligned() (*RegionData, bool) {
	if d.kind != kindDataRegion {
		return nil, false
	}
	return d.region, true
}

// Unaligned returns the raw bytes and true if this Data was built with New
// and still needs to be copied into an aligned RegionData before it can be
// written to the data region.
func (d Data) Unaligned() ([]byte, bool) {
	if d.kind != kindUnaligned {
		return nil, false
	}
	return d.unaligned, true
}

// Header is the summary information returned by a HEAD-style lookup.
type Header struct {
	// ApproximateSize is the data size in bytes, rounded up to the data
	// region's block boundary (so up to two block sizes larger than the
	// real size), except for journal-embedded lumps where it is exact.
	ApproximateSize uint32
}
