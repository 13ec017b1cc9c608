// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package address implements the 40-bit address value used to locate
// positions within the journal and data regions of a storage.
package address

import (
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/internalerror"
)

// Max is the largest value an Address can hold (2^40 - 1).
const Max uint64 = (1 << 40) - 1

// Address is a 40-bit wide position. Its unit of measure depends on the
// region it addresses: bytes in the journal region, blocks in the data
// region.
type Address uint64

// FromUint64 converts value into an Address.
//
// It fails with internalerror.InvalidInput if value does not fit in 40 bits.
func FromUint64(value uint64) (Address, error) {
	if value > Max {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"address %d overflows the 40-bit address space", value))
	}
	return Address(value), nil
}

// AsUint64 returns the address value.
func (a Address) AsUint64() uint64 {
	return uint64(a)
}

// Add returns a+b. It panics on overflow past Max, mirroring the
// invariant-violation-is-a-bug stance used throughout this package: callers
// are expected to keep offsets within the addressable space themselves.
func (a Address) Add(b Address) Address {
	v := uint64(a) + uint64(b)
	if v > Max {
		panic("address overflow")
	}
	return Address(v)
}

// Sub returns a-b. It panics if b is greater than a.
func (a Address) Sub(b Address) Address {
	if uint64(b) > uint64(a) {
		panic("address underflow")
	}
	return a - b
}
