// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block provides the block-alignment primitives used throughout a
// lusf-formatted storage: the BlockSize type and an aligned byte buffer
// (AlignedBytes) suitable for direct I/O.
package block

import (
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/internalerror"
)

// MinSize is the smallest permitted block size. Every BlockSize must be a
// multiple of this value.
const MinSize = 512

// Size represents the block size (the minimal unit of I/O) used by a
// Storage or a NonVolatileMemory implementation. Both the positions and the
// sizes involved in a read/write must be aligned to a Size boundary.
type Size uint16

// Min returns the smallest permitted Size.
func Min() Size {
	return Size(MinSize)
}

// New validates blockSize and returns the corresponding Size.
//
// It fails with internalerror.InvalidInput if blockSize is smaller than
// MinSize, or not a multiple of MinSize.
func New(blockSize uint16) (Size, error) {
	if blockSize < MinSize {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"block size %d is smaller than the minimum %d", blockSize, MinSize))
	}
	if blockSize%MinSize != 0 {
		return 0, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"block size %d is not a multiple of %d", blockSize, MinSize))
	}
	return Size(blockSize), nil
}

// AsUint16 returns the block size as a uint16.
func (s Size) AsUint16() uint16 {
	return uint16(s)
}

// CeilAlign returns the first block boundary at or after position.
func (s Size) CeilAlign(position uint64) uint64 {
	bs := uint64(s)
	return (position + bs - 1) / bs * bs
}

// FloorAlign returns the last block boundary at or before position.
func (s Size) FloorAlign(position uint64) uint64 {
	bs := uint64(s)
	return (position / bs) * bs
}

// IsAligned reports whether position falls on a block boundary.
func (s Size) IsAligned(position uint64) bool {
	return position%uint64(s) == 0
}

// Contains reports whether s is a multiple of other, i.e. whether regions
// aligned to other are always aligned to s as well.
func (s Size) Contains(other Size) bool {
	return s >= other && s%other == 0
}
