// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/nvm"
	"github.com/frugalos/cannyls/portion"
	"github.com/frugalos/cannyls/storage/allocator"
)

// DataRegion is the part of a storage holding large lump payloads: a flat
// block-addressed NVM plus the allocator tracking which blocks are free.
type DataRegion struct {
	allocator *allocator.Allocator
	nvm       nvm.NonVolatileMemory
	blockSize block.Size
}

// NewDataRegion wraps n (already split off to cover only the data region)
// with alloc as its free-space tracker.
func NewDataRegion(n nvm.NonVolatileMemory, blockSize block.Size, alloc *allocator.Allocator) *DataRegion {
	return &DataRegion{allocator: alloc, nvm: n, blockSize: blockSize}
}

func (dr *DataRegion) blockCount(byteSize int) uint32 {
	bs := uint64(dr.blockSize.AsUint16())
	return uint32((uint64(byteSize) + bs - 1) / bs)
}

func (dr *DataRegion) realRange(p portion.DataPortion) (offset, size uint64) {
	bs := uint64(dr.blockSize.AsUint16())
	return p.Start.AsUint64() * bs, uint64(p.Len) * bs
}

func (dr *DataRegion) toRegionData(data lump.Data) (*lump.RegionData, error) {
	if rd, ok := data.Aligned(); ok {
		if !rd.BlockSize().Contains(dr.blockSize) {
			return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
				"lump data block size %d is incompatible with the data region's block size %d",
				rd.BlockSize().AsUint16(), dr.blockSize.AsUint16()))
		}
		return rd, nil
	}
	if raw, ok := data.Unaligned(); ok {
		rd := lump.NewRegionData(len(raw), dr.blockSize)
		copy(rd.BytesMut(), raw)
		return rd, nil
	}
	return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
		"journal-embedded lump data cannot be written to the data region"))
}

// Put writes data's bytes to a freshly allocated portion of the region.
func (dr *DataRegion) Put(data lump.Data) (portion.DataPortion, error) {
	regionData, err := dr.toRegionData(data)
	if err != nil {
		return portion.DataPortion{}, err
	}

	p, err := dr.allocator.Allocate(dr.blockCount(regionData.ExternalSize()))
	if err != nil {
		return portion.DataPortion{}, err
	}

	offset, _ := dr.realRange(p)
	if _, err := dr.nvm.Seek(int64(offset), io.SeekStart); err != nil {
		dr.allocator.Release(p)
		return portion.DataPortion{}, errors.WithStack(err)
	}
	if err := regionData.WriteTo(dr.nvm); err != nil {
		dr.allocator.Release(p)
		return portion.DataPortion{}, errors.WithStack(err)
	}
	return p, nil
}

// Get reads back the bytes at p.
func (dr *DataRegion) Get(p portion.DataPortion) (*lump.RegionData, error) {
	offset, size := dr.realRange(p)
	if _, err := dr.nvm.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, errors.WithStack(err)
	}
	buf := block.NewAlignedBytes(int(size), dr.blockSize)
	return lump.ReadRegionData(dr.nvm, buf)
}

// Delete releases p back to the allocator. Calling it for a portion that
// was not actually allocated is a caller bug, not a recoverable error.
func (dr *DataRegion) Delete(p portion.DataPortion) {
	dr.allocator.Release(p)
}

// Capacity returns the region's size, in blocks.
func (dr *DataRegion) Capacity() address.Address {
	bs := dr.nvm.Capacity() / uint64(dr.blockSize.AsUint16())
	a, _ := address.FromUint64(bs)
	return a
}

// FreeBlocks returns the number of blocks not currently allocated to any
// lump.
func (dr *DataRegion) FreeBlocks() uint64 {
	return dr.allocator.Usage()
}
