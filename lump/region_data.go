// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lump

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// trailerSize is the width, in bytes, of the padding-length marker appended
// to every value stored in the data region.
const trailerSize = 2

// RegionData is a lump payload that has already been aligned to a storage's
// block size and carries the 2-byte padding-length trailer the data region
// writes to disk alongside every value. It is produced either by the data
// region on read, or by AlignedAllocate/Storage.AllocateData ahead of a
// write, so that Storage.Put never needs to re-copy the payload to align
// it.
type RegionData struct {
	bytes    *block.AlignedBytes
	dataSize int
}

// NewRegionData allocates a RegionData able to hold dataSize bytes of
// payload, rounding the backing buffer up to blockSize and writing the
// trailer that records how much padding was added.
func NewRegionData(dataSize int, blockSize block.Size) *RegionData {
	size := dataSize + trailerSize
	bytes := block.NewAlignedBytes(size, blockSize)
	bytes.Align()

	trailerOffset := bytes.Len() - trailerSize
	paddingLen := bytes.Len() - size
	binary.BigEndian.PutUint16(bytes.AsBytes()[trailerOffset:], uint16(paddingLen))
	return &RegionData{bytes: bytes, dataSize: dataSize}
}

// BlockSize returns the alignment this value was built against.
func (d *RegionData) BlockSize() block.Size {
	return d.bytes.BlockSize()
}

// ExternalSize returns the full on-disk size of this value (payload,
// padding and trailer), always a multiple of BlockSize().
func (d *RegionData) ExternalSize() int {
	return d.bytes.Len()
}

// Bytes returns the payload, excluding padding and trailer.
func (d *RegionData) Bytes() []byte {
	return d.bytes.AsBytes()[:d.dataSize]
}

// BytesMut returns a mutable view of the payload.
func (d *RegionData) BytesMut() []byte {
	return d.bytes.AsBytes()[:d.dataSize]
}

// externalBytes returns the full on-disk representation: payload, padding
// and trailer.
func (d *RegionData) externalBytes() []byte {
	return d.bytes.AsBytes()
}

// WriteTo writes the full on-disk representation (payload + padding +
// trailer) to w.
func (d *RegionData) WriteTo(w io.Writer) error {
	_, err := w.Write(d.externalBytes())
	return err
}

// ReadRegionData reads len(buf) bytes from r into buf and decodes the
// trailer to recover the logical payload size.
//
// It fails with internalerror.InvalidInput if buf is too small to hold a
// trailer.
func ReadRegionData(r io.Reader, buf *block.AlignedBytes) (*RegionData, error) {
	if buf.Len() < trailerSize {
		return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"buffer of %d bytes is too small for the data region trailer", buf.Len()))
	}
	if _, err := io.ReadFull(r, buf.AsBytes()); err != nil {
		return nil, errors.WithStack(err)
	}

	paddingLen := int(binary.BigEndian.Uint16(buf.AsBytes()[buf.Len()-trailerSize:]))
	dataSize := buf.Len() - trailerSize - paddingLen
	if dataSize < 0 {
		dataSize = 0
	}
	return &RegionData{bytes: buf, dataSize: dataSize}, nil
}
