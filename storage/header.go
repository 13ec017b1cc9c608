// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage ties the journal region, the data region, and the
// in-memory lump index together into the single-file embedded store a
// caller actually opens and issues Put/Get/Delete against.
package storage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/nvm"
)

// MagicNumber identifies a lusf-formatted file.
const MagicNumber = "lusf"

const (
	// MajorVersion is incremented for on-disk format changes an older
	// version of this code cannot safely read at all.
	MajorVersion uint16 = 1
	// MinorVersion is incremented for backward-compatible additions.
	MinorVersion uint16 = 1
)

// headerBodySize is the encoded size of everything in a Header after the
// magic number and the header-size field: version(2+2) + block size(2) +
// instance uuid(16) + journal region size(8) + data region size(8).
const headerBodySize = 2 + 2 + 2 + 16 + 8 + 8

// FullHeaderSize is the total encoded size of a Header, magic number and
// header-size field included.
const FullHeaderSize = 4 + 2 + headerBodySize

// MaxJournalRegionSize is the largest journal region a Header can describe:
// the journal is byte-addressed with a 40-bit Address.
const MaxJournalRegionSize uint64 = address.Max

// MaxDataRegionSize is the largest data region a Header can describe: the
// data region is block-addressed with the same 40-bit Address, so its
// byte-size ceiling scales with the minimum block size.
const MaxDataRegionSize uint64 = address.Max * block.MinSize

// Header is the fixed-size record at the very front of a lusf file.
type Header struct {
	MajorVersion      uint16
	MinorVersion      uint16
	BlockSize         block.Size
	InstanceUUID      uuid.UUID
	JournalRegionSize uint64
	DataRegionSize    uint64
}

// RegionSize returns how many bytes of the file this header (and its
// padding, up to the next block boundary) occupies.
func (h Header) RegionSize() uint64 {
	return h.BlockSize.CeilAlign(FullHeaderSize)
}

// StorageSize returns the total file size this header describes.
func (h Header) StorageSize() uint64 {
	return h.RegionSize() + h.JournalRegionSize + h.DataRegionSize
}

// WriteTo serializes h.
func (h Header) WriteTo(w io.Writer) error {
	var buf [FullHeaderSize]byte
	copy(buf[0:4], MagicNumber)
	binary.BigEndian.PutUint16(buf[4:6], headerBodySize)
	binary.BigEndian.PutUint16(buf[6:8], h.MajorVersion)
	binary.BigEndian.PutUint16(buf[8:10], h.MinorVersion)
	binary.BigEndian.PutUint16(buf[10:12], h.BlockSize.AsUint16())
	uuidBytes, _ := h.InstanceUUID.MarshalBinary()
	copy(buf[12:28], uuidBytes)
	binary.BigEndian.PutUint64(buf[28:36], h.JournalRegionSize)
	binary.BigEndian.PutUint64(buf[36:44], h.DataRegionSize)
	_, err := w.Write(buf[:])
	return errors.WithStack(err)
}

// ReadHeaderFrom deserializes a Header, validating the magic number, the
// major version (must match exactly), the minor version (must be no newer
// than MinorVersion), the block size, and both region sizes against their
// maxima.
func ReadHeaderFrom(r io.Reader) (Header, error) {
	var fixed [6]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return Header{}, errors.WithStack(err)
	}
	if string(fixed[0:4]) != MagicNumber {
		return Header{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"not a lusf file: bad magic number %q", fixed[0:4]))
	}
	bodySize := binary.BigEndian.Uint16(fixed[4:6])
	if bodySize < headerBodySize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"header body of %d bytes is smaller than the minimum %d", bodySize, headerBodySize))
	}

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(r, body); err != nil {
		return Header{}, errors.WithStack(err)
	}

	major := binary.BigEndian.Uint16(body[0:2])
	minor := binary.BigEndian.Uint16(body[2:4])
	if major != MajorVersion {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"unsupported major version %d (expected %d)", major, MajorVersion))
	}
	if minor > MinorVersion {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"unsupported minor version %d (newer than %d)", minor, MinorVersion))
	}

	blockSize, err := block.New(binary.BigEndian.Uint16(body[4:6]))
	if err != nil {
		return Header{}, err
	}

	var id uuid.UUID
	if err := id.UnmarshalBinary(body[6:22]); err != nil {
		return Header{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"malformed instance uuid: %s", err))
	}

	journalSize := binary.BigEndian.Uint64(body[22:30])
	if journalSize > MaxJournalRegionSize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"journal region size %d exceeds the maximum %d", journalSize, MaxJournalRegionSize))
	}
	dataSize := binary.BigEndian.Uint64(body[30:38])
	if dataSize > MaxDataRegionSize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"data region size %d exceeds the maximum %d", dataSize, MaxDataRegionSize))
	}

	return Header{
		MajorVersion:      major,
		MinorVersion:      minor,
		BlockSize:         blockSize,
		InstanceUUID:      id,
		JournalRegionSize: journalSize,
		DataRegionSize:    dataSize,
	}, nil
}

// SplitRegions divides n (the whole storage file) into its journal and
// data regions, skipping over the header region at the front.
func (h Header) SplitRegions(n nvm.NonVolatileMemory) (journalRegion, dataRegion nvm.NonVolatileMemory, err error) {
	_, rest, err := n.Split(h.RegionSize())
	if err != nil {
		return nil, nil, err
	}
	return rest.Split(h.JournalRegionSize)
}

// writeHeaderRegion writes h to the very front of n, padded with its
// RegionSize's worth of block alignment.
func writeHeaderRegion(n nvm.NonVolatileMemory, h Header) error {
	if _, err := n.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	return nvm.AlignedWriteAll(n, func(w io.Writer) error {
		return h.WriteTo(w)
	})
}

// readHeaderRegion reads the Header from the very front of n.
func readHeaderRegion(n nvm.NonVolatileMemory) (Header, error) {
	if _, err := n.Seek(0, io.SeekStart); err != nil {
		return Header{}, errors.WithStack(err)
	}
	buf, err := nvm.AlignedReadBytes(n, FullHeaderSize)
	if err != nil {
		return Header{}, err
	}
	return ReadHeaderFrom(bytes.NewReader(buf.AsBytes()))
}
