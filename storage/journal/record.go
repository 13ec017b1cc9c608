// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package journal implements the write-ahead log a storage appends every
// mutation to before it is reflected in the in-memory index: a ring buffer
// of tagged, checksummed records, periodically garbage collected and
// synced to the underlying device.
package journal

import (
	"encoding/binary"
	"hash/adler32"
	"io"

	"github.com/pkg/errors"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/portion"
)

const (
	tagSize          = 1
	checksumSize     = 4
	lengthSize       = 2
	portionSize      = 5
	endOfRecordsSize = checksumSize + tagSize

	// EmbeddedDataOffset is the byte offset, relative to an Embed
	// record's start, at which its payload begins.
	EmbeddedDataOffset = checksumSize + tagSize + lump.IDSize + lengthSize
)

const (
	tagEndOfRecords  byte = 0
	tagGoToFront     byte = 1
	tagPut           byte = 3
	tagEmbed         byte = 4
	tagDelete        byte = 5
	tagDeleteRange   byte = 6
)

// Kind enumerates the record variants a ring buffer can hold.
type Kind int

const (
	KindEndOfRecords Kind = iota
	KindGoToFront
	KindPut
	KindEmbed
	KindDelete
	KindDeleteRange
)

// Record is a single journal entry. Exactly the fields relevant to Kind
// are meaningful; the rest are left at their zero value.
type Record struct {
	Kind Kind

	LumpID  lump.Id
	Portion portion.DataPortion
	Data    []byte

	RangeStart lump.Id
	RangeEnd   lump.Id
}

// EndOfRecords marks the ring buffer's logical tail.
func EndOfRecords() Record { return Record{Kind: KindEndOfRecords} }

// GoToFront marks a wraparound: the reader must resume from offset 0.
func GoToFront() Record { return Record{Kind: KindGoToFront} }

// Put records that id's bytes were written to the data region at portion.
func Put(id lump.Id, p portion.DataPortion) Record {
	return Record{Kind: KindPut, LumpID: id, Portion: p}
}

// Embed records id's bytes directly alongside the journal entry.
func Embed(id lump.Id, data []byte) Record {
	return Record{Kind: KindEmbed, LumpID: id, Data: data}
}

// Delete records that id was removed.
func Delete(id lump.Id) Record {
	return Record{Kind: KindDelete, LumpID: id}
}

// DeleteRange records that every id in [start, end) was removed.
func DeleteRange(start, end lump.Id) Record {
	return Record{Kind: KindDeleteRange, RangeStart: start, RangeEnd: end}
}

// ExternalSize is the number of bytes this record occupies on disk,
// including its checksum and tag.
func (r Record) ExternalSize() int {
	var body int
	switch r.Kind {
	case KindEndOfRecords, KindGoToFront:
		body = 0
	case KindPut:
		body = lump.IDSize + lengthSize + portionSize
	case KindEmbed:
		body = lump.IDSize + lengthSize + len(r.Data)
	case KindDelete:
		body = lump.IDSize
	case KindDeleteRange:
		body = lump.IDSize * 2
	}
	return checksumSize + tagSize + body
}

func (r Record) tag() byte {
	switch r.Kind {
	case KindEndOfRecords:
		return tagEndOfRecords
	case KindGoToFront:
		return tagGoToFront
	case KindPut:
		return tagPut
	case KindEmbed:
		return tagEmbed
	case KindDelete:
		return tagDelete
	default:
		return tagDeleteRange
	}
}

func (r Record) checksum() uint32 {
	h := adler32.New()
	h.Write([]byte{r.tag()})
	switch r.Kind {
	case KindPut:
		h.Write(r.LumpID.Bytes())
		var buf [lengthSize + portionSize]byte
		binary.BigEndian.PutUint16(buf[:lengthSize], r.Portion.Len)
		putUintBE(buf[lengthSize:], r.Portion.Start.AsUint64(), portionSize)
		h.Write(buf[:])
	case KindEmbed:
		h.Write(r.LumpID.Bytes())
		var lenBuf [lengthSize]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(r.Data)))
		h.Write(lenBuf[:])
		h.Write(r.Data)
	case KindDelete:
		h.Write(r.LumpID.Bytes())
	case KindDeleteRange:
		h.Write(r.RangeStart.Bytes())
		h.Write(r.RangeEnd.Bytes())
	}
	return h.Sum32()
}

// WriteTo serializes the record: a 4-byte Adler-32 checksum, a 1-byte tag,
// and the tag-specific body, all big-endian.
func (r Record) WriteTo(w io.Writer) error {
	var checksumBuf [checksumSize]byte
	binary.BigEndian.PutUint32(checksumBuf[:], r.checksum())
	if _, err := w.Write(checksumBuf[:]); err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write([]byte{r.tag()}); err != nil {
		return errors.WithStack(err)
	}
	switch r.Kind {
	case KindEndOfRecords, KindGoToFront:
	case KindPut:
		if _, err := w.Write(r.LumpID.Bytes()); err != nil {
			return errors.WithStack(err)
		}
		var buf [lengthSize + portionSize]byte
		binary.BigEndian.PutUint16(buf[:lengthSize], r.Portion.Len)
		putUintBE(buf[lengthSize:], r.Portion.Start.AsUint64(), portionSize)
		if _, err := w.Write(buf[:]); err != nil {
			return errors.WithStack(err)
		}
	case KindEmbed:
		if _, err := w.Write(r.LumpID.Bytes()); err != nil {
			return errors.WithStack(err)
		}
		var lenBuf [lengthSize]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(r.Data)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return errors.WithStack(err)
		}
		if _, err := w.Write(r.Data); err != nil {
			return errors.WithStack(err)
		}
	case KindDelete:
		if _, err := w.Write(r.LumpID.Bytes()); err != nil {
			return errors.WithStack(err)
		}
	case KindDeleteRange:
		if _, err := w.Write(r.RangeStart.Bytes()); err != nil {
			return errors.WithStack(err)
		}
		if _, err := w.Write(r.RangeEnd.Bytes()); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// ReadFrom deserializes a record, validating its checksum.
//
// It fails with internalerror.StorageCorrupted if the checksum does not
// match or the tag is unrecognized.
func ReadFrom(r io.Reader) (Record, error) {
	var checksumBuf [checksumSize]byte
	if _, err := io.ReadFull(r, checksumBuf[:]); err != nil {
		return Record{}, errors.WithStack(err)
	}
	checksum := binary.BigEndian.Uint32(checksumBuf[:])

	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return Record{}, errors.WithStack(err)
	}

	var rec Record
	switch tagBuf[0] {
	case tagEndOfRecords:
		rec = Record{Kind: KindEndOfRecords}
	case tagGoToFront:
		rec = Record{Kind: KindGoToFront}
	case tagPut:
		id, err := readLumpID(r)
		if err != nil {
			return Record{}, err
		}
		var buf [lengthSize + portionSize]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Record{}, errors.WithStack(err)
		}
		dataLen := binary.BigEndian.Uint16(buf[:lengthSize])
		offset := readUintBE(buf[lengthSize:])
		start, err := address.FromUint64(offset)
		if err != nil {
			return Record{}, err
		}
		rec = Put(id, portion.DataPortion{Start: start, Len: dataLen})
	case tagEmbed:
		id, err := readLumpID(r)
		if err != nil {
			return Record{}, err
		}
		var lenBuf [lengthSize]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return Record{}, errors.WithStack(err)
		}
		data := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
		if _, err := io.ReadFull(r, data); err != nil {
			return Record{}, errors.WithStack(err)
		}
		rec = Embed(id, data)
	case tagDelete:
		id, err := readLumpID(r)
		if err != nil {
			return Record{}, err
		}
		rec = Delete(id)
	case tagDeleteRange:
		start, err := readLumpID(r)
		if err != nil {
			return Record{}, err
		}
		end, err := readLumpID(r)
		if err != nil {
			return Record{}, err
		}
		rec = DeleteRange(start, end)
	default:
		return Record{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"unknown journal record tag: %d", tagBuf[0]))
	}

	if rec.checksum() != checksum {
		return Record{}, errors.WithStack(internalerror.New(internalerror.StorageCorrupted,
			"journal record checksum mismatch: expected %d, got %d", rec.checksum(), checksum))
	}
	return rec, nil
}

func readLumpID(r io.Reader) (lump.Id, error) {
	var buf [lump.IDSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return lump.Id{}, errors.WithStack(err)
	}
	var id lump.Id
	copy(id[:], buf[:])
	return id, nil
}

func putUintBE(buf []byte, v uint64, size int) {
	for i := size - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

func readUintBE(buf []byte) uint64 {
	var v uint64
	for _, b := range buf {
		v = (v << 8) | uint64(b)
	}
	return v
}

// Entry pairs a Record with the journal offset it was read from.
type Entry struct {
	Start  address.Address
	Record Record
}

// End returns the offset immediately after this entry.
func (e Entry) End() address.Address {
	return e.Start.Add(address.Address(e.Record.ExternalSize()))
}
