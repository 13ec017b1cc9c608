// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/nvm"
	"github.com/frugalos/cannyls/storage/allocator"
	"github.com/frugalos/cannyls/storage/journal"
)

// defaultJournalRegionRatio is the fraction of a freshly created storage's
// usable capacity (total size minus the header region) given to the
// journal region; the remainder becomes the data region.
const defaultJournalRegionRatio = 0.01

// Builder configures how a Storage is created or opened: instance uuid,
// the journal/data capacity split, and the journal region's internal
// tuning, each defaulted if left unset.
type Builder struct {
	instanceUUID       *uuid.UUID
	journalRegionRatio float64
	journal            journal.RegionOptions
	logger             *logrus.Logger
}

// NewBuilder returns a Builder with cannyls's defaults: a random instance
// uuid, a 1% journal region ratio, and journal.DefaultRegionOptions.
func NewBuilder() *Builder {
	return &Builder{
		journalRegionRatio: defaultJournalRegionRatio,
		journal:            journal.DefaultRegionOptions(),
		logger:             logrus.StandardLogger(),
	}
}

// Logger sets the logger Open uses to report its recovery summary. A nil
// logger disables it.
func (b *Builder) Logger(l *logrus.Logger) *Builder {
	b.logger = l
	return b
}

// InstanceUUID fixes the uuid a freshly created storage's header records,
// or the uuid an opened storage's header is expected to match.
func (b *Builder) InstanceUUID(id uuid.UUID) *Builder {
	b.instanceUUID = &id
	return b
}

// JournalRegionRatio sets the fraction (0.0-1.0) of usable capacity given
// to the journal region on creation.
func (b *Builder) JournalRegionRatio(ratio float64) *Builder {
	b.journalRegionRatio = ratio
	return b
}

// JournalGCQueueSize sets the journal's garbage-collection queue capacity.
func (b *Builder) JournalGCQueueSize(n uint64) *Builder {
	b.journal.GCQueueSize = n
	return b
}

// JournalSyncInterval sets how many journal appends elapse between
// automatic sync barriers.
func (b *Builder) JournalSyncInterval(n uint64) *Builder {
	b.journal.SyncInterval = n
	return b
}

// BlockSize sets the block size a freshly created storage's regions use.
func (b *Builder) BlockSize(size block.Size) *Builder {
	b.journal.BlockSize = size
	return b
}

// Create formats n as a brand-new lusf storage (header plus empty journal
// and data regions, in one aligned pass) and opens it.
func (b *Builder) Create(n nvm.NonVolatileMemory) (*Storage, error) {
	if !n.BlockSize().Contains(b.journal.BlockSize) && !b.journal.BlockSize.Contains(n.BlockSize()) {
		return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"nvm block size %d is incompatible with the configured block size %d",
			n.BlockSize().AsUint16(), b.journal.BlockSize.AsUint16()))
	}

	header, err := b.makeHeader(n.Capacity(), b.journal.BlockSize)
	if err != nil {
		return nil, err
	}
	if err := writeHeaderRegion(n, header); err != nil {
		return nil, err
	}
	journalRegion, _, err := header.SplitRegions(n)
	if err != nil {
		return nil, err
	}
	if err := journal.Initialize(journalRegion, b.journal); err != nil {
		return nil, err
	}
	if err := n.Sync(); err != nil {
		return nil, errors.WithStack(err)
	}
	return b.Open(n)
}

// Open reads n's header, replays its journal into a fresh LumpIndex, and
// rebuilds the data region's allocator from the index's data portions.
//
// A header whose minor version is older than this package's is
// transparently upgraded in place.
func (b *Builder) Open(n nvm.NonVolatileMemory) (*Storage, error) {
	header, err := readHeaderRegion(n)
	if err != nil {
		return nil, err
	}
	if header.MinorVersion < MinorVersion {
		header.MinorVersion = MinorVersion
		if err := writeHeaderRegion(n, header); err != nil {
			return nil, err
		}
	}
	if !n.BlockSize().Contains(header.BlockSize) && !header.BlockSize.Contains(n.BlockSize()) {
		return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"nvm block size %d is incompatible with the header's block size %d",
			n.BlockSize().AsUint16(), header.BlockSize.AsUint16()))
	}
	if b.instanceUUID != nil && *b.instanceUUID != header.InstanceUUID {
		return nil, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"instance uuid %s does not match the expected %s", header.InstanceUUID, *b.instanceUUID))
	}

	journalRegion, dataRegion, err := header.SplitRegions(n)
	if err != nil {
		return nil, err
	}

	index := NewLumpIndex()
	options := b.journal
	options.BlockSize = header.BlockSize
	jr, err := journal.Open(journalRegion, options, index)
	if err != nil {
		return nil, err
	}

	capacity, err := address.FromUint64(dataRegion.Capacity() / uint64(header.BlockSize.AsUint16()))
	if err != nil {
		return nil, err
	}
	alloc := allocator.Build(capacity, index.DataPortions())
	dr := NewDataRegion(dataRegion, header.BlockSize, alloc)

	if b.logger != nil {
		snap := jr.TakeSnapshot()
		b.logger.WithFields(logrus.Fields{
			"instance_uuid": header.InstanceUUID,
			"lumps":         index.Len(),
			"journal_head":  snap.Head,
			"journal_tail":  snap.Tail,
			"free_blocks":   alloc.Usage(),
		}).Debug("storage opened")
	}

	return &Storage{
		header:  header,
		index:   index,
		journal: jr,
		data:    dr,
	}, nil
}

// makeHeader computes the journal/data region split for a freshly created
// storage of the given total capacity.
func (b *Builder) makeHeader(capacity uint64, blockSize block.Size) (Header, error) {
	header := Header{
		MajorVersion: MajorVersion,
		MinorVersion: MinorVersion,
		BlockSize:    blockSize,
	}
	if b.instanceUUID != nil {
		header.InstanceUUID = *b.instanceUUID
	} else {
		header.InstanceUUID = uuid.New()
	}

	regionSize := header.RegionSize()
	if capacity < regionSize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"capacity %d is too small to hold even the %d byte header region", capacity, regionSize))
	}
	usable := capacity - regionSize

	if b.journalRegionRatio < 0.0 || b.journalRegionRatio > 1.0 {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"journal region ratio %f is out of the [0.0, 1.0] range", b.journalRegionRatio))
	}
	journalSize := blockSize.CeilAlign(uint64(float64(usable) * b.journalRegionRatio))
	if journalSize > MaxJournalRegionSize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"journal region size %d exceeds the maximum %d", journalSize, MaxJournalRegionSize))
	}
	if journalSize > usable {
		journalSize = usable
	}

	dataSize := blockSize.FloorAlign(usable - journalSize)
	if dataSize > MaxDataRegionSize {
		return Header{}, errors.WithStack(internalerror.New(internalerror.InvalidInput,
			"data region size %d exceeds the maximum %d", dataSize, MaxDataRegionSize))
	}

	header.JournalRegionSize = journalSize
	header.DataRegionSize = dataSize
	return header, nil
}
