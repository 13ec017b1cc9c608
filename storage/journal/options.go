// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import "github.com/frugalos/cannyls/block"

// RegionOptions tunes a JournalRegion's garbage collection and durability
// cadence.
type RegionOptions struct {
	// GCQueueSize is how many dequeued entries RunSideJobOnce buffers
	// up for garbage collection before it goes back to the ring buffer
	// for more.
	GCQueueSize uint64

	// SyncInterval is how many appended records elapse between automatic
	// syncs of the underlying NVM, whether or not automatic GC mode is on.
	SyncInterval uint64

	// BlockSize is the journal region's NVM alignment unit.
	BlockSize block.Size
}

// DefaultRegionOptions returns cannyls's usual journal tuning.
func DefaultRegionOptions() RegionOptions {
	return RegionOptions{
		GCQueueSize:  0x1000,
		SyncInterval: 0x1000,
		BlockSize:    block.Min(),
	}
}
