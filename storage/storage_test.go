// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/nvm"
)

func newMemoryStorage(t *testing.T, capacity int) (*Storage, *nvm.MemoryNvm) {
	t.Helper()
	mem := nvm.NewMemoryNvm(make([]byte, capacity))
	s, err := NewBuilder().Create(mem)
	require.NoError(t, err)
	return s, mem
}

func id(t *testing.T, hex string) lump.Id {
	t.Helper()
	v, err := lump.ParseID(hex)
	require.NoError(t, err)
	return v
}

func dataOf(t *testing.T, s string) lump.Data {
	t.Helper()
	d, err := lump.New([]byte(s))
	require.NoError(t, err)
	return d
}

// Two puts followed by a list, in id order.
func TestPutThenList(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)

	_, err := s.Put(id(t, "000"), dataOf(t, "hello"))
	require.NoError(t, err)
	_, err = s.Put(id(t, "111"), dataOf(t, "world"))
	require.NoError(t, err)

	got := s.List()
	require.Len(t, got, 2)
	require.Equal(t, id(t, "000"), got[0])
	require.Equal(t, id(t, "111"), got[1])
}

// Put, delete, then get the deleted id back out.
func TestPutDeleteGet(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)

	_, err := s.Put(id(t, "000"), dataOf(t, "hello"))
	require.NoError(t, err)

	existed, err := s.Delete(id(t, "000"))
	require.NoError(t, err)
	require.True(t, existed)

	_, ok, err := s.Get(id(t, "000"))
	require.NoError(t, err)
	require.False(t, ok)

	existed, err = s.Delete(id(t, "000"))
	require.NoError(t, err)
	require.False(t, existed)
}

// Three ids inside one range, removed by a single DeleteRange call. Their
// data-region portions must come back to the allocator, not just leave the
// index.
func TestDeleteRange(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)
	freeBefore := s.Usage().FreeBlocks

	for _, hex := range []string{"000", "001", "002"} {
		_, err := s.Put(id(t, hex), dataOf(t, hex))
		require.NoError(t, err)
	}
	require.Less(t, s.Usage().FreeBlocks, freeBefore)

	removed, err := s.DeleteRange(id(t, "000"), id(t, "003"))
	require.NoError(t, err)
	require.ElementsMatch(t, []lump.Id{id(t, "000"), id(t, "001"), id(t, "002")}, removed)
	require.Empty(t, s.List())
	require.Equal(t, freeBefore, s.Usage().FreeBlocks)
}

func TestPutOverwriteReturnsFalse(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)

	created, err := s.Put(id(t, "000"), dataOf(t, "v1"))
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.Put(id(t, "000"), dataOf(t, "v2"))
	require.NoError(t, err)
	require.False(t, created)

	got, ok, err := s.Get(id(t, "000"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", string(got.Bytes()))
}

func TestEmbeddedThresholdRoutesToDataRegion(t *testing.T) {
	s, _ := newMemoryStorage(t, 8<<20)

	embedded, err := lump.NewEmbedded(make([]byte, lump.MaxEmbeddedSize))
	require.NoError(t, err)
	_, err = s.Put(id(t, "000"), embedded)
	require.NoError(t, err)

	oversize, err := lump.New(make([]byte, lump.MaxEmbeddedSize+1))
	require.NoError(t, err)
	_, err = s.Put(id(t, "111"), oversize)
	require.NoError(t, err)

	got, ok, err := s.Get(id(t, "111"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Bytes(), lump.MaxEmbeddedSize+1)
}

// Round-trip property: put then get returns the same bytes
// for every payload size up to MaxSize, exercised at representative sizes
// rather than exhaustively.
func TestPutGetRoundTrip(t *testing.T) {
	s, _ := newMemoryStorage(t, 8<<20)
	for i, size := range []int{0, 1, 511, 512, 4096} {
		payload := make([]byte, size)
		for j := range payload {
			payload[j] = byte(j)
		}
		d, err := lump.New(payload)
		require.NoError(t, err)

		lumpID := id(t, string(rune('a'+i))+"00")
		_, err = s.Put(lumpID, d)
		require.NoError(t, err)

		got, ok, err := s.Get(lumpID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload, got.Bytes())
	}
}

func TestReopenAfterJournalSyncPreservesIndex(t *testing.T) {
	mem := nvm.NewMemoryNvm(make([]byte, 1<<20))
	s, err := NewBuilder().Create(mem)
	require.NoError(t, err)

	_, err = s.Put(id(t, "000"), dataOf(t, "hello"))
	require.NoError(t, err)
	_, err = s.Put(id(t, "111"), dataOf(t, "world"))
	require.NoError(t, err)
	_, err = s.Delete(id(t, "111"))
	require.NoError(t, err)
	require.NoError(t, s.JournalSync())

	reopened, err := NewBuilder().Open(mem)
	require.NoError(t, err)
	require.Equal(t, []lump.Id{id(t, "000")}, reopened.List())

	got, ok, err := reopened.Get(id(t, "000"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", string(got.Bytes()))
}

func TestHeadReportsSizeWithoutPayload(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)
	_, err := s.Put(id(t, "000"), dataOf(t, "hello"))
	require.NoError(t, err)

	h, ok := s.Head(id(t, "000"))
	require.True(t, ok)
	require.True(t, h.ApproximateSize > 0)

	_, ok = s.Head(id(t, "999"))
	require.False(t, ok)
}

func TestUsageRange(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)
	_, err := s.Put(id(t, "000"), dataOf(t, "hello"))
	require.NoError(t, err)
	_, err = s.Put(id(t, "111"), dataOf(t, "world"))
	require.NoError(t, err)

	u := s.UsageRange(id(t, "000"), id(t, "100"))
	require.Equal(t, 1, u.LumpCount)
	require.True(t, u.ApproximateSize > 0)
}

// Two 512KiB lumps fill the data region, the third put fails, and deleting
// one of the first two makes room again.
func TestDataRegionFullThenDeleteFreesRoom(t *testing.T) {
	// 1.5MiB total leaves a data region that holds two 512KiB lumps
	// (1025 blocks each, padding marker included) but not three.
	s, _ := newMemoryStorage(t, 3<<19)

	payload := func() lump.Data {
		d, err := lump.New(make([]byte, 512*1024))
		require.NoError(t, err)
		return d
	}

	_, err := s.Put(id(t, "000"), payload())
	require.NoError(t, err)
	_, err = s.Put(id(t, "111"), payload())
	require.NoError(t, err)

	_, err = s.Put(id(t, "222"), payload())
	require.Equal(t, internalerror.StorageFull, internalerror.KindOf(err))

	existed, err := s.Delete(id(t, "000"))
	require.NoError(t, err)
	require.True(t, existed)

	_, err = s.Put(id(t, "222"), payload())
	require.NoError(t, err)
}

// Sixty embedded puts and twenty deletes against a 4KiB journal region:
// garbage collection compacts the ring, and a reopen rebuilds the index
// with the forty survivors, in key order.
func TestJournalGCThenReopenKeepsSurvivors(t *testing.T) {
	mem := nvm.NewMemoryNvm(make([]byte, 1<<20))
	s, err := NewBuilder().JournalRegionRatio(0.0039).Create(mem)
	require.NoError(t, err)
	require.Equal(t, uint64(4096), s.Header().JournalRegionSize)
	s.SetAutomaticGCMode(false)

	ids := make([]lump.Id, 60)
	for i := range ids {
		ids[i] = id(t, fmt.Sprintf("%04x", i))
		embedded, err := lump.NewEmbedded([]byte{byte(i)})
		require.NoError(t, err)
		_, err = s.Put(ids[i], embedded)
		require.NoError(t, err)
	}
	for _, deleted := range ids[:20] {
		_, err := s.Delete(deleted)
		require.NoError(t, err)
	}

	require.NoError(t, s.JournalGC())
	require.NoError(t, s.JournalSync())

	reopened, err := NewBuilder().Open(mem)
	require.NoError(t, err)
	require.Equal(t, ids[20:], reopened.List())
}

func TestJournalGCRunsToCompletion(t *testing.T) {
	s, _ := newMemoryStorage(t, 1<<20)
	s.SetAutomaticGCMode(false)

	for i := 0; i < 64; i++ {
		_, err := s.Put(id(t, "000"), dataOf(t, "v"))
		require.NoError(t, err)
		_, err = s.Delete(id(t, "000"))
		require.NoError(t, err)
	}

	require.NoError(t, s.JournalGC())
	snap := s.JournalSnapshot()
	require.Equal(t, snap.Head, snap.UnreleasedHead)
}
