// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"testing"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/internalerror"
	"github.com/frugalos/cannyls/nvm"
)

func newRingBuffer(t *testing.T, capacity int) *RingBuffer {
	t.Helper()
	return NewRingBuffer(nvm.NewMemoryNvm(make([]byte, capacity)))
}

func TestRingBufferEnqueueDequeueRoundTrip(t *testing.T) {
	rb := newRingBuffer(t, 4096)

	ids := []string{"000", "111", "222"}
	for _, hex := range ids {
		if _, err := rb.Enqueue(Delete(mustID(t, hex))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	entries, err := rb.DequeueEntries(-1)
	if err != nil {
		t.Fatalf("DequeueEntries: %v", err)
	}
	if len(entries) != len(ids) {
		t.Fatalf("got %d entries, want %d", len(entries), len(ids))
	}
	for i, hex := range ids {
		if entries[i].Record.LumpID != mustID(t, hex) {
			t.Fatalf("entry %d: got %x, want %s", i, entries[i].Record.LumpID, hex)
		}
	}
	if rb.Head() != rb.Tail() {
		t.Fatalf("Head() = %v after dequeuing everything, want Tail() = %v", rb.Head(), rb.Tail())
	}
}

// Once every previously written record has been released, the tail keeps
// advancing until it no longer has room before the end of the buffer, at
// which point Enqueue must write a GoToFront marker and resume from the
// front rather than overrun the underlying NVM.
func TestRingBufferWrapsAroundAtCapacity(t *testing.T) {
	rb := newRingBuffer(t, 1536)

	wrapped := false
	for i := 0; i < 100; i++ {
		e, err := rb.Enqueue(Delete(mustID(t, "000")))
		if err != nil {
			t.Fatalf("Enqueue #%d: %v", i, err)
		}
		rb.ReleaseBytesUntil(e.End())
		if i > 0 && e.Start.AsUint64() == 0 {
			wrapped = true
			break
		}
	}
	if !wrapped {
		t.Fatal("expected the ring buffer to wrap around to the front at least once")
	}
}

func TestRingBufferRejectsOversizeRecord(t *testing.T) {
	rb := newRingBuffer(t, 64)
	_, err := rb.Enqueue(Embed(mustID(t, "000"), make([]byte, 256)))
	if internalerror.KindOf(err) != internalerror.StorageFull {
		t.Fatalf("expected StorageFull for a record larger than the ring buffer, got %v", err)
	}
}

func TestRingBufferReleaseAdvancesUnreleasedHead(t *testing.T) {
	rb := newRingBuffer(t, 4096)
	e, err := rb.Enqueue(Delete(mustID(t, "000")))
	if err != nil {
		t.Fatal(err)
	}
	if rb.UnreleasedHead() != 0 {
		t.Fatalf("UnreleasedHead() = %v before release, want 0", rb.UnreleasedHead())
	}
	rb.ReleaseBytesUntil(e.End())
	if rb.UnreleasedHead() != e.End() {
		t.Fatalf("UnreleasedHead() = %v after release, want %v", rb.UnreleasedHead(), e.End())
	}
}

func TestRingBufferRestoreEntriesReplaysFromStoredHead(t *testing.T) {
	backing := make([]byte, 4096)
	rb := NewRingBuffer(nvm.NewMemoryNvm(backing))

	ids := []string{"000", "111"}
	for _, hex := range ids {
		if _, err := rb.Enqueue(Delete(mustID(t, hex))); err != nil {
			t.Fatal(err)
		}
	}
	tail := rb.Tail()
	if err := rb.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	reopened := NewRingBuffer(nvm.NewMemoryNvm(backing))
	entries, err := reopened.RestoreEntries(0)
	if err != nil {
		t.Fatalf("RestoreEntries: %v", err)
	}
	if len(entries) != len(ids) {
		t.Fatalf("got %d restored entries, want %d", len(entries), len(ids))
	}
	if reopened.Tail() != tail {
		t.Fatalf("restored Tail() = %v, want %v", reopened.Tail(), tail)
	}
}

func TestRingBufferEmbeddedDataRoundTrip(t *testing.T) {
	rb := newRingBuffer(t, 4096)
	payload := []byte("embedded payload")
	e, err := rb.Enqueue(Embed(mustID(t, "000"), payload))
	if err != nil {
		t.Fatal(err)
	}
	got, err := rb.ReadEmbeddedData(e.Start.Add(address.Address(EmbeddedDataOffset)), uint16(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("ReadEmbeddedData() = %q, want %q", got, payload)
	}
}
