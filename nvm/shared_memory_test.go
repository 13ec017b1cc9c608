// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"
	"testing"
)

func TestSharedMemoryNvmCloneSharesBackingBuffer(t *testing.T) {
	m := NewSharedMemoryNvm(make([]byte, 4096))
	bs := int(m.BlockSize().AsUint16())

	payload := make([]byte, bs)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	if _, err := m.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	clone := m.Clone()
	if _, err := clone.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	// Rewinding the clone's cursor must not affect the original handle's.
	if m.Position() == clone.Position() {
		t.Fatalf("expected independent cursors: original at %d, clone at %d", m.Position(), clone.Position())
	}

	got := make([]byte, bs)
	if _, err := clone.Read(got); err != nil {
		t.Fatalf("Read via clone: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: clone saw %d, want %d written through the original handle", i, got[i], payload[i])
		}
	}
}

func TestSharedMemoryNvmSplitWindowsAreIndependentButShareStorage(t *testing.T) {
	m := NewSharedMemoryNvm(make([]byte, 8192))
	left, right, err := m.Split(4096)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if left.Capacity() != 4096 || right.Capacity() != 4096 {
		t.Fatalf("unexpected window sizes: left=%d right=%d", left.Capacity(), right.Capacity())
	}

	bs := int(right.BlockSize().AsUint16())
	marker := make([]byte, bs)
	for i := range marker {
		marker[i] = 0xAB
	}
	if _, err := right.Write(marker); err != nil {
		t.Fatal(err)
	}

	full := m.Bytes()
	found := false
	for _, b := range full[4096:] {
		if b == 0xAB {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("a write through the right window should be visible in the shared buffer's second half")
	}
	for _, b := range full[:4096] {
		if b == 0xAB {
			t.Fatal("a write through the right window must not appear in the left window's range")
		}
	}
}

func TestSharedMemoryNvmSeekBeyondWindowFails(t *testing.T) {
	m := NewSharedMemoryNvm(make([]byte, 8192))
	left, _, err := m.Split(4096)
	if err != nil {
		t.Fatal(err)
	}
	bs := int64(left.BlockSize().AsUint16())
	if _, err := left.Seek(4096+bs, io.SeekStart); err == nil {
		t.Fatal("expected seeking past the window's own capacity to fail")
	}
}
