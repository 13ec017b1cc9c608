// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nvm

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/frugalos/cannyls/block"
	"github.com/frugalos/cannyls/internalerror"
)

// testBuilder disables direct I/O and the exclusive flock: direct I/O
// requires a filesystem that supports O_DIRECT (tmpfs commonly does not),
// and the lock is irrelevant to a single-process test.
func testBuilder() *FileNvmBuilder {
	return NewFileNvmBuilder().DirectIO(false).ExclusiveLock(false)
}

func TestFileNvmDefaultBlockSize(t *testing.T) {
	f := &FileNvm{}
	if got := f.BlockSize(); got != block.Min() {
		t.Fatalf("zero-value FileNvm.BlockSize() = %v, want %v", got, block.Min())
	}
}

func TestFileNvmCreateThenWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lusf")
	const capacity = 4096

	f, err := testBuilder().Create(path, capacity)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.Capacity() != capacity {
		t.Fatalf("Capacity() = %d, want %d", f.Capacity(), capacity)
	}

	bs := int(f.BlockSize().AsUint16())
	payload := make([]byte, bs)
	for i := range payload {
		payload[i] = byte(i)
	}
	if _, err := f.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	got := make([]byte, bs)
	if _, err := f.Read(got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], payload[i])
		}
	}
}

func TestFileNvmRejectsUnalignedAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lusf")
	f, err := testBuilder().Create(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(make([]byte, 1)); internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatalf("expected InvalidInput for an unaligned write, got %v", err)
	}
	if _, err := f.Seek(1, io.SeekStart); internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatalf("expected InvalidInput for an unaligned seek, got %v", err)
	}
}

func TestFileNvmCreateOrOpenReportsWhetherCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lusf")

	_, created, err := testBuilder().CreateOrOpen(path, 4096)
	if err != nil {
		t.Fatalf("CreateOrOpen (first): %v", err)
	}
	if !created {
		t.Fatal("expected created=true for a file that did not exist yet")
	}

	_, created, err = testBuilder().CreateOrOpen(path, 4096)
	if err != nil {
		t.Fatalf("CreateOrOpen (second): %v", err)
	}
	if created {
		t.Fatal("expected created=false for a file that already exists")
	}
}

func TestFileNvmCreateRejectsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lusf")
	if _, err := testBuilder().Create(path, 4096); err != nil {
		t.Fatal(err)
	}
	if _, err := testBuilder().Create(path, 4096); err == nil {
		t.Fatal("expected Create to fail when the file already exists")
	}
}

func TestFileNvmSplitProducesIndependentWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lusf")
	f, err := testBuilder().Create(path, 8192)
	if err != nil {
		t.Fatal(err)
	}
	bs := f.BlockSize()

	left, right, err := f.Split(4096)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if left.Capacity() != 4096 || right.Capacity() != 4096 {
		t.Fatalf("unexpected window sizes: left=%d right=%d", left.Capacity(), right.Capacity())
	}

	blk := make([]byte, bs.AsUint16())
	for i := range blk {
		blk[i] = 0xAB
	}
	if _, err := right.Write(blk); err != nil {
		t.Fatalf("Write to right window: %v", err)
	}
	if _, err := right.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}

	if _, err := left.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	leftContent := make([]byte, bs.AsUint16())
	if _, err := left.Read(leftContent); err != nil {
		t.Fatal(err)
	}
	for _, b := range leftContent {
		if b == 0xAB {
			t.Fatal("writing to the right window must not be visible through the left window")
		}
	}
}
