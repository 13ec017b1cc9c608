// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import "testing"

func TestNewRejectsBelowMinimum(t *testing.T) {
	if _, err := New(256); err == nil {
		t.Fatal("expected error for block size below minimum")
	}
}

func TestNewRejectsNonMultiple(t *testing.T) {
	if _, err := New(700); err == nil {
		t.Fatal("expected error for block size that is not a multiple of 512")
	}
}

func TestCeilFloorAlign(t *testing.T) {
	s, err := New(512)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct{ in, ceil, floor uint64 }{
		{0, 0, 0},
		{1, 512, 0},
		{511, 512, 0},
		{512, 512, 512},
		{513, 1024, 512},
		{1024, 1024, 1024},
	}
	for _, c := range cases {
		if got := s.CeilAlign(c.in); got != c.ceil {
			t.Errorf("CeilAlign(%d) = %d, want %d", c.in, got, c.ceil)
		}
		if got := s.FloorAlign(c.in); got != c.floor {
			t.Errorf("FloorAlign(%d) = %d, want %d", c.in, got, c.floor)
		}
	}
}

func TestCeilFloorAlignFixedPoints(t *testing.T) {
	s, err := New(512)
	if err != nil {
		t.Fatal(err)
	}
	for p := uint64(0); p <= 4096; p += 512 {
		if s.CeilAlign(p) != p {
			t.Errorf("CeilAlign(%d) = %d, want %d (already aligned)", p, s.CeilAlign(p), p)
		}
		if s.FloorAlign(p) != p {
			t.Errorf("FloorAlign(%d) = %d, want %d (already aligned)", p, s.FloorAlign(p), p)
		}
	}
}

func TestIsAligned(t *testing.T) {
	s, err := New(512)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsAligned(1024) {
		t.Error("1024 should be aligned to 512")
	}
	if s.IsAligned(1025) {
		t.Error("1025 should not be aligned to 512")
	}
}

func TestContains(t *testing.T) {
	big, err := New(4096)
	if err != nil {
		t.Fatal(err)
	}
	small, err := New(512)
	if err != nil {
		t.Fatal(err)
	}
	if !big.Contains(small) {
		t.Error("4096 should contain 512")
	}
	if small.Contains(big) {
		t.Error("512 should not contain 4096")
	}
	if !big.Contains(big) {
		t.Error("a block size should contain itself")
	}
}
