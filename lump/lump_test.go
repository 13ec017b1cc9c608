// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lump

import (
	"math/big"
	"testing"

	"github.com/frugalos/cannyls/internalerror"
)

func TestParseIDRoundTrip(t *testing.T) {
	cases := []string{
		"00000000000000000000000000000000",
		"000",
		"111",
		"ffffffffffffffffffffffffffffffff",
		"0x1a2b",
	}
	for _, s := range cases {
		id, err := ParseID(s)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", s, err)
		}
		if got := id.String(); len(got) != 32 {
			t.Fatalf("String() = %q, want 32 hex digits", got)
		}
		back, err := ParseID(id.String())
		if err != nil || back != id {
			t.Fatalf("ParseID(String()) = %v, %v; want %v", back, err, id)
		}
	}
}

func TestParseIDRejectsOverlongInput(t *testing.T) {
	_, err := ParseID("1" + string(make([]byte, 32)))
	if internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatalf("expected InvalidInput for an id wider than 128 bits, got %v", err)
	}
}

func TestParseIDRejectsNonHex(t *testing.T) {
	if _, err := ParseID("zzzz"); internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatalf("expected InvalidInput for non-hex input, got %v", err)
	}
}

func TestIDTotalOrderMatchesNumericOrder(t *testing.T) {
	small := NewID(big.NewInt(1))
	big_ := NewID(big.NewInt(2))
	if Compare(small, big_) >= 0 {
		t.Fatal("Compare() must order ids the same way as their numeric value")
	}
	if Compare(small, small) != 0 {
		t.Fatal("Compare() of equal ids must be 0")
	}
}

func TestNewRejectsOversizePayload(t *testing.T) {
	if _, err := New(make([]byte, MaxSize+1)); internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatal("expected InvalidInput for a payload over MaxSize")
	}
	if _, err := New(make([]byte, MaxSize)); err != nil {
		t.Fatalf("MaxSize itself should be accepted: %v", err)
	}
}

func TestEmbeddedThreshold(t *testing.T) {
	if _, err := NewEmbedded(make([]byte, MaxEmbeddedSize)); err != nil {
		t.Fatalf("exactly MaxEmbeddedSize bytes should fit embedded: %v", err)
	}
	if _, err := NewEmbedded(make([]byte, MaxEmbeddedSize+1)); internalerror.KindOf(err) != internalerror.InvalidInput {
		t.Fatal("expected InvalidInput for a payload one byte over MaxEmbeddedSize")
	}
}

func TestDataEqual(t *testing.T) {
	a, _ := New([]byte("hello"))
	b, _ := New([]byte("hello"))
	c, _ := New([]byte("world"))
	if !a.Equal(b) {
		t.Fatal("equal payloads should compare equal")
	}
	if a.Equal(c) {
		t.Fatal("different payloads should not compare equal")
	}
}
