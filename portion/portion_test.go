// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package portion

import (
	"testing"

	"github.com/frugalos/cannyls/address"
)

func addr(t *testing.T, v uint64) address.Address {
	t.Helper()
	a, err := address.FromUint64(v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPackUnpackJournal(t *testing.T) {
	p := FromJournal(JournalPortion{Start: addr(t, 123), Len: 456})
	got := Unpack(Pack(p))
	if got.Kind() != KindJournal {
		t.Fatalf("Kind() = %v, want KindJournal", got.Kind())
	}
	if !got.Equal(p) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got.Journal(), p.Journal())
	}
}

func TestPackUnpackData(t *testing.T) {
	p := FromData(DataPortion{Start: addr(t, address.Max), Len: 0xffff})
	got := Unpack(Pack(p))
	if got.Kind() != KindData {
		t.Fatalf("Kind() = %v, want KindData", got.Kind())
	}
	if !got.Equal(p) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got.Data(), p.Data())
	}
}

func TestDataPanicsOnJournalPortion(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Data() to panic on a journal-kind Portion")
		}
	}()
	FromJournal(JournalPortion{}).Data()
}

func TestJournalPanicsOnDataPortion(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Journal() to panic on a data-kind Portion")
		}
	}()
	FromData(DataPortion{}).Journal()
}

func TestDataPortionEnd(t *testing.T) {
	p := DataPortion{Start: addr(t, 10), Len: 5}
	if got := p.End().AsUint64(); got != 15 {
		t.Fatalf("End() = %d, want 15", got)
	}
}
