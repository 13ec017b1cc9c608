// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package journal

import (
	"bytes"
	"testing"

	"github.com/frugalos/cannyls/address"
	"github.com/frugalos/cannyls/lump"
	"github.com/frugalos/cannyls/portion"
)

func mustID(t *testing.T, hex string) lump.Id {
	t.Helper()
	id, err := lump.ParseID(hex)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func roundTrip(t *testing.T, rec Record) Record {
	t.Helper()
	var buf bytes.Buffer
	if err := rec.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() != rec.ExternalSize() {
		t.Fatalf("WriteTo wrote %d bytes, ExternalSize() said %d", buf.Len(), rec.ExternalSize())
	}
	got, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	return got
}

func TestRecordRoundTripPut(t *testing.T) {
	start, _ := address.FromUint64(512)
	rec := Put(mustID(t, "abc"), portion.DataPortion{Start: start, Len: 64})
	got := roundTrip(t, rec)
	if got.Kind != KindPut || got.LumpID != rec.LumpID || got.Portion != rec.Portion {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRecordRoundTripEmbed(t *testing.T) {
	rec := Embed(mustID(t, "def"), []byte("hello world"))
	got := roundTrip(t, rec)
	if got.Kind != KindEmbed || got.LumpID != rec.LumpID || !bytes.Equal(got.Data, rec.Data) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRecordRoundTripDelete(t *testing.T) {
	rec := Delete(mustID(t, "000"))
	got := roundTrip(t, rec)
	if got.Kind != KindDelete || got.LumpID != rec.LumpID {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRecordRoundTripDeleteRange(t *testing.T) {
	rec := DeleteRange(mustID(t, "000"), mustID(t, "fff"))
	got := roundTrip(t, rec)
	if got.Kind != KindDeleteRange || got.RangeStart != rec.RangeStart || got.RangeEnd != rec.RangeEnd {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRecordRoundTripEndOfRecords(t *testing.T) {
	got := roundTrip(t, EndOfRecords())
	if got.Kind != KindEndOfRecords {
		t.Fatalf("got Kind %v, want KindEndOfRecords", got.Kind)
	}
}

// Flipping any single bit of an encoded record must never let ReadFrom
// silently decode the original record; the failure kind is not checked,
// since a flipped tag can fail on truncation rather than on the checksum.
func TestRecordReadFromDetectsBitFlips(t *testing.T) {
	rec := Put(mustID(t, "abc"), portion.DataPortion{Start: address.Address(128), Len: 64})
	var buf bytes.Buffer
	if err := rec.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	original := append([]byte(nil), buf.Bytes()...)

	for byteIdx := range original {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), original...)
			corrupt[byteIdx] ^= 1 << uint(bit)

			got, err := ReadFrom(bytes.NewReader(corrupt))
			if err == nil && got.Kind == rec.Kind && got.LumpID == rec.LumpID && got.Portion == rec.Portion {
				t.Fatalf("flipping bit %d of byte %d silently produced the original record", bit, byteIdx)
			}
		}
	}
}
