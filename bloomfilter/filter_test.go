// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloomfilter

import "testing"

func TestFilterMatchesInsertedData(t *testing.T) {
	f := New(100, DefaultFalsePositiveRate, 0, UpdateAll)

	elems := [][]byte{
		[]byte("alpha"),
		[]byte("bravo"),
		[]byte("charlie"),
	}
	for _, e := range elems {
		f.Add(e)
	}
	for _, e := range elems {
		if !f.Matches(e) {
			t.Errorf("Matches(%s) = false, want true after Add", e)
		}
	}
}

func TestFilterRejectsObviouslyAbsentData(t *testing.T) {
	f := New(10, DefaultFalsePositiveRate, 0, UpdateAll)
	f.Add([]byte("only-member"))

	if f.Matches([]byte("never-added")) {
		// A false positive here is statistically possible but should be
		// vanishingly unlikely for a single-element low-FP filter.
		t.Error("Matches() = true for data never added, want false (or an unlucky false positive)")
	}
}

func TestFilterOutpointRoundTrip(t *testing.T) {
	f := New(10, DefaultFalsePositiveRate, 7, UpdateAll)

	var hash [32]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	f.AddOutpoint(hash, 3)

	if !f.MatchesOutpoint(hash, 3) {
		t.Fatal("MatchesOutpoint() = false for an outpoint just added, want true")
	}
	if f.MatchesOutpoint(hash, 4) {
		t.Error("MatchesOutpoint() = true for a different index, want false")
	}
}

func TestNewClampsElementCount(t *testing.T) {
	f := New(0, DefaultFalsePositiveRate, 0, UpdateAll)
	if f.numBits < 8 {
		t.Fatalf("numBits = %d, want at least 8 even for a zero/negative element count", f.numBits)
	}
	if f.numHashes < 1 {
		t.Fatalf("numHashes = %d, want at least 1", f.numHashes)
	}
}

func TestNewCapsFilterSize(t *testing.T) {
	f := New(10_000_000, ReducedFalsePositiveRate, 0, UpdateAll)
	if f.numBits > maxFilterBits {
		t.Fatalf("numBits = %d, want capped at %d", f.numBits, maxFilterBits)
	}
	if f.numHashes > maxHashFuncs {
		t.Fatalf("numHashes = %d, want capped at %d", f.numHashes, maxHashFuncs)
	}
}

func TestMurmur3IsDeterministic(t *testing.T) {
	data := []byte("deterministic input")
	a := murmur3(0xdeadbeef, data)
	b := murmur3(0xdeadbeef, data)
	if a != b {
		t.Fatalf("murmur3 not deterministic: %#x != %#x", a, b)
	}
	if murmur3(0xdeadbeef, data) == murmur3(0x1, data) {
		t.Fatal("different seeds produced the same hash, want distinct outputs")
	}
}

func TestOutpointKeyEncodesIndexLittleEndian(t *testing.T) {
	var hash [32]byte
	key := outpointKey(hash, 0x01020304)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	got := key[32:36]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("outpointKey index bytes = %x, want %x", got, want)
		}
	}
}
