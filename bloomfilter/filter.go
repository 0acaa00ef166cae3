// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloomfilter implements the probabilistic membership filter the
// peer manager loads into each peer session (spec §4.5). Bloom filter
// internals are an external collaborator per spec §1 ("specified only
// through their input/output contracts"); this package is the core's own
// minimal, from-scratch implementation of that contract — there is no
// bloom filter library anywhere in the example corpus to wire instead,
// so the bit-indexing hash (a textbook 32-bit murmur3) is hand-rolled
// here and called out in DESIGN.md. The bit storage itself reuses
// github.com/jrick/bitset, the same package the wider Decred wallet
// stack uses for its own bitmaps.
package bloomfilter

import (
	"math"

	"github.com/jrick/bitset"
)

// Update-flag values (spec §6: BLOOM_UPDATE_ALL is the only value this
// core emits).
const (
	UpdateNone = 0
	UpdateAll  = 1
)

const (
	maxFilterBits     = 36000 * 8
	maxHashFuncs      = 50
	ln2Squared        = 0.4804530139182014 // ln(2)^2
	ln2               = 0.6931471805599453
)

// Default and reduced false-positive rates (spec §4.4).
const (
	DefaultFalsePositiveRate = 0.0001
	ReducedFalsePositiveRate = 0.00005
)

// Filter is a Bloom filter over an expected element count and target
// false-positive rate, with a per-peer tweak nonce so that distinct
// peers cannot correlate filters for the same wallet (spec §4.5).
type Filter struct {
	bits       bitset.Bytes
	numBits    uint32
	numHashes  uint32
	tweak      uint32
	UpdateFlag byte
}

// New builds an empty Filter sized for elements items at the given
// false-positive rate, tweaked with nonce (spec §4.5: "a per-peer nonce
// derived from peer hash").
func New(elements int, fpRate float64, nonce uint32, updateFlag byte) *Filter {
	if elements < 1 {
		elements = 1
	}

	numBits := uint32(math.Min(
		-1/ln2Squared*float64(elements)*math.Log(fpRate),
		float64(maxFilterBits),
	))
	if numBits < 8 {
		numBits = 8
	}
	numBits -= numBits % 8

	numHashes := uint32(math.Min(
		float64(numBits)/float64(elements)*ln2,
		float64(maxHashFuncs),
	))
	if numHashes < 1 {
		numHashes = 1
	}

	return &Filter{
		bits:       bitset.NewBytes(int(numBits)),
		numBits:    numBits,
		numHashes:  numHashes,
		tweak:      nonce,
		UpdateFlag: updateFlag,
	}
}

// hash computes the i'th of numHashes index functions over data, per the
// standard (seed-rotated murmur3) Bloom construction.
func (f *Filter) hash(hashNum uint32, data []byte) uint32 {
	seed := hashNum*0xfba4c795 + f.tweak
	return murmur3(seed, data) % f.numBits
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	for i := uint32(0); i < f.numHashes; i++ {
		f.bits.Set(int(f.hash(i, data)))
	}
}

// Matches reports whether data may be a member of the filter (false
// positives are possible by construction; false negatives are not).
func (f *Filter) Matches(data []byte) bool {
	for i := uint32(0); i < f.numHashes; i++ {
		if !f.bits.Get(int(f.hash(i, data))) {
			return false
		}
	}
	return true
}

// MatchesOutpoint reports whether the (hash, index) pair — little-endian
// hash followed by a 4-byte little-endian index, per spec §8's
// testable-property wording — is present in the filter.
func (f *Filter) MatchesOutpoint(hash [32]byte, index uint32) bool {
	return f.Matches(outpointKey(hash, index))
}

// AddOutpoint inserts an (hash, index) outpoint key into the filter.
func (f *Filter) AddOutpoint(hash [32]byte, index uint32) {
	f.Add(outpointKey(hash, index))
}

func outpointKey(hash [32]byte, index uint32) []byte {
	key := make([]byte, 36)
	copy(key, hash[:])
	key[32] = byte(index)
	key[33] = byte(index >> 8)
	key[34] = byte(index >> 16)
	key[35] = byte(index >> 24)
	return key
}

// murmur3 is the 32-bit murmur3 hash used by the standard Bloom filter
// construction this core follows.
func murmur3(seed uint32, data []byte) uint32 {
	const c1, c2 = 0xcc9e2d51, 0x1b873593
	h := seed
	nblocks := len(data) / 4

	for i := 0; i < nblocks; i++ {
		k := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
		h = (h << 13) | (h >> 19)
		h = h*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k uint32
	switch len(tail) {
	case 3:
		k ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(tail[0])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
	}

	h ^= uint32(len(data))
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}
