// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the 32-byte content-addressing hash type used
// throughout the core, plus the two derived hash functions (double-SHA256
// and hash160) that other packages build their commitments on.
//
// The primitives themselves are treated as an external collaborator per the
// specification: this package wires golang.org/x/crypto/ripemd160 and the
// standard library's crypto/sha256 rather than re-deriving SHA256 or
// RIPEMD160 by hand.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/ripemd160"
)

// HashSize is the size, in bytes, of a hash produced by this package.
const HashSize = 32

// Hash is a double-SHA256 commitment, stored internal (little-endian) byte
// order the way transaction and block identifiers are conventionally
// displayed in reverse.
type Hash [HashSize]byte

// String returns the Hash as the hexadecimal string of the byte-reversed
// hash, as conventionally used for block and transaction IDs.
func (h Hash) String() string {
	var reversed Hash
	for i, b := range h[:] {
		reversed[HashSize-1-i] = b
	}
	return hex.EncodeToString(reversed[:])
}

// IsEqual returns whether h and target represent the same hash.
func (h *Hash) IsEqual(target *Hash) bool {
	if h == nil && target == nil {
		return true
	}
	if h == nil || target == nil {
		return false
	}
	return *h == *target
}

// SetBytes sets the bytes which correspond to the hash. An error is
// returned if the number of bytes passed in is not HashSize.
func (h *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return fmt.Errorf("invalid hash length of %d, want %d", len(newHash), HashSize)
	}
	copy(h[:], newHash)
	return nil
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var h Hash
	if err := h.SetBytes(newHash); err != nil {
		return nil, err
	}
	return &h, nil
}

// calcHash runs hasher over buf and returns the digest.
func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// HashB calculates SHA256(b) and returns the resulting bytes.
func HashB(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// HashH calculates SHA256(b) and returns the resulting bytes as a Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// DoubleHashB calculates SHA256(SHA256(b)) and returns the resulting bytes.
// This is the digest used for transaction and block identifiers.
func DoubleHashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DoubleHashH calculates SHA256(SHA256(b)) and returns the resulting bytes
// as a Hash.
func DoubleHashH(b []byte) Hash {
	return Hash(DoubleHashB(b))
}

// Hash160 calculates RIPEMD160(SHA256(b)), the 20-byte key-hash used by
// pay-to-pubkey-hash scripts and addresses.
func Hash160(buf []byte) []byte {
	return calcHash(HashB(buf), ripemd160.New())
}
