// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockstore implements the header/merkle-block set of spec §4.4:
// three hashed indexes over Merkle Blocks (by block hash, by previous
// hash for orphans, by height for checkpoints), the chain-tip pointer,
// block acceptance, reorg handling, difficulty verification, and
// getblocks/getheaders locator construction.
package blockstore

import (
	"math/big"
	"time"

	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
)

// MerkleBlock is a block header plus the decoded partial-Merkle-tree
// match set (spec §3). Parsing and verifying the partial Merkle tree
// itself is the wire layer's job (spec §1); this type only carries the
// already-decoded matched hashes.
type MerkleBlock struct {
	Version    int32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  time.Time
	Bits       uint32
	Nonce      uint32
	TotalTx    uint32

	// MatchedTxHashes is the set of transaction hashes the partial
	// Merkle tree proved are included in this block.
	MatchedTxHashes []chainhash.Hash

	// Height is UnknownHeight until the block is accepted onto a chain
	// (spec §8: "every saved block has height != UNKNOWN").
	Height int32

	hash    chainhash.Hash
	hashSet bool
}

// UnknownHeight marks a MerkleBlock not yet attached to any chain.
const UnknownHeight = -1

// Hash returns the block hash, computing and caching it on first use.
func (b *MerkleBlock) Hash() chainhash.Hash {
	if !b.hashSet {
		b.hash = chainhash.DoubleHashH(b.serializeHeader())
		b.hashSet = true
	}
	return b.hash
}

func (b *MerkleBlock) serializeHeader() []byte {
	buf := make([]byte, 0, 80)
	buf = appendUint32LE(buf, uint32(b.Version))
	buf = append(buf, b.PrevBlock[:]...)
	buf = append(buf, b.MerkleRoot[:]...)
	buf = appendUint32LE(buf, uint32(b.Timestamp.Unix()))
	buf = appendUint32LE(buf, b.Bits)
	buf = appendUint32LE(buf, b.Nonce)
	return buf
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// Target decodes Bits into the proof-of-work target this block must
// satisfy.
func (b *MerkleBlock) Target() *big.Int {
	return chaincfg.CompactToBig(b.Bits)
}

// The chaincfg.BlockHeaderView interface, so blockstore headers can be
// handed straight to Params.VerifyDifficulty.

func (b *MerkleBlock) BlockHeight() int32             { return b.Height }
func (b *MerkleBlock) BlockTimestamp() time.Time       { return b.Timestamp }
func (b *MerkleBlock) BlockTarget() *big.Int           { return b.Target() }
func (b *MerkleBlock) BlockHash() chainhash.Hash       { return b.Hash() }
func (b *MerkleBlock) BlockPrevHash() chainhash.Hash   { return b.PrevBlock }

// IsFilterHeaderOnly reports whether this block reports no transactions
// at all (TotalTx == 0) — the "header only" case of spec §4.4 case 1.
func (b *MerkleBlock) IsFilterHeaderOnly() bool {
	return b.TotalTx == 0
}
