// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg implements the Chain Parameters external collaborator
// of spec §4.6: network magic, the standard port, DNS seeds, the
// checkpoint table, and difficulty verification. The core never embeds
// consensus rules beyond headers+difficulty+checkpoints (spec §1
// Non-goals); everything else about a chain — script execution, mempool
// policy, full validation — is out of scope by design.
package chaincfg

import (
	"fmt"
	"math/big"
	"time"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chainhash"
)

// DNSSeed identifies a DNS seed used to discover peers when no fixed peer
// is configured.
type DNSSeed struct {
	Host string

	// HasFiltering is true when the seed is known to support filtering
	// the returned addresses by advertised service bits.
	HasFiltering bool
}

// Checkpoint identifies a known-good block that pins the main chain;
// a header at this height must carry exactly this hash (checked with the
// linkage test of spec §4.4 case 4), and the latest checkpoint at or below
// the tip bounds the "old fork" drop of case 8.
type Checkpoint struct {
	Height    int32
	Hash      chainhash.Hash
	Timestamp time.Time

	// Target is the proof-of-work target the checkpoint block satisfied,
	// used to seed difficulty verification across the checkpoint.
	Target *big.Int
}

// BlockHeaderView is the minimal read-only view of a header the difficulty
// verifier needs; blockstore.MerkleBlock satisfies this.
type BlockHeaderView interface {
	BlockHeight() int32
	BlockTimestamp() time.Time
	BlockTarget() *big.Int
	BlockHash() chainhash.Hash
	BlockPrevHash() chainhash.Hash
}

// Params groups together the parameters that distinguish one instance of
// the chain (mainnet, testnet, ...) from another.
type Params struct {
	Name        string
	Net         uint32
	StandardPort string

	PubKeyHashAddrID byte
	ScriptHashAddrID byte

	// HDPrivateKeyID/HDPublicKeyID are the BIP32 extended-key version
	// bytes for this network, satisfying hdkeychain.NetworkParams so the
	// wallet engine's address chains (spec §4.2) can derive directly
	// from github.com/decred/dcrd/hdkeychain/v3 without that package
	// depending back on this one.
	HDPrivateKeyID [4]byte
	HDPublicKeyID  [4]byte

	DNSSeeds []DNSSeed

	// Services is the set of service-bit flags a peer must advertise to
	// be considered useful as a download peer (spec §4.5 step 2).
	Services uint64

	GenesisHash chainhash.Hash

	PowLimit             *big.Int
	PowLimitBits         uint32
	DifficultyInterval   int32
	TargetTimespan       time.Duration
	TargetSpacing        time.Duration
	RetargetAdjustFactor int64

	Checkpoints []Checkpoint
}

// HDPrivKeyVersion and HDPubKeyVersion satisfy hdkeychain.NetworkParams.

func (p *Params) HDPrivKeyVersion() [4]byte { return p.HDPrivateKeyID }
func (p *Params) HDPubKeyVersion() [4]byte  { return p.HDPublicKeyID }

// AddressParams adapts Params to the address package's narrower Params
// interface.
func (p *Params) AddressParams() *address.Params {
	return &address.Params{
		PubKeyHashAddrID: p.PubKeyHashAddrID,
		ScriptHashAddrID: p.ScriptHashAddrID,
	}
}

// LatestCheckpoint returns the highest checkpoint at or below height, or
// nil if there is none.
func (p *Params) LatestCheckpoint(height int32) *Checkpoint {
	var best *Checkpoint
	for i := range p.Checkpoints {
		c := &p.Checkpoints[i]
		if c.Height <= height && (best == nil || c.Height > best.Height) {
			best = c
		}
	}
	return best
}

// CheckpointAt returns the checkpoint at exactly the given height, or nil.
func (p *Params) CheckpointAt(height int32) *Checkpoint {
	for i := range p.Checkpoints {
		if p.Checkpoints[i].Height == height {
			return &p.Checkpoints[i]
		}
	}
	return nil
}

// bigOne is 1 represented as a big.Int.
var bigOne = big.NewInt(1)

// CompactToBig converts a compact representation of a whole number N to an
// appropriate big integer, following the convention used by block headers
// to encode the proof-of-work target.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := compact >> 24

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, uint(8*(exponent-3)))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a whole number N to a compact representation using
// an unsigned 32-bit integer.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// VerifyDifficulty implements the retarget check of spec §4.4: at every
// DifficultyInterval boundary the new block's target is compared against
// the target recomputed from the observed timespan between the current
// tip and the block DifficultyInterval heights back. Outside of a
// boundary the target must be unchanged from the parent.
//
// windowStart is the header at height-DifficultyInterval, looked up by
// the caller by walking prevBlock pointers (spec §4.4); it must be
// non-nil whenever height is on a boundary.
func (p *Params) VerifyDifficulty(block, parent, windowStart BlockHeaderView) bool {
	if block.BlockHeight()%p.DifficultyInterval != 0 {
		return block.BlockTarget().Cmp(parent.BlockTarget()) == 0
	}
	if windowStart == nil {
		return false
	}

	actualTimespan := block.BlockTimestamp().Sub(windowStart.BlockTimestamp())
	adjusted := clampTimespan(actualTimespan, p.TargetTimespan, p.RetargetAdjustFactor)

	newTarget := new(big.Int).Mul(parent.BlockTarget(), big.NewInt(int64(adjusted/time.Second)))
	newTarget.Div(newTarget, big.NewInt(int64(p.TargetTimespan/time.Second)))
	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget = p.PowLimit
	}

	return block.BlockTarget().Cmp(newTarget) == 0
}

func clampTimespan(actual, target time.Duration, factor int64) time.Duration {
	min := target / time.Duration(factor)
	max := target * time.Duration(factor)
	switch {
	case actual < min:
		return min
	case actual > max:
		return max
	default:
		return actual
	}
}

// String implements fmt.Stringer for debug logging.
func (p *Params) String() string {
	return fmt.Sprintf("%s(net=%08x)", p.Name, p.Net)
}
