// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"testing"
	"time"

	"github.com/brainwallet-co/core/chainhash"
)

func TestCompactToBigRoundTrip(t *testing.T) {
	tests := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff, 0x03123456}
	for _, compact := range tests {
		n := CompactToBig(compact)
		got := BigToCompact(n)
		if got != compact {
			t.Errorf("round trip %#08x -> %v -> %#08x, want %#08x", compact, n, got, compact)
		}
	}
}

func TestLatestCheckpoint(t *testing.T) {
	p := &Params{Checkpoints: []Checkpoint{
		{Height: 100},
		{Height: 500},
		{Height: 1000},
	}}

	tests := []struct {
		height int32
		want   int32
		wantOK bool
	}{
		{height: 50, wantOK: false},
		{height: 100, want: 100, wantOK: true},
		{height: 750, want: 500, wantOK: true},
		{height: 10000, want: 1000, wantOK: true},
	}
	for _, tt := range tests {
		cp := p.LatestCheckpoint(tt.height)
		if tt.wantOK && (cp == nil || cp.Height != tt.want) {
			t.Errorf("LatestCheckpoint(%d) = %v, want height %d", tt.height, cp, tt.want)
		}
		if !tt.wantOK && cp != nil {
			t.Errorf("LatestCheckpoint(%d) = %v, want nil", tt.height, cp)
		}
	}
}

func TestCheckpointAt(t *testing.T) {
	p := &Params{Checkpoints: []Checkpoint{{Height: 100}, {Height: 500}}}
	if cp := p.CheckpointAt(500); cp == nil {
		t.Fatal("CheckpointAt(500) = nil, want a checkpoint")
	}
	if cp := p.CheckpointAt(200); cp != nil {
		t.Fatalf("CheckpointAt(200) = %v, want nil", cp)
	}
}

type fakeHeader struct {
	height    int32
	timestamp time.Time
	target    *big.Int
}

func (h fakeHeader) BlockHeight() int32            { return h.height }
func (h fakeHeader) BlockTimestamp() time.Time     { return h.timestamp }
func (h fakeHeader) BlockTarget() *big.Int         { return h.target }
func (h fakeHeader) BlockHash() chainhash.Hash     { return chainhash.Hash{} }
func (h fakeHeader) BlockPrevHash() chainhash.Hash { return chainhash.Hash{} }

func TestVerifyDifficultyOffBoundary(t *testing.T) {
	p := &Params{DifficultyInterval: 2016}
	parent := fakeHeader{target: big.NewInt(1000)}
	block := fakeHeader{height: 1, target: big.NewInt(1000)}
	if !p.VerifyDifficulty(block, parent, nil) {
		t.Fatal("expected unchanged target off a retarget boundary to verify")
	}

	changed := fakeHeader{height: 1, target: big.NewInt(999)}
	if p.VerifyDifficulty(changed, parent, nil) {
		t.Fatal("expected a changed target off a retarget boundary to fail")
	}
}

func TestVerifyDifficultyOnBoundaryRecomputes(t *testing.T) {
	p := &Params{
		DifficultyInterval:   144,
		TargetTimespan:       144 * time.Hour,
		TargetSpacing:        time.Hour,
		RetargetAdjustFactor: 4,
		PowLimit:             new(big.Int).Lsh(big.NewInt(1), 240),
	}
	start := time.Unix(0, 0)
	windowStart := fakeHeader{timestamp: start}
	parent := fakeHeader{target: big.NewInt(1_000_000)}
	// Exactly on-time: target should be unchanged.
	block := fakeHeader{
		height:    144,
		timestamp: start.Add(144 * time.Hour),
		target:    big.NewInt(1_000_000),
	}
	if !p.VerifyDifficulty(block, parent, windowStart) {
		t.Fatal("on-time retarget should reproduce the same target")
	}
}

func TestVerifyDifficultyRequiresWindowStartOnBoundary(t *testing.T) {
	p := &Params{DifficultyInterval: 10}
	block := fakeHeader{height: 10}
	parent := fakeHeader{target: big.NewInt(1)}
	if p.VerifyDifficulty(block, parent, nil) {
		t.Fatal("expected false when windowStart is nil on a retarget boundary")
	}
}

func TestHDKeyVersionAccessors(t *testing.T) {
	p := &Params{
		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4},
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e},
	}
	if p.HDPrivKeyVersion() != p.HDPrivateKeyID {
		t.Fatal("HDPrivKeyVersion mismatch")
	}
	if p.HDPubKeyVersion() != p.HDPublicKeyID {
		t.Fatal("HDPubKeyVersion mismatch")
	}
}
