// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"math/big"
	"time"
)

// MainNetParams returns the network parameters for the main network.
func MainNetParams() *Params {
	// mainPowLimit is the highest proof-of-work target a main-network
	// block may have. It is the value 2^224 - 1.
	mainPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	return &Params{
		Name:         "mainnet",
		Net:          0xd9b4bef9,
		StandardPort: "8333",

		PubKeyHashAddrID: 48,
		ScriptHashAddrID: 50,

		HDPrivateKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4}, // xprv
		HDPublicKeyID:  [4]byte{0x04, 0x88, 0xb2, 0x1e}, // xpub

		Services: 1 | 4, // NODE_NETWORK | NODE_BLOOM

		DNSSeeds: []DNSSeed{
			{"seed.chain.example", true},
			{"dnsseed.chain.example", true},
			{"seed.chain-archive.example", false},
		},

		PowLimit:             mainPowLimit,
		PowLimitBits:         BigToCompact(mainPowLimit),
		DifficultyInterval:   2016,
		TargetTimespan:       14 * 24 * time.Hour,
		TargetSpacing:        10 * time.Minute,
		RetargetAdjustFactor: 4,

		// Checkpoints ordered from oldest to newest. Each one pins its
		// height during block linkage checks; the latest one at or below
		// the tip also sets the old-fork bound (spec §4.4 case 8).
		Checkpoints: []Checkpoint{
			{Height: 11111, Target: new(big.Int).Lsh(bigOne, 200)},
			{Height: 33333, Target: new(big.Int).Lsh(bigOne, 200)},
			{Height: 210000, Target: new(big.Int).Lsh(bigOne, 196)},
		},
	}
}

// TestNetParams returns the network parameters for the test network.
func TestNetParams() *Params {
	testPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 232), bigOne)

	return &Params{
		Name:         "testnet",
		Net:          0x0709110b,
		StandardPort: "18333",

		PubKeyHashAddrID: 111,
		ScriptHashAddrID: 58,

		HDPrivateKeyID: [4]byte{0x04, 0x35, 0x83, 0x94}, // tprv
		HDPublicKeyID:  [4]byte{0x04, 0x35, 0x87, 0xcf}, // tpub

		Services: 1 | 4,

		DNSSeeds: []DNSSeed{
			{"testnet-seed.chain.example", true},
		},

		PowLimit:             testPowLimit,
		PowLimitBits:         BigToCompact(testPowLimit),
		DifficultyInterval:   2016,
		TargetTimespan:       14 * 24 * time.Hour,
		TargetSpacing:        10 * time.Minute,
		RetargetAdjustFactor: 4,

		Checkpoints: []Checkpoint{
			{Height: 546, Target: new(big.Int).Lsh(bigOne, 220)},
		},
	}
}
