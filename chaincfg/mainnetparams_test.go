// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import "testing"

func TestMainNetAndTestNetDistinctAddressVersions(t *testing.T) {
	main := MainNetParams()
	test := TestNetParams()

	if main.PubKeyHashAddrID == test.PubKeyHashAddrID {
		t.Fatal("mainnet and testnet must not share a pubkey-hash version byte")
	}
	if main.ScriptHashAddrID == test.ScriptHashAddrID {
		t.Fatal("mainnet and testnet must not share a script-hash version byte")
	}
	if main.HDPrivateKeyID == test.HDPrivateKeyID {
		t.Fatal("mainnet and testnet must not share an HD private key version")
	}
}

func TestMainNetPowLimitMatchesBits(t *testing.T) {
	p := MainNetParams()
	if BigToCompact(p.PowLimit) != p.PowLimitBits {
		t.Fatalf("PowLimitBits = %#08x, recomputed = %#08x", p.PowLimitBits, BigToCompact(p.PowLimit))
	}
}

func TestMainNetCheckpointsAreOrdered(t *testing.T) {
	p := MainNetParams()
	for i := 1; i < len(p.Checkpoints); i++ {
		if p.Checkpoints[i].Height <= p.Checkpoints[i-1].Height {
			t.Fatalf("checkpoint %d (height %d) is not after checkpoint %d (height %d)",
				i, p.Checkpoints[i].Height, i-1, p.Checkpoints[i-1].Height)
		}
	}
}

func TestAddressParamsAdaptsCorrectly(t *testing.T) {
	p := MainNetParams()
	ap := p.AddressParams()
	if ap.PubKeyHashAddrID != p.PubKeyHashAddrID || ap.ScriptHashAddrID != p.ScriptHashAddrID {
		t.Fatalf("AddressParams() = %+v, want matching version bytes from %+v", ap, p)
	}
}
