// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/hdkeychain/v3"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
)

// Chain selects one of the two BIP32-style derivation branches of
// spec §4.2.
type Chain int

const (
	External Chain = 0 // receive chain
	Internal Chain = 1 // change chain
)

// Gap-limit constants (spec §4.2, §6): the wallet keeps at least this
// many consecutive unused addresses beyond the last used address on
// each branch.
const (
	SequenceGapLimitExternal = 20
	SequenceGapLimitInternal = 10
)

// derivedAddress is one generated leaf of an AddressChain branch.
type derivedAddress struct {
	addr string
	key  *hdkeychain.ExtendedKey // nil for a watch-only wallet
}

// ChainObserver is notified whenever a branch is extended with newly
// derived addresses, so a host can persist the gap-limit window without
// this core depending on a storage engine itself (SPEC_FULL.md §C.1).
type ChainObserver interface {
	AddressesExtended(c Chain, addrs []string)
}

// AddressChain derives pay-to-pubkey-hash addresses deterministically
// from a BIP32 account extended key along the external/internal branches
// (spec §4.2). BIP32 derivation itself is an external collaborator per
// spec §1; this type wires github.com/decred/dcrd/hdkeychain/v3 rather
// than re-deriving the curve/HMAC math.
type AddressChain struct {
	net     *address.Params
	account *hdkeychain.ExtendedKey // may be public-only (watch-only wallet)

	branch  [2]*hdkeychain.ExtendedKey
	derived [2][]derivedAddress

	observer ChainObserver
}

// SetObserver installs (or clears, with nil) the persistence hook invoked
// after every branch extension.
func (ac *AddressChain) SetObserver(o ChainObserver) {
	ac.observer = o
}

// NewAddressChain derives the external (0) and internal (1) branch keys
// from accountKey, which may be a neutered (public-only) extended key
// for a watch-only wallet.
func NewAddressChain(accountKey *hdkeychain.ExtendedKey, params *chaincfg.Params) (*AddressChain, error) {
	ac := &AddressChain{
		net:     params.AddressParams(),
		account: accountKey,
	}
	for _, c := range []Chain{External, Internal} {
		branchKey, err := accountKey.Child(uint32(c))
		if err != nil {
			return nil, err
		}
		ac.branch[c] = branchKey
	}
	return ac, nil
}

// MasterFromSeed derives a private account extended key from a BIP32/39
// seed. Mnemonic encoding (BIP39) and the seed itself are out of this
// core's scope (spec §1); callers supply the already-decoded seed bytes.
func MasterFromSeed(seed []byte, params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	return hdkeychain.NewMaster(seed, params)
}

// Addresses returns every address derived so far on the given branch, in
// derivation order.
func (ac *AddressChain) Addresses(c Chain) []string {
	out := make([]string, len(ac.derived[c]))
	for i, d := range ac.derived[c] {
		out[i] = d.addr
	}
	return out
}

// extendTo ensures at least n addresses exist on branch c, deriving one
// at a time.
func (ac *AddressChain) extendTo(c Chain, n int) error {
	start := len(ac.derived[c])
	for len(ac.derived[c]) < n {
		idx := uint32(len(ac.derived[c]))
		child, err := ac.branch[c].Child(idx)
		if err != nil {
			// A child index can be invalid in vanishingly rare cases
			// per BIP32; skip it and try the next, per convention.
			continue
		}
		pub, err := child.ECPubKey()
		if err != nil {
			return err
		}
		pkHash := chainhash.Hash160(pub.SerializeCompressed())
		addr, err := address.NewPubKeyHashAddress(pkHash, ac.net)
		if err != nil {
			return err
		}
		ac.derived[c] = append(ac.derived[c], derivedAddress{addr: addr.String(), key: child})
	}
	if ac.observer != nil && len(ac.derived[c]) > start {
		ac.observer.AddressesExtended(c, ac.Addresses(c)[start:])
	}
	return nil
}

// gapLimit returns the configured gap limit for a branch.
func gapLimit(c Chain) int {
	if c == Internal {
		return SequenceGapLimitInternal
	}
	return SequenceGapLimitExternal
}

// UnusedAddrs implements spec §4.2's unusedAddrs(n, chain): returns the
// next n addresses following the last used address, extending the
// branch as needed so there are always at least n trailing unused
// addresses beyond the last used one.
func (ac *AddressChain) UnusedAddrs(c Chain, n int, usedAddrs map[string]bool) ([]string, error) {
	lastUsed := -1
	for i, d := range ac.derived[c] {
		if usedAddrs[d.addr] {
			lastUsed = i
		}
	}
	need := lastUsed + 1 + n
	if err := ac.extendTo(c, need); err != nil {
		return nil, err
	}
	// Keep growing while the gap limit beyond the last used address has
	// not yet been met.
	for len(ac.derived[c])-(lastUsed+1) < gapLimit(c) {
		if err := ac.extendTo(c, len(ac.derived[c])+1); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, n)
	for i := lastUsed + 1; i < lastUsed+1+n && i < len(ac.derived[c]); i++ {
		out = append(out, ac.derived[c][i].addr)
	}
	return out, nil
}

// PrivateKeyFor returns the private key for addr if it has been derived
// on either branch and the wallet is not watch-only, else nil.
func (ac *AddressChain) PrivateKeyFor(addr string) *secp256k1.PrivateKey {
	for c := 0; c < 2; c++ {
		for _, d := range ac.derived[c] {
			if d.addr == addr {
				priv, err := d.key.ECPrivKey()
				if err != nil {
					return nil
				}
				return priv
			}
		}
	}
	return nil
}

// ChainIndexOf returns the branch and derivation index of addr, used by
// the tx-log ordering tie-break of spec §4.2.
func (ac *AddressChain) ChainIndexOf(addr string) (Chain, int, bool) {
	for c := 0; c < 2; c++ {
		for i, d := range ac.derived[c] {
			if d.addr == addr {
				return Chain(c), i, true
			}
		}
	}
	return 0, 0, false
}
