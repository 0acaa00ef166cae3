// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txsign implements the pay-to-pubkey-hash / pay-to-pubkey
// signer of spec §4.2. ECDSA itself is an external collaborator per
// spec §1; this package wires github.com/decred/dcrd/dcrec/secp256k1/v4
// for signing rather than re-deriving the curve arithmetic.
package txsign

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/transaction"
	"github.com/brainwallet-co/core/txscript"
)

// ErrNoMatchingKey is returned when none of the supplied keys can sign
// an input (spec §7 InvalidInput).
var ErrNoMatchingKey = errors.New("txsign: no matching key for input")

// KeySource resolves a derived address to its private key, e.g. the
// wallet engine's address-chain lookup.
type KeySource func(addr string) *secp256k1.PrivateKey

// Signer signs P2PKH/P2PK inputs of a Transaction under a configured
// fork-id byte (spec §4.2). ForkID selects the digest form used for
// every input: 0 for the plain legacy digest, or a nonzero fork-id
// combined with SighashForkID to select the BIP143-style witness
// digest.
type Signer struct {
	Net    *address.Params
	ForkID byte
}

// hashType returns the SIGHASH_ALL hashType for this signer's fork-id
// configuration.
func (s *Signer) hashType() uint32 {
	ht := uint32(transaction.SighashAll)
	if s.ForkID != 0 {
		ht |= uint32(s.ForkID)<<8 | transaction.SighashForkID
	}
	return ht
}

// Sign signs every input of tx whose prevout script matches a key
// resolvable via keys, using the pre-image selected by spec §4.3 and the
// scriptSig template of spec §4.2. It recomputes tx's txHash on success
// (spec §3: txHash is only valid once signed).
//
// Inputs whose prevout script does not match any provided key are left
// untouched; Sign returns ErrNoMatchingKey only if it signed nothing at
// all, so partially-owned transactions (e.g. multi-party) can be signed
// incrementally across calls.
func (s *Signer) Sign(tx *transaction.Transaction, keys KeySource) error {
	hashType := s.hashType()
	signedAny := false

	for idx, in := range tx.Inputs {
		if in.IsSigned() || len(in.Script) == 0 {
			continue
		}

		priv := keys(in.Address)
		if priv == nil {
			continue
		}

		class := txscript.Classify(in.Script)
		digest := tx.SignaturePreimage(idx, hashType)

		sig := ecdsa.Sign(priv, digest)
		sigBytes := append(sig.Serialize(), byte(hashType&0xff))

		switch class {
		case txscript.PubKeyHashTy:
			pub := priv.PubKey().SerializeCompressed()
			in.Signature = txscript.NewScriptBuilder().
				AddData(sigBytes).
				AddData(pub).
				Script()
		case txscript.PubKeyTy:
			in.Signature = txscript.NewScriptBuilder().
				AddData(sigBytes).
				Script()
		default:
			continue
		}
		signedAny = true
	}

	if !signedAny {
		return ErrNoMatchingKey
	}

	tx.RefreshHash()
	return nil
}

// Verify checks the scriptSig of input idx against its known prevout
// script, recomputing the same pre-image the signer used. It is used by
// tests to round-trip a signature, not by the wallet at runtime (full
// script execution is out of scope, spec §1).
func Verify(tx *transaction.Transaction, idx int, forkID byte) bool {
	in := tx.Inputs[idx]
	els := txscript.ExtractSigScriptElements(in.Signature)
	if len(els) == 0 {
		return false
	}
	sigWithType := els[0]
	if len(sigWithType) < 1 {
		return false
	}
	hashType := uint32(sigWithType[len(sigWithType)-1])
	if forkID != 0 {
		hashType |= uint32(forkID)<<8 | transaction.SighashForkID
	}
	sig, err := ecdsa.ParseDERSignature(sigWithType[:len(sigWithType)-1])
	if err != nil {
		return false
	}

	var pubBytes []byte
	switch txscript.Classify(in.Script) {
	case txscript.PubKeyHashTy:
		if len(els) < 2 {
			return false
		}
		pubBytes = els[1]
		if !bytesEqual(chainhash.Hash160(pubBytes), txscript.ExtractPubKeyHash(in.Script)) {
			return false
		}
	case txscript.PubKeyTy:
		pubBytes = txscript.ExtractPubKey(in.Script)
	default:
		return false
	}

	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}

	digest := tx.SignaturePreimage(idx, hashType)
	return sig.Verify(digest, pub)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
