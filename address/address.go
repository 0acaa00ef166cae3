// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address implements the Base58Check address codec used by the
// pay-to-pubkey-hash and pay-to-script-hash script templates (spec §6).
// The base58 alphabet itself is an external collaborator; this package
// wires github.com/EXCCoin/base58 the same way the teacher repo's
// exccutil.WIF type does, rather than reimplementing the alphabet.
package address

import (
	"bytes"
	"errors"

	"github.com/EXCCoin/base58"

	"github.com/brainwallet-co/core/chainhash"
)

// ErrChecksumMismatch is returned when a decoded address fails its
// checksum.
var ErrChecksumMismatch = errors.New("address: checksum mismatch")

// ErrMalformed is returned when a decoded address has the wrong length or
// an unrecognized version byte.
var ErrMalformed = errors.New("address: malformed or unknown version byte")

const checksumLen = 4

// Params is the subset of chaincfg.Params this package needs: the
// version bytes that distinguish a pubkey-hash address from a
// script-hash address on a given network.
type Params struct {
	PubKeyHashAddrID byte
	ScriptHashAddrID byte
}

// PubKeyHashAddress is a pay-to-pubkey-hash address: a network version
// byte followed by the 20-byte hash160 of a serialized public key.
type PubKeyHashAddress struct {
	hash [20]byte
	net  *Params
}

// NewPubKeyHashAddress builds a PubKeyHashAddress from a 20-byte hash160.
func NewPubKeyHashAddress(pkHash []byte, net *Params) (*PubKeyHashAddress, error) {
	if len(pkHash) != 20 {
		return nil, ErrMalformed
	}
	a := &PubKeyHashAddress{net: net}
	copy(a.hash[:], pkHash)
	return a, nil
}

// Hash160 returns the 20-byte key hash backing the address.
func (a *PubKeyHashAddress) Hash160() []byte {
	h := make([]byte, 20)
	copy(h, a.hash[:])
	return h
}

// String encodes the address as Base58Check.
func (a *PubKeyHashAddress) String() string {
	return encode(a.net.PubKeyHashAddrID, a.hash[:])
}

// ScriptHashAddress is a pay-to-script-hash address: a network version
// byte followed by the 20-byte hash160 of a redeem script.
type ScriptHashAddress struct {
	hash [20]byte
	net  *Params
}

// NewScriptHashAddress builds a ScriptHashAddress from a 20-byte hash160.
func NewScriptHashAddress(scriptHash []byte, net *Params) (*ScriptHashAddress, error) {
	if len(scriptHash) != 20 {
		return nil, ErrMalformed
	}
	a := &ScriptHashAddress{net: net}
	copy(a.hash[:], scriptHash)
	return a, nil
}

// Hash160 returns the 20-byte script hash backing the address.
func (a *ScriptHashAddress) Hash160() []byte {
	h := make([]byte, 20)
	copy(h, a.hash[:])
	return h
}

// String encodes the address as Base58Check.
func (a *ScriptHashAddress) String() string {
	return encode(a.net.ScriptHashAddrID, a.hash[:])
}

// encode base58check-encodes ver||payload with a double-SHA256 checksum.
func encode(ver byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+checksumLen)
	buf = append(buf, ver)
	buf = append(buf, payload...)
	cksum := chainhash.DoubleHashB(buf)[:checksumLen]
	buf = append(buf, cksum...)
	return base58.Encode(buf)
}

// Decode decodes a Base58Check address string, returning either a
// *PubKeyHashAddress or a *ScriptHashAddress depending on the version
// byte.
func Decode(addr string, net *Params) (interface{}, error) {
	decoded := base58.Decode(addr)
	if len(decoded) != 1+20+checksumLen {
		return nil, ErrMalformed
	}

	payload := decoded[:1+20]
	cksum := chainhash.DoubleHashB(payload)[:checksumLen]
	if !bytes.Equal(cksum, decoded[1+20:]) {
		return nil, ErrChecksumMismatch
	}

	ver := decoded[0]
	hash := decoded[1 : 1+20]
	switch ver {
	case net.PubKeyHashAddrID:
		return NewPubKeyHashAddress(hash, net)
	case net.ScriptHashAddrID:
		return NewScriptHashAddress(hash, net)
	default:
		return nil, ErrMalformed
	}
}

// EncodeHash160 is a convenience wrapper used by the transaction codec to
// derive a display address from a raw 20-byte hash and a known script
// class without constructing an intermediate typed address value.
func EncodeHash160(ver byte, hash160 []byte) string {
	return encode(ver, hash160)
}
