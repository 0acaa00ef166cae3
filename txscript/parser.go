// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chainhash"
)

func hash160(b []byte) []byte {
	return chainhash.Hash160(b)
}

// element is one parsed push (or opcode-only step) within a script.
type element struct {
	op   byte
	data []byte
}

// parseElements walks a script and returns its pushdata elements plus the
// bare opcodes encountered, in order. It never evaluates the script, only
// tokenizes it — sufficient for template recognition (spec §6) and the
// parser's signed/unsigned classification (spec §4.3).
func parseElements(script []byte) ([]element, bool) {
	var out []element
	i := 0
	for i < len(script) {
		op := script[i]
		switch {
		case op == OP_0:
			out = append(out, element{op: op})
			i++
		case op < OP_PUSHDATA1:
			n := int(op)
			if i+1+n > len(script) {
				return nil, false
			}
			out = append(out, element{op: op, data: script[i+1 : i+1+n]})
			i += 1 + n
		case op == OP_PUSHDATA1:
			if i+2 > len(script) {
				return nil, false
			}
			n := int(script[i+1])
			if i+2+n > len(script) {
				return nil, false
			}
			out = append(out, element{op: op, data: script[i+2 : i+2+n]})
			i += 2 + n
		case op == OP_PUSHDATA2:
			if i+3 > len(script) {
				return nil, false
			}
			n := int(script[i+1]) | int(script[i+2])<<8
			if i+3+n > len(script) {
				return nil, false
			}
			out = append(out, element{op: op, data: script[i+3 : i+3+n]})
			i += 3 + n
		case op == OP_PUSHDATA4:
			if i+5 > len(script) {
				return nil, false
			}
			n := int(script[i+1]) | int(script[i+2])<<8 | int(script[i+3])<<16 | int(script[i+4])<<24
			if i+5+n > len(script) {
				return nil, false
			}
			out = append(out, element{op: op, data: script[i+5 : i+5+n]})
			i += 5 + n
		default:
			out = append(out, element{op: op})
			i++
		}
	}
	return out, true
}

// ScriptClass identifies a recognized scriptPubKey template.
type ScriptClass int

// Recognized script templates (spec §6).
const (
	NonStandardTy ScriptClass = iota
	PubKeyHashTy
	PubKeyTy
	ScriptHashTy
)

// Classify returns the recognized template for a scriptPubKey.
func Classify(script []byte) ScriptClass {
	els, ok := parseElements(script)
	if !ok {
		return NonStandardTy
	}
	switch {
	case len(els) == 5 &&
		els[0].op == OP_DUP && els[1].op == OP_HASH160 &&
		len(els[2].data) == 20 &&
		els[3].op == OP_EQUALVERIFY && els[4].op == OP_CHECKSIG:
		return PubKeyHashTy

	case len(els) == 3 &&
		els[0].op == OP_HASH160 && len(els[1].data) == 20 && els[2].op == OP_EQUAL:
		return ScriptHashTy

	case len(els) == 2 &&
		(len(els[0].data) == 33 || len(els[0].data) == 65) && els[1].op == OP_CHECKSIG:
		return PubKeyTy

	default:
		return NonStandardTy
	}
}

// ExtractPubKeyHash returns the 20-byte hash from a P2PKH scriptPubKey, or
// nil if script is not P2PKH.
func ExtractPubKeyHash(script []byte) []byte {
	els, ok := parseElements(script)
	if !ok || len(els) != 5 {
		return nil
	}
	if els[0].op != OP_DUP || els[1].op != OP_HASH160 || len(els[2].data) != 20 ||
		els[3].op != OP_EQUALVERIFY || els[4].op != OP_CHECKSIG {
		return nil
	}
	return els[2].data
}

// ExtractScriptHash returns the 20-byte hash from a P2SH scriptPubKey, or
// nil if script is not P2SH.
func ExtractScriptHash(script []byte) []byte {
	els, ok := parseElements(script)
	if !ok || len(els) != 3 {
		return nil
	}
	if els[0].op != OP_HASH160 || len(els[1].data) != 20 || els[2].op != OP_EQUAL {
		return nil
	}
	return els[1].data
}

// ExtractPubKey returns the serialized public key from a bare
// pay-to-pubkey scriptPubKey, or nil if script is not pay-to-pubkey.
func ExtractPubKey(script []byte) []byte {
	els, ok := parseElements(script)
	if !ok || len(els) != 2 {
		return nil
	}
	if (len(els[0].data) != 33 && len(els[0].data) != 65) || els[1].op != OP_CHECKSIG {
		return nil
	}
	return els[0].data
}

// LooksLikeScriptPubKey reports whether script parses as one of the
// recognized scriptPubKey templates. The transaction parser (spec §4.3)
// uses this to distinguish an unsigned input (which carries the prevout
// scriptPubKey) from a signed input's sigScript.
func LooksLikeScriptPubKey(script []byte) bool {
	return Classify(script) != NonStandardTy
}

// ExtractAddress derives the display address for a scriptPubKey, following
// spec §3's rule that an address is derived from whichever script is
// known. It returns "" for scripts that don't match a recognized
// template.
func ExtractAddress(script []byte, net *address.Params) string {
	switch Classify(script) {
	case PubKeyHashTy:
		a, err := address.NewPubKeyHashAddress(ExtractPubKeyHash(script), net)
		if err != nil {
			return ""
		}
		return a.String()
	case ScriptHashTy:
		a, err := address.NewScriptHashAddress(ExtractScriptHash(script), net)
		if err != nil {
			return ""
		}
		return a.String()
	case PubKeyTy:
		hash := hash160(ExtractPubKey(script))
		a, err := address.NewPubKeyHashAddress(hash, net)
		if err != nil {
			return ""
		}
		return a.String()
	default:
		return ""
	}
}

// ExtractSigScriptElements returns the pushdata elements of a sigScript,
// in order (e.g. signature, pubkey for P2PKH). It is used both by the
// signer to build a sigScript and by the wallet to derive an input's
// address from its sigScript when no prevout script is known (spec §3).
func ExtractSigScriptElements(sigScript []byte) [][]byte {
	els, ok := parseElements(sigScript)
	if !ok {
		return nil
	}
	out := make([][]byte, 0, len(els))
	for _, e := range els {
		out = append(out, e.data)
	}
	return out
}
