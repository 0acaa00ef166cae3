// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

// ScriptBuilder accumulates opcodes and pushdata into a script, handling
// the minimal-pushdata encoding rule (small pushes use a single-byte
// length opcode, larger pushes use OP_PUSHDATA1/2/4 as needed).
type ScriptBuilder struct {
	script []byte
}

// NewScriptBuilder returns a new, empty ScriptBuilder.
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

// AddOp appends a single opcode.
func (b *ScriptBuilder) AddOp(op byte) *ScriptBuilder {
	b.script = append(b.script, op)
	return b
}

// AddData appends data using the shortest valid pushdata encoding.
func (b *ScriptBuilder) AddData(data []byte) *ScriptBuilder {
	n := len(data)
	switch {
	case n == 0:
		b.script = append(b.script, OP_0)
	case n < OP_PUSHDATA1:
		b.script = append(b.script, byte(n))
	case n <= 0xff:
		b.script = append(b.script, OP_PUSHDATA1, byte(n))
	case n <= 0xffff:
		b.script = append(b.script, OP_PUSHDATA2, byte(n), byte(n>>8))
	default:
		b.script = append(b.script, OP_PUSHDATA4,
			byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
	b.script = append(b.script, data...)
	return b
}

// Script returns the built script.
func (b *ScriptBuilder) Script() []byte {
	return b.script
}

// PayToPubKeyHashScript builds a standard P2PKH scriptPubKey:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func PayToPubKeyHashScript(pkHash []byte) []byte {
	return NewScriptBuilder().
		AddOp(OP_DUP).
		AddOp(OP_HASH160).
		AddData(pkHash).
		AddOp(OP_EQUALVERIFY).
		AddOp(OP_CHECKSIG).
		Script()
}

// PayToPubKeyScript builds a bare pay-to-pubkey scriptPubKey:
// <pubkey> OP_CHECKSIG.
func PayToPubKeyScript(pubKey []byte) []byte {
	return NewScriptBuilder().
		AddData(pubKey).
		AddOp(OP_CHECKSIG).
		Script()
}

// PayToScriptHashScript builds a standard P2SH scriptPubKey:
// OP_HASH160 <20-byte hash> OP_EQUAL.
func PayToScriptHashScript(scriptHash []byte) []byte {
	return NewScriptBuilder().
		AddOp(OP_HASH160).
		AddData(scriptHash).
		AddOp(OP_EQUAL).
		Script()
}
