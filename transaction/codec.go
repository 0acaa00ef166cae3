// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/txscript"
)

// ErrMalformed is returned by Parse when the byte stream does not decode
// as a well-formed transaction.
var ErrMalformed = errors.New("transaction: malformed serialization")

// --- variable-length integers ---------------------------------------------

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		binary.Write(buf, binary.LittleEndian, uint16(n))
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		binary.Write(buf, binary.LittleEndian, uint32(n))
	default:
		buf.WriteByte(0xff)
		binary.Write(buf, binary.LittleEndian, n)
	}
}

func varIntSize(n uint64) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0xfd:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xfe:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return uint64(v), nil
	case 0xff:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		return v, nil
	default:
		return uint64(b), nil
	}
}

func readBytes(r *bytes.Reader, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := readFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// --- wire serialization (legacy, fully signed) -----------------------------

// Serialize returns the canonical wire-format serialization of a fully
// signed transaction. An unsigned input is written with an empty script
// and no amount (spec §4.3).
func (tx *Transaction) Serialize() []byte {
	return tx.serializeLegacy(noSigIndex, 0)
}

// serializeLegacy implements the legacy digest form of spec §4.3. When
// idx == noSigIndex, it serializes a complete transaction (using each
// input's real Signature, omitting the trailing hashType). Otherwise it
// produces the signature pre-image for input idx under hashType,
// following the per-input policy of spec §4.3.
func (tx *Transaction) serializeLegacy(idx int, hashType uint32) []byte {
	anyoneCanPay := hashType&SighashAnyoneCanPay != 0
	sigHash := hashType &^ (SighashAnyoneCanPay | SighashForkID)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, tx.Version)

	// Inputs.
	switch {
	case idx == noSigIndex:
		writeVarInt(&buf, uint64(len(tx.Inputs)))
		for _, in := range tx.Inputs {
			writeLegacyInput(&buf, in, in.Signature, in.Amount, true)
		}

	case anyoneCanPay:
		writeVarInt(&buf, 1)
		in := tx.Inputs[idx]
		writeLegacyInput(&buf, in, in.Script, 0, false)

	default:
		writeVarInt(&buf, uint64(len(tx.Inputs)))
		for i, in := range tx.Inputs {
			if i == idx {
				writeLegacyInput(&buf, in, in.Script, 0, false)
				continue
			}
			seq := in.Sequence
			if sigHash == SighashNone || sigHash == SighashSingle {
				seq = 0
			}
			writeLegacyInputScriptless(&buf, in, seq)
		}
	}

	// Outputs.
	switch {
	case idx == noSigIndex || sigHash == SighashAll || sigHash == 0:
		writeVarInt(&buf, uint64(len(tx.Outputs)))
		for _, out := range tx.Outputs {
			writeOutput(&buf, out)
		}

	case sigHash == SighashSingle:
		if idx < len(tx.Outputs) {
			writeVarInt(&buf, uint64(idx+1))
			for i := 0; i < idx; i++ {
				binary.Write(&buf, binary.LittleEndian, int64(-1))
				writeVarInt(&buf, 0)
			}
			writeOutput(&buf, tx.Outputs[idx])
		} else {
			writeVarInt(&buf, 0)
		}

	case sigHash == SighashNone:
		writeVarInt(&buf, 0)

	default:
		writeVarInt(&buf, uint64(len(tx.Outputs)))
		for _, out := range tx.Outputs {
			writeOutput(&buf, out)
		}
	}

	binary.Write(&buf, binary.LittleEndian, tx.LockTime)
	if idx != noSigIndex {
		binary.Write(&buf, binary.LittleEndian, hashType)
	}

	return buf.Bytes()
}

func writeLegacyInput(buf *bytes.Buffer, in *Input, script []byte, amount int64, completed bool) {
	buf.Write(in.PreviousOutPoint.Hash[:])
	binary.Write(buf, binary.LittleEndian, in.PreviousOutPoint.Index)
	writeVarInt(buf, uint64(len(script)))
	buf.Write(script)
	// The in-memory hand-off extension (spec §4.3): for an unsigned
	// input with a known nonzero amount, an 8-byte amount follows the
	// script. This is never part of the wire format.
	if !completed && amount != 0 {
		binary.Write(buf, binary.LittleEndian, amount)
	}
	binary.Write(buf, binary.LittleEndian, in.Sequence)
}

func writeLegacyInputScriptless(buf *bytes.Buffer, in *Input, seq uint32) {
	buf.Write(in.PreviousOutPoint.Hash[:])
	binary.Write(buf, binary.LittleEndian, in.PreviousOutPoint.Index)
	writeVarInt(buf, 0)
	binary.Write(buf, binary.LittleEndian, seq)
}

func writeOutput(buf *bytes.Buffer, out *Output) {
	binary.Write(buf, binary.LittleEndian, out.Amount)
	writeVarInt(buf, uint64(len(out.Script)))
	buf.Write(out.Script)
}

// SerializeUnsignedHandoff produces the same bytes as Serialize: each
// input is written with its Signature, which is empty for an unsigned
// input, and no amount follows it. An unsigned input's prevout
// scriptPubKey and amount are not written, so the hand-off extension of
// spec §4.3 is not produced here. No code in this module calls it.
func (tx *Transaction) SerializeUnsignedHandoff() []byte {
	return tx.serializeLegacy(noSigIndex, 0)
}

// --- parsing ---------------------------------------------------------------

// Parse decodes a serialized transaction in the legacy wire form,
// distinguishing signed inputs (sigScript) from unsigned inputs (a script
// that parses as a scriptPubKey is kept as the prevout script), per spec
// §4.3. No hand-off amount is read after an unsigned input's script.
// txHash is computed iff the parsed transaction is fully signed.
func Parse(raw []byte, net *address.Params) (*Transaction, error) {
	r := bytes.NewReader(raw)
	tx := &Transaction{BlockHeight: TxUnconfirmed}

	var version int32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrMalformed
	}
	tx.Version = version

	nIn, err := readVarInt(r)
	if err != nil {
		return nil, ErrMalformed
	}
	for i := uint64(0); i < nIn; i++ {
		in, err := parseInput(r)
		if err != nil {
			return nil, ErrMalformed
		}
		in.deriveAddress(net)
		tx.Inputs = append(tx.Inputs, in)
	}

	nOut, err := readVarInt(r)
	if err != nil {
		return nil, ErrMalformed
	}
	for i := uint64(0); i < nOut; i++ {
		out, err := parseOutput(r, net)
		if err != nil {
			return nil, ErrMalformed
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	if err := binary.Read(r, binary.LittleEndian, &tx.LockTime); err != nil {
		return nil, ErrMalformed
	}

	tx.RefreshHash()
	return tx, nil
}

func parseInput(r *bytes.Reader) (*Input, error) {
	in := &Input{}
	if _, err := readFull(r, in.PreviousOutPoint.Hash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &in.PreviousOutPoint.Index); err != nil {
		return nil, err
	}
	scriptLen, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	script, err := readBytes(r, int(scriptLen))
	if err != nil {
		return nil, err
	}

	if len(script) > 0 && txscript.LooksLikeScriptPubKey(script) {
		in.Script = script
		// No hand-off amount (spec §4.3) is read here: the four bytes
		// after the script are taken as the sequence.
	} else {
		in.Signature = script
	}

	if err := binary.Read(r, binary.LittleEndian, &in.Sequence); err != nil {
		return nil, err
	}
	return in, nil
}

func parseOutput(r *bytes.Reader, net *address.Params) (*Output, error) {
	out := &Output{}
	if err := binary.Read(r, binary.LittleEndian, &out.Amount); err != nil {
		return nil, err
	}
	scriptLen, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	script, err := readBytes(r, int(scriptLen))
	if err != nil {
		return nil, err
	}
	out.Script = script
	out.Address = txscript.ExtractAddress(script, net)
	return out, nil
}

// --- BIP143-style witness digest -------------------------------------------

// WitnessDigest returns the double-SHA256 digest of the BIP143-style
// signature pre-image for input idx under hashType, the form selected
// when SighashForkID is set in hashType (spec §4.3).
func (tx *Transaction) WitnessDigest(idx int, hashType uint32) []byte {
	anyoneCanPay := hashType&SighashAnyoneCanPay != 0
	sigHash := hashType &^ (SighashAnyoneCanPay | SighashForkID)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, tx.Version)
	buf.Write(tx.hashPrevouts(anyoneCanPay))
	buf.Write(tx.hashSequence(anyoneCanPay, sigHash))

	in := tx.Inputs[idx]
	buf.Write(in.PreviousOutPoint.Hash[:])
	binary.Write(&buf, binary.LittleEndian, in.PreviousOutPoint.Index)
	writeVarInt(&buf, uint64(len(in.Script)))
	buf.Write(in.Script)
	binary.Write(&buf, binary.LittleEndian, in.Amount)
	binary.Write(&buf, binary.LittleEndian, in.Sequence)

	buf.Write(tx.hashOutputs(idx, sigHash))
	binary.Write(&buf, binary.LittleEndian, tx.LockTime)
	binary.Write(&buf, binary.LittleEndian, hashType)

	return chainhash.DoubleHashB(buf.Bytes())
}

func (tx *Transaction) hashPrevouts(anyoneCanPay bool) []byte {
	if anyoneCanPay {
		return make([]byte, 32)
	}
	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		buf.Write(in.PreviousOutPoint.Hash[:])
		binary.Write(&buf, binary.LittleEndian, in.PreviousOutPoint.Index)
	}
	return chainhash.DoubleHashB(buf.Bytes())
}

func (tx *Transaction) hashSequence(anyoneCanPay bool, sigHash uint32) []byte {
	if anyoneCanPay || sigHash == SighashSingle || sigHash == SighashNone {
		return make([]byte, 32)
	}
	var buf bytes.Buffer
	for _, in := range tx.Inputs {
		binary.Write(&buf, binary.LittleEndian, in.Sequence)
	}
	return chainhash.DoubleHashB(buf.Bytes())
}

func (tx *Transaction) hashOutputs(idx int, sigHash uint32) []byte {
	switch sigHash {
	case SighashSingle:
		if idx >= len(tx.Outputs) {
			return make([]byte, 32)
		}
		var buf bytes.Buffer
		writeOutput(&buf, tx.Outputs[idx])
		return chainhash.DoubleHashB(buf.Bytes())

	case SighashNone:
		return make([]byte, 32)

	default:
		var buf bytes.Buffer
		for _, out := range tx.Outputs {
			writeOutput(&buf, out)
		}
		return chainhash.DoubleHashB(buf.Bytes())
	}
}

// SignaturePreimage returns the 32-byte double-SHA256 digest of the
// signature pre-image for input idx under hashType, ready to be signed,
// selecting the legacy or witness digest form according to the FORKID
// bit (spec §4.3).
func (tx *Transaction) SignaturePreimage(idx int, hashType uint32) []byte {
	if hashType&SighashForkID != 0 {
		// WitnessDigest already double-hashes internally; return the
		// final digest directly so callers never double-hash twice.
		return tx.WitnessDigest(idx, hashType)
	}
	return chainhash.DoubleHashB(tx.serializeLegacy(idx, hashType))
}
