// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transaction

import (
	"bytes"
	"testing"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/txscript"
)

var testNet = &address.Params{PubKeyHashAddrID: 0x2f, ScriptHashAddrID: 0x31}

func signedFixture() *Transaction {
	hash := bytes.Repeat([]byte{0x22}, 20)
	sigScript := txscript.NewScriptBuilder().
		AddData([]byte("fake-signature-bytes")).
		AddData(bytes.Repeat([]byte{0x03}, 33)).
		Script()

	tx := New()
	tx.Inputs = []*Input{
		{
			PreviousOutPoint: OutPoint{Index: 0},
			Signature:        sigScript,
			Sequence:         TxInSequenceFinal,
		},
	}
	tx.Outputs = []*Output{
		{Amount: 5000, Script: txscript.PayToPubKeyHashScript(hash)},
	}
	tx.RefreshHash()
	return tx
}

func TestSerializeParseRoundTripSignedTransaction(t *testing.T) {
	tx := signedFixture()
	if !tx.IsSigned() {
		t.Fatal("fixture transaction should be signed")
	}

	raw := tx.Serialize()
	parsed, err := Parse(raw, testNet)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(parsed.Inputs) != 1 || !bytes.Equal(parsed.Inputs[0].Signature, tx.Inputs[0].Signature) {
		t.Fatalf("parsed input signature = %x, want %x", parsed.Inputs[0].Signature, tx.Inputs[0].Signature)
	}
	if len(parsed.Outputs) != 1 || parsed.Outputs[0].Amount != 5000 {
		t.Fatalf("parsed outputs = %+v, want amount 5000", parsed.Outputs)
	}
	if !parsed.HashValid() {
		t.Fatal("parsed fully-signed transaction should have a valid hash")
	}
	if parsed.Hash() != tx.Hash() {
		t.Fatalf("parsed hash = %v, want %v", parsed.Hash(), tx.Hash())
	}
}

func TestParseRejectsTruncatedData(t *testing.T) {
	tx := signedFixture()
	raw := tx.Serialize()
	_, err := Parse(raw[:len(raw)-10], testNet)
	if err != ErrMalformed {
		t.Fatalf("Parse() error = %v, want ErrMalformed", err)
	}
}

func TestNewOutputPayToPubKeyHash(t *testing.T) {
	hash := bytes.Repeat([]byte{0x33}, 20)
	addr, err := address.NewPubKeyHashAddress(hash, testNet)
	if err != nil {
		t.Fatalf("NewPubKeyHashAddress: %v", err)
	}

	out, err := NewOutput(1000, addr, testNet)
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if out.Address != addr.String() {
		t.Fatalf("NewOutput address = %s, want %s", out.Address, addr.String())
	}
	if txscript.Classify(out.Script) != txscript.PubKeyHashTy {
		t.Fatalf("NewOutput produced script classified as %v, want PubKeyHashTy", txscript.Classify(out.Script))
	}
}

func TestNewOutputRejectsUnsupportedAddressType(t *testing.T) {
	if _, err := NewOutput(1000, "not-an-address", testNet); err != errAddrType {
		t.Fatalf("NewOutput() error = %v, want errAddrType", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tx := signedFixture()
	clone := tx.Clone()

	clone.Inputs[0].Signature[0] ^= 0xff
	if bytes.Equal(clone.Inputs[0].Signature, tx.Inputs[0].Signature) {
		t.Fatal("mutating the clone's signature affected the original")
	}
	if clone.Hash() != tx.Hash() {
		t.Fatal("Clone should preserve the cached hash value")
	}
}

func TestIsSignedRequiresEveryInput(t *testing.T) {
	tx := New()
	if tx.IsSigned() {
		t.Fatal("an input-less transaction should not report signed")
	}
	tx.Inputs = append(tx.Inputs, &Input{})
	if tx.IsSigned() {
		t.Fatal("a transaction with an unsigned input should not report signed")
	}
}

func TestRefreshHashClearsOnUnsign(t *testing.T) {
	tx := signedFixture()
	if !tx.HashValid() {
		t.Fatal("signed fixture should have a valid hash")
	}
	tx.Inputs[0].Signature = nil
	tx.RefreshHash()
	if tx.HashValid() {
		t.Fatal("RefreshHash should invalidate the hash once a signature is removed")
	}
}

func TestWitnessDigestDeterministicAndHashTypeSensitive(t *testing.T) {
	tx := signedFixture()
	tx.Inputs[0].Amount = 10000
	tx.Inputs[0].Script = txscript.PayToPubKeyHashScript(bytes.Repeat([]byte{0x01}, 20))

	a := tx.WitnessDigest(0, SighashAll|SighashForkID)
	b := tx.WitnessDigest(0, SighashAll|SighashForkID)
	if !bytes.Equal(a, b) {
		t.Fatal("WitnessDigest is not deterministic")
	}

	c := tx.WitnessDigest(0, SighashNone|SighashForkID)
	if bytes.Equal(a, c) {
		t.Fatal("different sighash types should produce different witness digests")
	}
}

func TestSignaturePreimageSelectsDigestForm(t *testing.T) {
	tx := signedFixture()
	tx.Inputs[0].Script = txscript.PayToPubKeyHashScript(bytes.Repeat([]byte{0x01}, 20))

	legacy := tx.SignaturePreimage(0, SighashAll)
	witness := tx.SignaturePreimage(0, SighashAll|SighashForkID)
	if bytes.Equal(legacy, witness) {
		t.Fatal("legacy and witness pre-images should differ when FORKID is set")
	}
	if len(legacy) != 32 || len(witness) != 32 {
		t.Fatalf("pre-image lengths = %d/%d, want 32/32", len(legacy), len(witness))
	}
}

func TestSerializeSizeMatchesActualSerialization(t *testing.T) {
	tx := signedFixture()
	if got, want := tx.SerializeSize(), len(tx.Serialize()); got != want {
		t.Fatalf("SerializeSize() = %d, want %d", got, want)
	}
}
