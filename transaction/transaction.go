// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transaction implements the Transaction, Input and Output data
// model of spec §3 and the bit-exact codec of spec §4.3: variable-length
// integer encoding, a script-element reader, and transaction
// serialization in the two digest forms (legacy and BIP143-style witness)
// that the signer needs.
package transaction

import (
	"time"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/txscript"
)

// Normative constants (spec §6).
const (
	TxVersion  = 1
	TxLockTime = 0

	SighashAll          = 0x01
	SighashNone         = 0x02
	SighashSingle       = 0x03
	SighashAnyoneCanPay = 0x80
	SighashForkID       = 0x40

	TxFeePerKb   = 1000
	MinFeePerKb  = TxFeePerKb
	TxOutputSize = 34
	TxInputSize  = 148

	TxMaxSize         = 100000
	TxFreeMaxSize     = 1000
	TxFreeMinPriority = 57_600_000

	TxUnconfirmed   = int32(1<<31 - 1) // TX_UNCONFIRMED = INT32_MAX
	TxMaxLockHeight = 500_000_000

	TxInSequenceFinal = ^uint32(0) // UINT32_MAX

	Satoshis = 100_000_000
	MaxMoney = 84_000_000 * int64(Satoshis)
)

// TxMinOutputAmount is TX_MIN_OUTPUT_AMOUNT = TX_FEE_PER_KB*3*(TX_OUTPUT_SIZE+TX_INPUT_SIZE)/1000.
const TxMinOutputAmount = TxFeePerKb * 3 * (TxOutputSize + TxInputSize) / 1000

// sentinel index used to request the serialization of a fully-signed
// transaction rather than a signature pre-image for a specific input.
const noSigIndex = -1

// OutPoint references a previous transaction's output.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Input is one spend reference within a Transaction (spec §3).
type Input struct {
	PreviousOutPoint OutPoint

	// Amount is the prevout's value; 0 when unknown.
	Amount int64

	// Script is the prevout's scriptPubKey, when known.
	Script []byte

	// Signature is the scriptSig; nil when the input is unsigned.
	Signature []byte

	Sequence uint32

	// Address is derived from Script when known, else from Signature;
	// empty when neither is known (spec §3 invariant).
	Address string
}

// IsSigned reports whether this input carries a non-empty signature.
func (in *Input) IsSigned() bool {
	return len(in.Signature) > 0
}

// deriveAddress recomputes Address from whichever of Script/Signature is
// available, per the invariant in spec §3.
func (in *Input) deriveAddress(net *address.Params) {
	if len(in.Script) > 0 {
		in.Address = txscript.ExtractAddress(in.Script, net)
		return
	}
	if len(in.Signature) > 0 {
		els := txscript.ExtractSigScriptElements(in.Signature)
		if len(els) >= 2 {
			if a, err := address.NewPubKeyHashAddress(chainhash.Hash160(els[len(els)-1]), net); err == nil {
				in.Address = a.String()
				return
			}
		}
	}
	in.Address = ""
}

// Output is a payment destination within a Transaction (spec §3).
type Output struct {
	Amount  int64
	Script  []byte
	Address string
}

// NewOutput builds an Output paying amount to addr.
func NewOutput(amount int64, addr interface{}, net *address.Params) (*Output, error) {
	var script []byte
	switch a := addr.(type) {
	case *address.PubKeyHashAddress:
		script = txscript.PayToPubKeyHashScript(a.Hash160())
	case *address.ScriptHashAddress:
		script = txscript.PayToScriptHashScript(a.Hash160())
	default:
		return nil, errAddrType
	}
	return &Output{Amount: amount, Script: script, Address: txscript.ExtractAddress(script, net)}, nil
}

// Transaction is the core model of spec §3: a version, ordered inputs
// and outputs, a lockTime, and three non-serialized fields (txHash,
// blockHeight, timestamp).
type Transaction struct {
	Version  int32
	Inputs   []*Input
	Outputs  []*Output
	LockTime uint32

	// hash is valid iff the transaction is signed; it is recomputed only
	// on a successful transition to signed (spec §3).
	hash    chainhash.Hash
	hashSet bool

	BlockHeight int32
	Timestamp   time.Time
}

// New returns an empty, unconfirmed Transaction ready to have
// inputs/outputs appended by coin selection (spec §4.2).
func New() *Transaction {
	return &Transaction{
		Version:     TxVersion,
		LockTime:    TxLockTime,
		BlockHeight: TxUnconfirmed,
	}
}

// IsSigned reports whether every input carries a signature (spec §3).
func (tx *Transaction) IsSigned() bool {
	if len(tx.Inputs) == 0 {
		return false
	}
	for _, in := range tx.Inputs {
		if !in.IsSigned() {
			return false
		}
	}
	return true
}

// Hash returns the cached txHash. It is only meaningful when IsSigned
// returns true; callers that need a fresh hash after mutating the
// transaction must call RefreshHash first.
func (tx *Transaction) Hash() chainhash.Hash {
	return tx.hash
}

// HashValid reports whether Hash reflects the transaction's current
// signed serialization.
func (tx *Transaction) HashValid() bool {
	return tx.hashSet
}

// RefreshHash recomputes txHash from the canonical legacy serialization
// iff the transaction is fully signed, per spec §3 and §6.
func (tx *Transaction) RefreshHash() {
	if !tx.IsSigned() {
		tx.hashSet = false
		return
	}
	tx.hash = chainhash.DoubleHashH(tx.serializeLegacy(noSigIndex, 0))
	tx.hashSet = true
}

// SerializeSize returns the byte length of the fully-signed wire
// serialization, used by coin selection's fee estimation (spec §4.2).
func (tx *Transaction) SerializeSize() int {
	return len(tx.serializeLegacy(noSigIndex, 0))
}

// Clone returns a full structural, independent copy of tx (spec §9,
// "deep copy of transactions"). The clone shares no backing arrays with
// the original.
func (tx *Transaction) Clone() *Transaction {
	out := &Transaction{
		Version:     tx.Version,
		LockTime:    tx.LockTime,
		hash:        tx.hash,
		hashSet:     tx.hashSet,
		BlockHeight: tx.BlockHeight,
		Timestamp:   tx.Timestamp,
	}
	for _, in := range tx.Inputs {
		cp := *in
		cp.Script = cloneBytes(in.Script)
		cp.Signature = cloneBytes(in.Signature)
		out.Inputs = append(out.Inputs, &cp)
	}
	for _, o := range tx.Outputs {
		cp := *o
		cp.Script = cloneBytes(o.Script)
		out.Outputs = append(out.Outputs, &cp)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// errAddrType is returned by NewOutput for an address type this package
// does not know how to script.
var errAddrType = txErr("unsupported address type")

type txErr string

func (e txErr) Error() string { return string(e) }
