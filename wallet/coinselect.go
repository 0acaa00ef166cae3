// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"errors"
	mrand "math/rand"
	"sort"

	"github.com/brainwallet-co/core/transaction"
)

// ErrInsufficientFunds is returned by BuildTransaction when the wallet's
// spendable UTXOs cannot cover the requested outputs plus fee.
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// ErrTxTooLarge is returned by BuildTransaction when the number of inputs
// required would push the serialized transaction past TxMaxSize even
// after exhausting every spendable UTXO.
var ErrTxTooLarge = errors.New("wallet: transaction too large")

// MinOutputAmount is the smallest amount an output may carry at the given
// fee rate (spec §4.2): below this the fee to ever spend the output
// would approach or exceed its own value. The TX_MIN_OUTPUT_AMOUNT floor
// is scaled up proportionally once feePerKb exceeds MinFeePerKb.
func MinOutputAmount(feePerKb int64) int64 {
	scaled := ceilDiv(transaction.TxMinOutputAmount*feePerKb, transaction.MinFeePerKb)
	if scaled > transaction.TxMinOutputAmount {
		return scaled
	}
	return transaction.TxMinOutputAmount
}

// MaxOutputAmount returns the most a single output built from w's current
// UTXO set could carry: the sum of every UTXO's amount, less the fee for
// a transaction spending all of them into two outputs (spec §4.2).
func (w *Wallet) MaxOutputAmount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	var sum int64
	for _, u := range w.utxos {
		sum += u.Amount
	}
	fee := txFee(w.feePerKb, len(w.utxos), 2)
	if fee > sum {
		return 0
	}
	return sum - fee
}

// ceilDiv returns the smallest integer n such that n*b >= a, for b > 0.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// txFee estimates the fee for a transaction of the given input/output
// counts at the wallet's configured fee rate, per spec §4.2:
// txFee(size) = max(ceil(size/1000)*TX_FEE_PER_KB, ceil((size*feePerKb/1000)/100)*100).
// The first term is a network-wide relay-fee floor; the second scales
// with the wallet's configured rate and dominates only once feePerKb
// climbs well above TX_FEE_PER_KB.
func txFee(feePerKb int64, numInputs, numOutputs int) int64 {
	size := int64(10 + numInputs*transaction.TxInputSize + numOutputs*transaction.TxOutputSize)

	floor := ceilDiv(size, 1000) * transaction.TxFeePerKb

	rated := size * feePerKb / 1000
	if r := rated % 100; r != 0 {
		rated += 100 - r
	}

	if floor > rated {
		return floor
	}
	return rated
}

// BuildTransaction implements the coin-selection algorithm of spec §4.2:
// it iterates the wallet's UTXOs in a deterministic order, accumulating
// inputs until their total covers the requested outputs plus an
// estimated fee, rebuilding the fee estimate as inputs are added, and
// attaches a change output to a fresh internal address when the leftover
// exceeds the dust threshold. Outputs are then shuffled so their
// positions don't reveal which is change. The resulting transaction is
// unsigned.
func (w *Wallet) BuildTransaction(outputs []*transaction.Output) (*transaction.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var target int64
	for _, o := range outputs {
		target += o.Amount
	}

	candidates := make([]*UTXO, 0, len(w.utxos))
	for _, u := range w.utxos {
		candidates = append(candidates, u)
	}
	// Deterministic order (spec §4.2 step 2): sort by outpoint so the
	// same UTXO set always produces the same selection, independent of
	// map iteration order.
	sort.Slice(candidates, func(i, j int) bool {
		hi, hj := candidates[i].OutPoint.Hash, candidates[j].OutPoint.Hash
		if c := bytes.Compare(hi[:], hj[:]); c != 0 {
			return c < 0
		}
		return candidates[i].OutPoint.Index < candidates[j].OutPoint.Index
	})

	tx := transaction.New()
	for _, o := range outputs {
		tx.Outputs = append(tx.Outputs, o)
	}

	var selected int64
	numOutputs := len(outputs) + 1 // provisional change output
	for _, u := range candidates {
		if selected >= target+txFee(w.feePerKb, len(tx.Inputs), numOutputs) {
			break
		}
		tx.Inputs = append(tx.Inputs, &transaction.Input{
			PreviousOutPoint: u.OutPoint,
			Amount:           u.Amount,
			Script:           u.Script,
			Sequence:         transaction.TxInSequenceFinal,
			Address:          u.Address,
		})
		selected += u.Amount

		if len(tx.Inputs)*transaction.TxInputSize+len(tx.Outputs)*transaction.TxOutputSize+10 > transaction.TxMaxSize {
			return nil, ErrTxTooLarge
		}
	}

	feeNoChange := txFee(w.feePerKb, len(tx.Inputs), len(outputs))
	if selected < target+feeNoChange {
		return nil, ErrInsufficientFunds
	}

	feeWithChange := txFee(w.feePerKb, len(tx.Inputs), len(outputs)+1)
	change := selected - target - feeWithChange
	// Step 4 (spec §4.2): move (balance - (target + fee)) mod 100 out of
	// the change and into the fee, so the wallet balance left after this
	// transaction is a multiple of 100.
	if change > 0 {
		if r := (w.balance - target - feeWithChange) % 100; r > 0 {
			change -= r
		}
	}

	if change >= MinOutputAmount(w.feePerKb) {
		changeAddrs, err := w.addrChain.UnusedAddrs(Internal, 1, w.usedAddrs)
		if err != nil {
			return nil, err
		}
		changeScript, changeAddr, err := w.scriptForAddr(changeAddrs[0])
		if err != nil {
			return nil, err
		}
		tx.Outputs = append(tx.Outputs, &transaction.Output{
			Amount:  change,
			Script:  changeScript,
			Address: changeAddr,
		})
	}
	// Otherwise the leftover (too small for an output of at least
	// MinOutputAmount) is simply absorbed into the fee, per spec §4.2.

	// Step 6 (spec §4.2): shuffle output positions with a non-cryptographic
	// PRNG so the change output's position doesn't leak which one it is.
	mrand.Shuffle(len(tx.Outputs), func(i, j int) {
		tx.Outputs[i], tx.Outputs[j] = tx.Outputs[j], tx.Outputs[i]
	})

	return tx, nil
}
