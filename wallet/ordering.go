// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/transaction"
)

// dependsOn reports whether tx spends an output of other, directly.
func dependsOn(tx, other *transaction.Transaction) bool {
	otherHash := other.Hash()
	for _, in := range tx.Inputs {
		if in.PreviousOutPoint.Hash == otherHash {
			return true
		}
	}
	return false
}

// transitivelyDepends reports whether a depends on b, following input
// references through allTx; a visited set keeps the walk from revisiting
// a transaction, so it always terminates.
func (w *Wallet) transitivelyDepends(a, b *transaction.Transaction) bool {
	visited := make(map[chainhash.Hash]bool)
	var walk func(tx *transaction.Transaction) bool
	walk = func(tx *transaction.Transaction) bool {
		for _, in := range tx.Inputs {
			h := in.PreviousOutPoint.Hash
			if h == b.Hash() {
				return true
			}
			if visited[h] {
				continue
			}
			visited[h] = true
			if parent, ok := w.allTx[h]; ok {
				if walk(parent) {
					return true
				}
			}
		}
		return false
	}
	return walk(a)
}

// compare implements the total order of spec §4.2: dependency order
// first, then confirmation height, then a chain-position fallback for
// ties. It returns <0 if a sorts before b, >0 if after, 0 if equal.
func (w *Wallet) compare(a, b *transaction.Transaction) int {
	if a.Hash() == b.Hash() {
		return 0
	}
	if w.transitivelyDepends(a, b) {
		return 1
	}
	if w.transitivelyDepends(b, a) {
		return -1
	}

	aConfirmed := a.BlockHeight != transaction.TxUnconfirmed
	bConfirmed := b.BlockHeight != transaction.TxUnconfirmed
	if aConfirmed && bConfirmed && a.BlockHeight != b.BlockHeight {
		if a.BlockHeight < b.BlockHeight {
			return -1
		}
		return 1
	}

	// Topologically incomparable and same height (or both unconfirmed):
	// fall back to the position of the first output address in the
	// address chains.
	aPos, aOk := w.firstOutputChainPos(a)
	bPos, bOk := w.firstOutputChainPos(b)
	if !aOk || !bOk {
		return 0
	}
	if aPos == bPos {
		return 0
	}
	if aPos < bPos {
		return -1
	}
	return 1
}

// firstOutputChainPos returns a single comparable key combining branch
// and index for a transaction's first output address known to the
// wallet's address chain, used as the ordering tie-break.
func (w *Wallet) firstOutputChainPos(tx *transaction.Transaction) (int, bool) {
	for _, out := range tx.Outputs {
		if c, idx, ok := w.addrChain.ChainIndexOf(out.Address); ok {
			return int(c)*1_000_000 + idx, true
		}
	}
	return 0, false
}

// insertSorted inserts tx into the ordered log, maintaining the order
// defined by compare.
func (w *Wallet) insertSorted(tx *transaction.Transaction) {
	i := 0
	for ; i < len(w.log); i++ {
		if w.compare(tx, w.log[i]) < 0 {
			break
		}
	}
	w.log = append(w.log, nil)
	copy(w.log[i+1:], w.log[i:])
	w.log[i] = tx
}

// resort re-derives the log order from scratch; used after a height
// update that may have changed relative ordering.
func (w *Wallet) resort() {
	cur := w.log
	w.log = nil
	for _, tx := range cur {
		w.insertSorted(tx)
	}
}
