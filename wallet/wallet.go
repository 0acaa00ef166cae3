// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet implements the Wallet Engine of spec §4.2: address
// derivation, the transaction log and its total order, balance
// recomputation, coin selection and signing orchestration. It consumes
// blocks through the blockstore.WalletHook interface and produces the
// host notifications of spec §4.2 (balance changed, tx added/updated/
// deleted).
package wallet

import (
	"sync"
	"time"

	"github.com/brainwallet-co/core/address"
	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/transaction"
	"github.com/brainwallet-co/core/txscript"
	"github.com/brainwallet-co/core/txsign"
)

// Notifier receives the host callbacks of spec §4.2.
type Notifier interface {
	BalanceChanged(balance int64)
	TxAdded(tx *transaction.Transaction)
	TxUpdated(tx *transaction.Transaction)
	TxDeleted(hash chainhash.Hash, notifyUser, recommendRescan bool)
}

// UTXO is an unspent output currently owned by the wallet.
type UTXO struct {
	OutPoint transaction.OutPoint
	Amount   int64
	Script   []byte
	Address  string
}

// Wallet holds the transaction log, derived address chains and running
// balance for a single account (spec §4.2). All public methods are safe
// for concurrent use.
type Wallet struct {
	mu sync.Mutex

	net      *chaincfg.Params
	addrNet  *address.Params
	feePerKb int64

	addrChain *AddressChain
	notify    Notifier

	allTx     map[chainhash.Hash]*transaction.Transaction
	invalidTx map[chainhash.Hash]bool
	pendingTx map[chainhash.Hash]bool
	log       []*transaction.Transaction

	spentOutputs map[transaction.OutPoint]chainhash.Hash // outpoint -> spending tx hash
	utxos        map[transaction.OutPoint]*UTXO

	allAddrs  map[string]bool
	usedAddrs map[string]bool

	balance        int64
	totalReceived  int64
	totalSent      int64
	balanceHistory []int64 // parallel to log, balance after each entry
}

// New constructs an empty Wallet over addrChain for the given network,
// notifying notify of balance and transaction events.
func New(addrChain *AddressChain, net *chaincfg.Params, feePerKb int64, notify Notifier) *Wallet {
	w := &Wallet{
		net:          net,
		addrNet:      net.AddressParams(),
		feePerKb:     feePerKb,
		addrChain:    addrChain,
		notify:       notify,
		allTx:        make(map[chainhash.Hash]*transaction.Transaction),
		invalidTx:    make(map[chainhash.Hash]bool),
		pendingTx:    make(map[chainhash.Hash]bool),
		spentOutputs: make(map[transaction.OutPoint]chainhash.Hash),
		utxos:        make(map[transaction.OutPoint]*UTXO),
		allAddrs:     make(map[string]bool),
		usedAddrs:    make(map[string]bool),
	}
	// Prime the gap-limit window on both branches up front, so contains
	// and BloomElements recognize incoming payments to the wallet's very
	// first unused addresses without waiting for a prior chain extension
	// (spec §4.2 gap limit).
	for _, c := range []Chain{External, Internal} {
		if _, err := w.addrChain.UnusedAddrs(c, 1, w.usedAddrs); err != nil {
			log.Warnf("could not prime address chain %d: %v", c, err)
		}
	}
	w.refreshAllAddrs()
	return w
}

// refreshAllAddrs rebuilds the allAddrs membership set from the address
// chain; called whenever the chain is extended.
func (w *Wallet) refreshAllAddrs() {
	for _, c := range []Chain{External, Internal} {
		for _, a := range w.addrChain.Addresses(c) {
			w.allAddrs[a] = true
		}
	}
}

// BloomElements returns the data the Peer Manager folds into the Bloom
// filter (spec §4.5): the hash160 of every known address, the outpoint
// of every current UTXO, and the outpoint of every wallet-owned output of
// a logged transaction that is unconfirmed or was confirmed at or above
// currentHeight - recentBlocks.
func (w *Wallet) BloomElements(currentHeight, recentBlocks int32) (addrHashes [][]byte, outpoints []transaction.OutPoint) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for addr := range w.allAddrs {
		decoded, err := address.Decode(addr, w.addrNet)
		if err != nil {
			continue
		}
		if pkh, ok := decoded.(*address.PubKeyHashAddress); ok {
			addrHashes = append(addrHashes, pkh.Hash160())
		}
	}

	for op := range w.utxos {
		outpoints = append(outpoints, op)
	}

	cutoff := currentHeight - recentBlocks
	for _, tx := range w.log {
		if tx.BlockHeight != transaction.TxUnconfirmed && tx.BlockHeight < cutoff {
			continue
		}
		h := tx.Hash()
		for idx, out := range tx.Outputs {
			if w.allAddrs[out.Address] {
				outpoints = append(outpoints, transaction.OutPoint{Hash: h, Index: uint32(idx)})
			}
		}
	}
	return addrHashes, outpoints
}

// scriptForAddr builds the scriptPubKey for a P2PKH address string
// already known to the address chain.
func (w *Wallet) scriptForAddr(addr string) ([]byte, string, error) {
	decoded, err := address.Decode(addr, w.addrNet)
	if err != nil {
		return nil, "", err
	}
	pkh, ok := decoded.(*address.PubKeyHashAddress)
	if !ok {
		return nil, "", address.ErrMalformed
	}
	script := txscript.PayToPubKeyHashScript(pkh.Hash160())
	return script, addr, nil
}

// Balance returns the current confirmed+pending balance (spec §4.2).
func (w *Wallet) Balance() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// SetFeePerKb updates the fee rate future coin selections target, e.g.
// in response to a connected peer's feefilter advertisement (spec §4.5).
func (w *Wallet) SetFeePerKb(feePerKb int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feePerKb = feePerKb
}

// Knows reports whether hash is a transaction the wallet has already
// seen, wallet-relevant or not; used to tell a genuine bloom false
// positive from a tx the wallet was always going to match (spec §4.4).
func (w *Wallet) Knows(hash chainhash.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.allTx[hash]
	return ok
}

// TotalReceived and TotalSent return lifetime movement totals.
func (w *Wallet) TotalReceived() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalReceived
}

func (w *Wallet) TotalSent() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalSent
}

// contains implements the wallet-membership test of spec §4.2/§9: a
// transaction belongs to the wallet iff one of its outputs pays a known
// wallet address, or one of its inputs spends a previous output that
// does (derived address only — sigScripts are never inspected directly
// here, only the already-derived Input.Address).
func (w *Wallet) contains(tx *transaction.Transaction) bool {
	for _, out := range tx.Outputs {
		if w.allAddrs[out.Address] {
			return true
		}
	}
	for _, in := range tx.Inputs {
		if w.allAddrs[in.Address] {
			return true
		}
	}
	return false
}

// markUsed records every wallet address touched by tx as used, possibly
// extending the address chain to maintain the gap limit (spec §4.2).
func (w *Wallet) markUsed(tx *transaction.Transaction) {
	changed := false
	for _, out := range tx.Outputs {
		if w.allAddrs[out.Address] && !w.usedAddrs[out.Address] {
			w.usedAddrs[out.Address] = true
			changed = true
		}
	}
	for _, in := range tx.Inputs {
		if w.allAddrs[in.Address] && !w.usedAddrs[in.Address] {
			w.usedAddrs[in.Address] = true
			changed = true
		}
	}
	if !changed {
		return
	}
	for _, c := range []Chain{External, Internal} {
		if _, err := w.addrChain.UnusedAddrs(c, 1, w.usedAddrs); err == nil {
			w.refreshAllAddrs()
		}
	}
}

// RegisterTransaction implements spec §4.2's transaction admission: every
// transaction is retained in allTx to support conflict detection, but
// only transactions that belong to the wallet are inserted into the
// ordered log and drive balance/notification side effects.
func (w *Wallet) RegisterTransaction(tx *transaction.Transaction) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.registerLocked(tx)
}

func (w *Wallet) registerLocked(tx *transaction.Transaction) {
	h := tx.Hash()
	if _, exists := w.allTx[h]; exists {
		return
	}
	w.allTx[h] = tx

	if !w.contains(tx) {
		return
	}

	w.markUsed(tx)
	w.detectConflicts(tx)
	w.insertSorted(tx)
	w.recompute()

	log.Infof("added tx %v (%d in, %d out)", h, len(tx.Inputs), len(tx.Outputs))
	if w.notify != nil {
		w.notify.TxAdded(tx)
	}
}

// detectConflicts marks as invalid any other unconfirmed transaction
// that spends an outpoint also spent by tx, per spec §4.2's
// double-spend handling (scenario 4 of spec §8): once one spender
// confirms or is otherwise preferred, the other is invalidated rather
// than removed outright, so it can still be inspected.
func (w *Wallet) detectConflicts(tx *transaction.Transaction) {
	for _, in := range tx.Inputs {
		if spender, ok := w.spentOutputs[in.PreviousOutPoint]; ok && spender != tx.Hash() {
			if other, ok := w.allTx[spender]; ok {
				w.invalidTx[spender] = true
				log.Warnf("tx %v conflicts with %v over outpoint %v, marking invalid", tx.Hash(), spender, in.PreviousOutPoint)
				if w.notify != nil {
					w.notify.TxUpdated(other)
				}
			}
		}
		w.spentOutputs[in.PreviousOutPoint] = tx.Hash()
	}
}

// TxHeightChanged implements blockstore.WalletHook: it updates the
// confirmation height of a tracked transaction, re-sorts the log if the
// relative order changed, and recomputes the balance (spec §4.2).
func (w *Wallet) TxHeightChanged(hash chainhash.Hash, height int32, timestamp time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, ok := w.allTx[hash]
	if !ok {
		return
	}
	tx.BlockHeight = height
	tx.Timestamp = timestamp
	if !w.contains(tx) {
		return
	}

	w.resort()
	w.recompute()
	if w.notify != nil {
		w.notify.TxUpdated(tx)
	}
}

// RemoveTransaction implements spec §4.2's deletion path, used when a
// transaction is evicted by a reorg rollback past its confirmation or by
// explicit host action. It cascades to every transaction that (directly
// or transitively) spends one of hash's outputs, since those can no
// longer be valid either.
func (w *Wallet) RemoveTransaction(hash chainhash.Hash, notifyUser, recommendRescan bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(hash, notifyUser, recommendRescan)
}

func (w *Wallet) removeLocked(hash chainhash.Hash, notifyUser, recommendRescan bool) {
	tx, ok := w.allTx[hash]
	if !ok {
		return
	}

	var dependents []chainhash.Hash
	for h, other := range w.allTx {
		if h == hash {
			continue
		}
		for _, in := range other.Inputs {
			if in.PreviousOutPoint.Hash == hash {
				dependents = append(dependents, h)
				break
			}
		}
	}
	for _, d := range dependents {
		w.removeLocked(d, notifyUser, recommendRescan)
	}

	delete(w.allTx, hash)
	delete(w.invalidTx, hash)
	delete(w.pendingTx, hash)
	for i, t := range w.log {
		if t.Hash() == hash {
			w.log = append(w.log[:i], w.log[i+1:]...)
			break
		}
	}
	for op, spender := range w.spentOutputs {
		if spender == hash {
			delete(w.spentOutputs, op)
		}
	}
	_ = tx

	w.recompute()
	if w.notify != nil {
		w.notify.TxDeleted(hash, notifyUser, recommendRescan)
	}
}

// recompute rebuilds the UTXO set, running totals and balance history
// from scratch by walking the ordered log once (spec §4.2). Invalid
// transactions (lost double-spend races, or any spend of an invalid
// parent's output) are skipped entirely: their outputs never become
// spendable and their inputs never debit the balance. Unconfirmed
// transactions are additionally classified as pending when they show one
// of the warning signs of spec §4.2(c) (oversized, dust output,
// replace-by-fee, an unmet lockTime, or a pending parent); pending status
// is informational and does not by itself remove a transaction from the
// balance.
//
// The previous balance is compared against the freshly computed one so
// BalanceChanged fires only on an actual change, not on every recompute.
func (w *Wallet) recompute() {
	prevBalance := w.balance

	w.utxos = make(map[transaction.OutPoint]*UTXO)
	w.totalReceived = 0
	w.totalSent = 0
	w.balanceHistory = make([]int64, len(w.log))

	spent := make(map[transaction.OutPoint]bool)
	var running int64

	currentHeight := w.approxTipHeight()
	now := time.Now()

	for i, tx := range w.log {
		h := tx.Hash()

		// (a) cascade: a tx spending an already-invalid tx's output is
		// itself invalid, even absent a direct double-spend conflict.
		if !w.invalidTx[h] {
			for _, in := range tx.Inputs {
				if w.invalidTx[in.PreviousOutPoint.Hash] {
					w.invalidTx[h] = true
					log.Warnf("tx %v spends an output of invalidated tx %v, cascading invalid", h, in.PreviousOutPoint.Hash)
					break
				}
			}
		}

		if w.invalidTx[h] {
			delete(w.pendingTx, h)
			w.balanceHistory[i] = running
			continue
		}

		if tx.BlockHeight == transaction.TxUnconfirmed && w.isPending(tx, currentHeight, now) {
			w.pendingTx[h] = true
		} else {
			delete(w.pendingTx, h)
		}

		var netEffect int64
		for _, in := range tx.Inputs {
			if !w.allAddrs[in.Address] {
				continue
			}
			w.totalSent += in.Amount
			netEffect -= in.Amount
			spent[in.PreviousOutPoint] = true
			delete(w.utxos, in.PreviousOutPoint)
		}
		for idx, out := range tx.Outputs {
			if !w.allAddrs[out.Address] {
				continue
			}
			w.totalReceived += out.Amount
			netEffect += out.Amount
			op := transaction.OutPoint{Hash: h, Index: uint32(idx)}
			if !spent[op] {
				w.utxos[op] = &UTXO{OutPoint: op, Amount: out.Amount, Script: out.Script, Address: out.Address}
			}
		}

		running += netEffect
		w.balanceHistory[i] = running
	}

	w.balance = running
	if w.balance != prevBalance {
		log.Debugf("balance %d -> %d across %d utxos", prevBalance, w.balance, len(w.utxos))
		if w.notify != nil {
			w.notify.BalanceChanged(w.balance)
		}
	}
}

// approxTipHeight returns the highest confirmation height seen among the
// wallet's own transactions, used as a stand-in for the chain tip height
// when evaluating a lockTime against "currentHeight" (spec §4.2(c)): the
// wallet has no independent notion of the chain tip beyond what it has
// observed through TxHeightChanged.
func (w *Wallet) approxTipHeight() int32 {
	var tip int32
	for _, tx := range w.log {
		if tx.BlockHeight != transaction.TxUnconfirmed && tx.BlockHeight > tip {
			tip = tx.BlockHeight
		}
	}
	return tip
}

// isPending implements the pending-classification rules of spec §4.2(c)
// for an unconfirmed transaction: oversized, a dust output, a
// replace-by-fee sequence, a lockTime not yet satisfied, or a parent that
// is itself pending.
func (w *Wallet) isPending(tx *transaction.Transaction, currentHeight int32, now time.Time) bool {
	if tx.SerializeSize() > transaction.TxMaxSize {
		return true
	}
	for _, out := range tx.Outputs {
		if out.Amount < MinOutputAmount(w.feePerKb) {
			return true
		}
	}

	var anyNonFinal bool
	for _, in := range tx.Inputs {
		if in.Sequence < transaction.TxInSequenceFinal-1 {
			return true // replace-by-fee
		}
		if in.Sequence < transaction.TxInSequenceFinal {
			anyNonFinal = true
		}
	}
	if tx.LockTime > 0 && tx.LockTime < transaction.TxMaxLockHeight && int32(tx.LockTime) > currentHeight+1 {
		return true
	}
	if anyNonFinal && tx.LockTime >= transaction.TxMaxLockHeight && int64(tx.LockTime) > now.Unix() {
		return true
	}

	for _, in := range tx.Inputs {
		if w.pendingTx[in.PreviousOutPoint.Hash] {
			return true
		}
	}
	return false
}

// Sign signs every input of tx that the wallet holds a key for, under
// the given fork-id (spec §4.2 signing orchestration delegates the
// cryptography itself to txsign.Signer).
func (w *Wallet) Sign(tx *transaction.Transaction, forkID byte) error {
	w.mu.Lock()
	signer := &txsign.Signer{Net: w.addrNet, ForkID: forkID}
	keys := w.addrChain.PrivateKeyFor
	w.mu.Unlock()
	return signer.Sign(tx, keys)
}

// Send builds, signs and registers a transaction paying outputs, in one
// step (spec §4.2's ordinary send path: coin selection immediately
// followed by signing and log insertion).
func (w *Wallet) Send(outputs []*transaction.Output, forkID byte) (*transaction.Transaction, error) {
	tx, err := w.BuildTransaction(outputs)
	if err != nil {
		return nil, err
	}
	if err := w.Sign(tx, forkID); err != nil {
		return nil, err
	}
	w.RegisterTransaction(tx)
	return tx, nil
}
