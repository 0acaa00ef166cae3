// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/transaction"
	"github.com/brainwallet-co/core/txscript"
)

// recordingNotifier captures every host callback for assertions.
type recordingNotifier struct {
	balances []int64
	added    []*transaction.Transaction
	updated  []*transaction.Transaction
	deleted  []chainhash.Hash
}

func (n *recordingNotifier) BalanceChanged(balance int64)            { n.balances = append(n.balances, balance) }
func (n *recordingNotifier) TxAdded(tx *transaction.Transaction)     { n.added = append(n.added, tx) }
func (n *recordingNotifier) TxUpdated(tx *transaction.Transaction)   { n.updated = append(n.updated, tx) }
func (n *recordingNotifier) TxDeleted(h chainhash.Hash, _, _ bool)   { n.deleted = append(n.deleted, h) }

func newTestWallet(t *testing.T, seed byte) (*Wallet, *recordingNotifier) {
	t.Helper()
	params := chaincfg.TestNetParams()
	seedBytes := make([]byte, 32)
	for i := range seedBytes {
		seedBytes[i] = seed
	}
	master, err := MasterFromSeed(seedBytes, params)
	if err != nil {
		t.Fatalf("MasterFromSeed: %v", err)
	}
	chain, err := NewAddressChain(master, params)
	if err != nil {
		t.Fatalf("NewAddressChain: %v", err)
	}
	notifier := &recordingNotifier{}
	w := New(chain, params, transaction.TxFeePerKb, notifier)
	return w, notifier
}

// signedTxTo builds a fixed-hash "fully signed" transaction paying amount
// to addr, spending an arbitrary, never-seen-before prevout so each
// fixture transaction gets a distinct hash.
func signedTxTo(t *testing.T, w *Wallet, addr string, amount int64, nonce byte) *transaction.Transaction {
	t.Helper()
	script, _, err := w.scriptForAddr(addr)
	if err != nil {
		t.Fatalf("scriptForAddr: %v", err)
	}
	tx := transaction.New()
	tx.Inputs = []*transaction.Input{
		{
			PreviousOutPoint: transaction.OutPoint{Hash: chainhash.HashH([]byte{nonce}), Index: 0},
			Signature:        []byte{0x01, nonce},
			Sequence:         transaction.TxInSequenceFinal,
		},
	}
	tx.Outputs = []*transaction.Output{
		{Amount: amount, Script: script, Address: addr},
	}
	tx.RefreshHash()
	return tx
}

func TestRegisterTransactionUpdatesBalanceAndLog(t *testing.T) {
	w, notifier := newTestWallet(t, 0x01)
	addrs, err := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	if err != nil {
		t.Fatalf("UnusedAddrs: %v", err)
	}
	w.refreshAllAddrs()

	tx := signedTxTo(t, w, addrs[0], 5000, 0xaa)
	w.RegisterTransaction(tx)

	if got := w.Balance(); got != 5000 {
		t.Fatalf("Balance() = %d, want 5000", got)
	}
	if len(notifier.added) != 1 {
		t.Fatalf("TxAdded called %d times, want 1", len(notifier.added))
	}
	if len(notifier.balances) != 1 || notifier.balances[0] != 5000 {
		t.Fatalf("BalanceChanged calls = %v, want [5000]", notifier.balances)
	}
}

func TestRegisterTransactionIgnoresForeignTransaction(t *testing.T) {
	w, notifier := newTestWallet(t, 0x02)

	foreign := transaction.New()
	foreign.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Index: 0},
		Signature:        []byte{0x01},
	}}
	foreign.Outputs = []*transaction.Output{{
		Amount:  1000,
		Script:  txscript.PayToPubKeyHashScript(make([]byte, 20)),
		Address: "not-a-wallet-address",
	}}
	foreign.RefreshHash()

	w.RegisterTransaction(foreign)
	if w.Balance() != 0 {
		t.Fatalf("Balance() = %d, want 0 for a foreign transaction", w.Balance())
	}
	if len(notifier.added) != 0 {
		t.Fatal("TxAdded should not fire for a transaction the wallet has no stake in")
	}
	if _, tracked := w.allTx[foreign.Hash()]; !tracked {
		t.Fatal("foreign transactions should still be retained in allTx for conflict detection")
	}
}

func TestDoubleSpendMarksLoserInvalid(t *testing.T) {
	w, notifier := newTestWallet(t, 0x03)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	funding := signedTxTo(t, w, addrs[0], 10000, 0x10)
	w.RegisterTransaction(funding)

	spendAddrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	spendA := transaction.New()
	spendA.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: funding.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xa},
	}}
	spendA.Outputs = []*transaction.Output{{Amount: 9000, Address: spendAddrs[0]}}
	spendA.RefreshHash()

	spendB := transaction.New()
	spendB.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: funding.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xb},
	}}
	spendB.Outputs = []*transaction.Output{{Amount: 8000, Address: spendAddrs[0]}}
	spendB.RefreshHash()

	w.RegisterTransaction(spendA)
	w.RegisterTransaction(spendB)

	if !w.invalidTx[spendA.Hash()] {
		t.Fatal("the first spend of a contested outpoint should be marked invalid once a conflicting spend arrives")
	}
	if w.invalidTx[spendB.Hash()] {
		t.Fatal("the later spend should remain valid")
	}
	if len(notifier.updated) != 1 {
		t.Fatalf("TxUpdated called %d times, want 1", len(notifier.updated))
	}
}

func TestRemoveTransactionCascadesToDependents(t *testing.T) {
	w, _ := newTestWallet(t, 0x04)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	parent := signedTxTo(t, w, addrs[0], 10000, 0x20)
	w.RegisterTransaction(parent)

	child := transaction.New()
	child.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: parent.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xc},
	}}
	child.Outputs = []*transaction.Output{{Amount: 9000, Address: addrs[0]}}
	child.RefreshHash()
	w.RegisterTransaction(child)

	w.RemoveTransaction(parent.Hash(), true, false)

	if _, ok := w.allTx[parent.Hash()]; ok {
		t.Fatal("parent should be removed")
	}
	if _, ok := w.allTx[child.Hash()]; ok {
		t.Fatal("child spending the removed parent should be cascaded away")
	}
	if w.Balance() != 0 {
		t.Fatalf("Balance() = %d, want 0 after removing the only funding transaction", w.Balance())
	}
}

func TestTxHeightChangedResortsAndNotifies(t *testing.T) {
	w, notifier := newTestWallet(t, 0x05)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	tx := signedTxTo(t, w, addrs[0], 1000, 0x30)
	w.RegisterTransaction(tx)

	w.TxHeightChanged(tx.Hash(), 100, tx.Timestamp)
	if tx.BlockHeight != 100 {
		t.Fatalf("BlockHeight = %d, want 100", tx.BlockHeight)
	}
	if len(notifier.updated) != 1 {
		t.Fatalf("TxUpdated called %d times, want 1", len(notifier.updated))
	}
}

func TestBloomElementsIncludesKnownAddressesAndUtxos(t *testing.T) {
	w, _ := newTestWallet(t, 0x06)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	tx := signedTxTo(t, w, addrs[0], 2500, 0x40)
	w.RegisterTransaction(tx)

	addrHashes, outpoints := w.BloomElements(1, 100)
	if len(addrHashes) == 0 {
		t.Fatal("BloomElements should return at least one address hash")
	}
	if len(outpoints) == 0 {
		t.Fatal("BloomElements should return the newly created UTXO's outpoint")
	}
}

func TestNewPrimesAddressChainGapLimit(t *testing.T) {
	w, _ := newTestWallet(t, 0x07)
	if len(w.allAddrs) == 0 {
		t.Fatal("New should derive and register a gap-limit window of addresses up front")
	}
	if got := len(w.addrChain.Addresses(External)); got < SequenceGapLimitExternal {
		t.Fatalf("external branch has %d addresses, want at least the gap limit %d", got, SequenceGapLimitExternal)
	}
}

func TestInvalidTxCascadesToSpendingChild(t *testing.T) {
	w, _ := newTestWallet(t, 0x08)
	addrs, _ := w.addrChain.UnusedAddrs(External, 2, w.usedAddrs)
	w.refreshAllAddrs()

	funding := signedTxTo(t, w, addrs[0], 10000, 0x50)
	w.RegisterTransaction(funding)

	spendA := transaction.New()
	spendA.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: funding.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xaa},
	}}
	spendA.Outputs = []*transaction.Output{{Amount: 9000, Address: addrs[1]}}
	spendA.RefreshHash()

	spendB := transaction.New()
	spendB.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: funding.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xbb},
	}}
	spendB.Outputs = []*transaction.Output{{Amount: 8000, Address: addrs[1]}}
	spendB.RefreshHash()

	// grandchild, spending the eventual loser of the spendA/spendB race.
	grandchild := transaction.New()
	grandchild.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: spendA.Hash(), Index: 0},
		Signature:        []byte{0x01, 0xcc},
	}}
	grandchild.Outputs = []*transaction.Output{{Amount: 8000, Address: addrs[1]}}
	grandchild.RefreshHash()

	w.RegisterTransaction(spendA)
	w.RegisterTransaction(spendB)
	w.RegisterTransaction(grandchild)

	if !w.invalidTx[spendA.Hash()] {
		t.Fatal("spendA should be invalidated by the double spend")
	}
	if !w.invalidTx[grandchild.Hash()] {
		t.Fatal("a transaction spending an already-invalidated tx's output should cascade to invalid")
	}
}

func TestPendingClassifiesReplaceByFee(t *testing.T) {
	w, _ := newTestWallet(t, 0x09)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	tx := transaction.New()
	tx.Inputs = []*transaction.Input{{
		PreviousOutPoint: transaction.OutPoint{Hash: chainhash.HashH([]byte{0x60}), Index: 0},
		Signature:        []byte{0x01, 0x60},
		Sequence:         transaction.TxInSequenceFinal - 2, // below UINT32_MAX-1: replace-by-fee
	}}
	tx.Outputs = []*transaction.Output{{Amount: 10000, Address: addrs[0]}}
	tx.RefreshHash()

	w.RegisterTransaction(tx)
	if !w.pendingTx[tx.Hash()] {
		t.Fatal("a transaction with a replace-by-fee sequence should be classified pending")
	}
	if w.Balance() != 10000 {
		t.Fatalf("Balance() = %d, want 10000: pending status alone should not exclude a tx from the balance", w.Balance())
	}
}

func TestSetFeePerKbScalesMinOutputAmount(t *testing.T) {
	w, _ := newTestWallet(t, 0x0a)
	before := MinOutputAmount(w.feePerKb)

	w.SetFeePerKb(transaction.MinFeePerKb * 10)
	after := MinOutputAmount(w.feePerKb)

	if after <= before {
		t.Fatalf("MinOutputAmount after raising feePerKb = %d, want > %d", after, before)
	}
}

func TestKnowsTracksEveryRegisteredTransaction(t *testing.T) {
	w, _ := newTestWallet(t, 0x0b)
	addrs, _ := w.addrChain.UnusedAddrs(External, 1, w.usedAddrs)
	w.refreshAllAddrs()

	tx := signedTxTo(t, w, addrs[0], 1000, 0x70)
	if w.Knows(tx.Hash()) {
		t.Fatal("Knows should be false before the transaction is registered")
	}
	w.RegisterTransaction(tx)
	if !w.Knows(tx.Hash()) {
		t.Fatal("Knows should be true once the transaction has been registered")
	}
}
