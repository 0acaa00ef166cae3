// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"sync"
	"time"

	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/coreerr"
	"github.com/brainwallet-co/core/transaction"
)

// PublishTx implements spec §4.5's publishTx: the caller must supply an
// already-signed transaction. cb is invoked (possibly asynchronously,
// never while the Manager lock is held) exactly once with the outcome.
func (m *Manager) PublishTx(tx *transaction.Transaction, raw []byte, cb func(error)) {
	if !tx.IsSigned() {
		if cb != nil {
			cb(coreerr.InvalidInput)
		}
		return
	}

	m.mu.Lock()
	peers := m.connectedPeers()
	if len(peers) == 0 {
		m.mu.Unlock()
		if cb != nil {
			cb(coreErrNotConn())
		}
		return
	}

	tx.Timestamp = time.Now()
	h := tx.Hash()
	m.publishedTx[h] = &publishEntry{raw: raw, hash: h, callback: cb}
	m.pendingTxRaw[h] = raw

	targets := make([]Peer, 0, len(peers))
	for _, p := range peers {
		if p == m.downloadPeer && len(peers) > 1 {
			continue
		}
		targets = append(targets, p)
	}
	m.mu.Unlock()

	for _, p := range targets {
		p.SendInv([]chainhash.Hash{h})
		peer := p
		peer.SendPing(func() {
			// The getdata-then-tx round trip this ping sequences after
			// is driven entirely by the transport: once the peer has
			// processed the inv, it will ask for the tx if it doesn't
			// already have it, and PeerRequestedTx answers from
			// pendingTxRaw above.
		})
	}

	go m.scheduleTimeout(h, peers[0] == m.downloadPeer)
}

// scheduleTimeout fails a still-pending publish after ProtocolTimeout
// (spec §8 scenario 6).
func (m *Manager) scheduleTimeout(h chainhash.Hash, wasDownloadOnly bool) {
	time.Sleep(ProtocolTimeout)

	m.mu.Lock()
	entry, ok := m.publishedTx[h]
	if ok {
		delete(m.publishedTx, h)
		delete(m.pendingTxRaw, h)
	}
	m.mu.Unlock()

	if ok && entry.callback != nil {
		entry.callback(errTimeout())
	}
}

// sweepUnrelayed implements the removal half of spec §4.5's unrelayed
// wallet tx sweep: every wallet tx (per isWalletTx) that is not being
// published and that no peer has relayed or been asked for is passed to
// remove. Transactions with fewer relays than maxConnects are left as
// they are. No code in this package calls it.
func (m *Manager) sweepUnrelayed(isWalletTx func(chainhash.Hash) bool, remove func(chainhash.Hash)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h := range m.txRelays {
		if !isWalletTx(h) {
			continue
		}
		if _, publishing := m.publishedTx[h]; publishing {
			continue
		}
		relayCount := len(m.txRelays[h])
		reqCount := len(m.txRequests[h])
		if relayCount == 0 && reqCount == 0 {
			remove(h)
			continue
		}
		if relayCount < m.maxConnects {
			// Fewer relays than maxConnects: the transaction and its
			// timestamp are left unchanged here.
		}
	}
}

// loadMempools implements spec §4.5's sync-termination precondition: for
// each connected peer it sends a ping and, on the pong, a mempool
// request. No filter is reloaded here, and no peer is sent a mempool
// request without the ping first. done is invoked once every peer has
// been sent its mempool request.
func (m *Manager) loadMempools(done func()) {
	m.mu.Lock()
	peers := m.connectedPeers()
	m.mempoolsPending = make(map[Peer]bool, len(peers))
	for _, p := range peers {
		m.mempoolsPending[p] = true
	}
	m.mu.Unlock()

	if len(peers) == 0 {
		done()
		return
	}

	var mu sync.Mutex
	for _, p := range peers {
		peer := p
		peer.SendPing(func() {
			peer.SendMempool()
			m.markMempoolDone(peer, &mu, done)
		})
	}
}

// markMempoolDone records that peer has been sent its mempool request,
// invoking done once mempoolsPending is empty. It does not wait for the
// peer's mempool relay itself to finish.
func (m *Manager) markMempoolDone(peer Peer, mu *sync.Mutex, done func()) {
	mu.Lock()
	defer mu.Unlock()

	m.mu.Lock()
	delete(m.mempoolsPending, peer)
	remaining := len(m.mempoolsPending)
	m.mu.Unlock()

	if remaining == 0 {
		done()
	}
}

// MaybeFinishSync checks spec §4.5's sync-termination condition — the
// last accepted block height matches the estimated height and every
// connected peer has been sent its mempool request by loadMempools — and
// emits syncStopped once satisfied.
func (m *Manager) MaybeFinishSync(lastAcceptedHeight int32) {
	m.mu.Lock()
	if !m.syncing || lastAcceptedHeight < m.estimatedHeight {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.loadMempools(func() {
		m.mu.Lock()
		m.syncing = false
		host := m.host
		m.mu.Unlock()
		if host != nil {
			host.SyncStopped(nil)
		}
	})
}
