// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"errors"
	"time"

	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/coreerr"
	"github.com/brainwallet-co/core/transaction"
)

// PeerConnected implements spec §4.5's peer-connected policy. It
// acquires the Manager lock on entry and releases it before invoking any
// host-visible notification (spec §5 lock discipline).
func (m *Manager) PeerConnected(p Peer) {
	m.mu.Lock()

	// 1. Timestamp check.
	if d := time.Since(p.Timestamp()); d < -2*time.Hour || d > 2*time.Hour {
		// The peer's advertised timestamp is implausible; it is not
		// adjusted here and the connection proceeds unchanged.
	}

	// 2. Reject missing required services.
	const required = uint64(nodeNetwork)
	if p.Services()&required != required {
		m.mu.Unlock()
		log.Debugf("%s:%d missing required services, disconnecting", p.Host(), p.Port())
		p.Disconnect()
		return
	}
	if p.Version() >= minVersionForBloomAndNetwork && p.Services()&nodeBloom == 0 {
		m.mu.Unlock()
		log.Debugf("%s:%d does not support bloom filters, disconnecting", p.Host(), p.Port())
		p.Disconnect()
		return
	}

	// 3. Reject if too far behind.
	tip := m.store.Tip()
	if p.LastBlock() <= tip.Height-10 {
		m.mu.Unlock()
		log.Debugf("%s:%d is too far behind (last block %d, tip %d)", p.Host(), p.Port(), p.LastBlock(), tip.Height)
		p.Disconnect()
		return
	}

	caughtUp := tip.Height >= p.LastBlock()
	replace := m.downloadPeer != nil && betterDownloadCandidate(p, m.downloadPeer, tip.Height)

	if m.downloadPeer != nil && !replace {
		// 4. Leave as non-download.
		m.mu.Unlock()
		if caughtUp {
			m.loadFilterAndAnnounce(p)
		}
		return
	}

	// 5. Elect p as the new download peer.
	old := m.downloadPeer
	m.downloadPeer = p
	earliestKeyTime := m.earliestKeyTime
	m.mu.Unlock()

	log.Infof("new download peer %s:%d", p.Host(), p.Port())
	if old != nil {
		old.Disconnect()
	}
	m.loadFilter(p)
	if time.Since(earliestKeyTime) < 7*24*time.Hour {
		p.SendGetblocks(m.store.Locator(), chainhash.Hash{})
	} else {
		p.SendGetheaders(m.store.Locator(), chainhash.Hash{})
	}

	// 6. Bound initial sync.
	p.ScheduleDisconnect(ProtocolTimeout)
}

// betterDownloadCandidate implements spec §4.5 step 5's election rule:
// prefer the peer with lower ping time AND a lastBlock at least as high
// as the current download peer's.
func betterDownloadCandidate(candidate, current Peer, tipHeight int32) bool {
	if tipHeight >= current.LastBlock() {
		return false
	}
	return candidate.PingTime() < current.PingTime() && candidate.LastBlock() >= current.LastBlock()
}

// loadFilterAndAnnounce is step 4's caught-up branch: load the bloom
// filter, publish any pending transactions, then request the mempool.
func (m *Manager) loadFilterAndAnnounce(p Peer) {
	m.loadFilter(p)
	m.mu.Lock()
	pending := make([]chainhash.Hash, 0, len(m.pendingTxRaw))
	for h := range m.pendingTxRaw {
		pending = append(pending, h)
	}
	m.mu.Unlock()
	if len(pending) > 0 {
		p.SendInv(pending)
	}
	p.SendPing(func() {
		p.SendMempool()
	})
}

// PeerDisconnected implements the failure-recovery half of spec §4.5 and
// §7: EPROTO marks the peer misbehaving, anything else counts toward
// MAX_CONNECT_FAILURES.
func (m *Manager) PeerDisconnected(p Peer, err error) {
	log.Debugf("%s:%d disconnected: %v", p.Host(), p.Port(), err)
	m.mu.Lock()
	m.removePeer(p)
	wasDownload := m.downloadPeer == p
	if wasDownload {
		m.downloadPeer = nil
	}

	misbehaved := isProtocolViolation(err)
	var clearedPeerList bool
	if misbehaved {
		m.misbehaveStreak++
		if m.misbehaveStreak >= 10 {
			m.peers = nil
			clearedPeerList = true
			m.misbehaveStreak = 0
		}
	} else {
		m.misbehaveStreak = 0
		m.connectFailureCount++
	}

	m.cancelPublishesOnPeer(p, wasDownload, isTimeout(err))

	exceeded := !misbehaved && m.connectFailureCount >= MaxConnectFailures
	if exceeded {
		m.peers = nil
	}
	host := m.host
	m.mu.Unlock()

	_ = clearedPeerList
	if exceeded && host != nil {
		host.SyncStopped(err)
	}
}

func isProtocolViolation(err error) bool {
	return errors.Is(err, coreerr.ProtocolViolation)
}

func isTimeout(err error) bool {
	return errors.Is(err, coreerr.Timeout)
}

// cancelPublishesOnPeer implements spec §4.5's "A timeout on the
// download peer during sync results in the pending publishes being
// preserved; a timeout elsewhere cancels only publishes on that peer."
func (m *Manager) cancelPublishesOnPeer(p Peer, wasDownloadPeer bool, timedOut bool) {
	if timedOut && wasDownloadPeer && m.syncing {
		return
	}
	for h, entry := range m.publishedTx {
		if entry.callback == nil {
			continue
		}
		if reqs, ok := m.txRequests[h]; ok && reqs[p] {
			delete(reqs, p)
			if len(reqs) == 0 {
				cb := entry.callback
				delete(m.publishedTx, h)
				go cb(coreErrNotConn())
			}
		}
	}
}

// PeerRelayedPeers stores newly learned addresses (spec §4.1).
func (m *Manager) PeerRelayedPeers(p Peer, addrs []PeerAddr) {
	host := m.host
	if host != nil {
		host.SavePeers(false, addrs)
	}
}

// PeerRelayedBlock feeds an inbound merkleblock to the block store and
// applies the Bloom false-positive feedback loop of spec §4.4.
func (m *Manager) PeerRelayedBlock(p Peer, block *blockstore.MerkleBlock) {
	m.mu.Lock()
	fromDL := p == m.downloadPeer
	var notify blockstore.WalletHook
	if m.wallet != nil {
		notify = m.wallet
	}
	ctx := blockstore.Context{
		FromDownloadPeer:  fromDL,
		Syncing:           m.syncing,
		EarliestKeyTime:   m.earliestKeyTime,
		BloomFilterLoaded: m.filter != nil,
		Behind:            m.store.Tip().Height+behindHeightThreshold < p.LastBlock(),
		Notify:            notify,
		RequestLocator: func(locator []chainhash.Hash) {
			p.SendGetblocks(locator, chainhash.Hash{})
		},
		RescheduleSyncTimeout: func() {
			p.ScheduleDisconnect(ProtocolTimeout)
		},
		MarkMisbehaving: func() {
			go m.PeerDisconnected(p, errProto)
		},
	}
	result, err := m.store.Accept(block, ctx)
	if err != nil {
		log.Warnf("rejected block from %s:%d: %v", p.Host(), p.Port(), err)
	} else {
		log.Debugf("accepted block from %s:%d: %v", p.Host(), p.Port(), result)
	}

	if fromDL && (result == blockstore.ResultExtendsTip || result == blockstore.ResultNewFork) {
		m.applyBloomFeedback(block, p)
	}
	m.mu.Unlock()
}

// applyBloomFeedback implements spec §4.4's per-block FP-rate update,
// called with the Manager lock already held.
func (m *Manager) applyBloomFeedback(block *blockstore.MerkleBlock, p Peer) {
	var fpCount float64
	for _, h := range block.MatchedTxHashes {
		if m.wallet == nil || !m.wallet.Knows(h) {
			fpCount++
		}
	}
	totalTx := float64(block.TotalTx)

	m.fpAverageTxPerBlock = 0.999*m.fpAverageTxPerBlock + 0.001*totalTx
	if m.fpAverageTxPerBlock <= 0 {
		return
	}
	m.fpRate = m.fpRate*(1-0.01*totalTx/m.fpAverageTxPerBlock) + 0.01*fpCount/m.fpAverageTxPerBlock

	threshold := defaultFalsePositiveRate() * 10
	if p.ConnectStatus() == Connected && m.fpRate > threshold {
		log.Warnf("bloom false-positive rate %.4f exceeds threshold %.4f, disconnecting %s:%d", m.fpRate, threshold, p.Host(), p.Port())
		m.fpRate = reducedFalsePositiveRate()
		p.Disconnect()
		return
	}
	if m.store.Tip().Height+behindHeightThreshold <= p.LastBlock() && m.fpRate > reducedFalsePositiveRate()*10 {
		log.Debugf("scheduling filter reload for %s:%d, fp rate %.4f", p.Host(), p.Port(), m.fpRate)
		p.SetNeedsFilterUpdate(true)
		m.scheduleFilterReload(p)
	}
}

// PeerRelayedTx decodes an inbound tx and hands it to the wallet, which
// decides for itself whether it belongs (spec §4.5 "relayedTx(tx)").
func (m *Manager) PeerRelayedTx(p Peer, raw []byte) {
	tx, err := transaction.Parse(raw, m.params.AddressParams())
	if err != nil {
		log.Debugf("discarding malformed tx from %s:%d: %v", p.Host(), p.Port(), err)
		return
	}
	m.mu.Lock()
	m.noteRelay(tx.Hash(), p)
	m.mu.Unlock()
	if m.wallet != nil {
		m.wallet.RegisterTransaction(tx)
	}
}

// PeerHasTx records that p already has hash (an inv before a getdata
// round-trip), contributing to relay bookkeeping (spec §4.5).
func (m *Manager) PeerHasTx(p Peer, hash chainhash.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noteRelay(hash, p)
}

// PeerRejectedTx fails the matching publish callback, if any.
func (m *Manager) PeerRejectedTx(p Peer, hash chainhash.Hash, code string) {
	m.mu.Lock()
	entry, ok := m.publishedTx[hash]
	if ok {
		delete(m.publishedTx, hash)
	}
	m.mu.Unlock()
	if ok && entry.callback != nil {
		entry.callback(errRejected(code))
	}
}

// PeerDataNotfound treats a notfound tx the same as a reject for publish
// bookkeeping purposes; block notfounds are logged by the host.
func (m *Manager) PeerDataNotfound(p Peer, txHashes, blockHashes []chainhash.Hash) {
	for _, h := range txHashes {
		m.PeerRejectedTx(p, h, "notfound")
	}
}

// PeerSetFeePerKb folds a peer's advertised relay fee rate into the
// wallet's fee estimate, so MinOutputAmount/txFee respond to feefilter
// updates instead of staying pinned to the wallet's construction-time
// default (spec §4.5).
func (m *Manager) PeerSetFeePerKb(p Peer, rate int64) {
	if rate > 0 && m.wallet != nil {
		m.wallet.SetFeePerKb(rate)
	}
}

// PeerRequestedTx answers a peer's getdata for a tx we are publishing.
func (m *Manager) PeerRequestedTx(p Peer, hash chainhash.Hash) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingTxRaw[hash]
}

// NetworkIsReachable forwards the peer's connectivity query to the host.
func (m *Manager) NetworkIsReachable() bool {
	if m.host == nil {
		return true
	}
	return m.host.NetworkIsReachable()
}

// ThreadCleanup forwards a peer's pump-thread teardown to the host.
func (m *Manager) ThreadCleanup(p Peer) {
	if m.host != nil {
		m.host.ThreadCleanup()
	}
}

func defaultFalsePositiveRate() float64 { return bloomfilter.DefaultFalsePositiveRate }
func reducedFalsePositiveRate() float64 { return bloomfilter.ReducedFalsePositiveRate }
