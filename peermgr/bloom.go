// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"encoding/binary"
	"time"

	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/chainhash"
)

// recentBlockWindow bounds how far back an unconfirmed tx's outpoints
// are still folded into the filter (spec §4.5 "unconfirmed-within-
// last-100-blocks").
const recentBlockWindow = 100

// buildFilter constructs a fresh Bloom filter from the wallet's known
// addresses, current UTXOs, and recent unconfirmed outpoints (spec
// §4.5), tweaked with a nonce derived from the peer so no two peers can
// correlate filters by content alone.
func (m *Manager) buildFilter(p Peer) *bloomfilter.Filter {
	height := m.store.Tip().Height
	addrHashes, outpoints := m.wallet.BloomElements(height, recentBlockWindow)

	f := bloomfilter.New(len(addrHashes)+len(outpoints), m.fpRate, peerNonce(p), bloomfilter.UpdateAll)
	for _, h := range addrHashes {
		f.Add(h)
	}
	for _, op := range outpoints {
		f.AddOutpoint(op.Hash, op.Index)
	}
	return f
}

// peerNonce derives a per-peer filter tweak from the peer's host/port,
// so a relay cannot correlate filters sent to different peers.
func peerNonce(p Peer) uint32 {
	h := chainhash.HashB([]byte(p.Host()))
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], p.Port())
	h2 := chainhash.HashB(append(h[:4], port[:]...))
	return binary.LittleEndian.Uint32(h2[:4])
}

// loadFilter builds and sends a fresh filter to p (spec §4.5's simple,
// unsequenced load path used on first connect to a peer with no
// in-flight traffic yet to race against).
func (m *Manager) loadFilter(p Peer) {
	f := m.buildFilter(p)
	m.filter = f
	p.SendFilterload(f)
}

// scheduleFilterReload implements spec §4.5's ping-sequenced filter
// reload: set needs-update, ping; on pong, free the old filter, rebuild,
// send filterload, ping again; on the second pong, resume sync (getblocks
// if still syncing, else mempool). This ordering guarantees a tx already
// in flight against the old filter is still delivered.
func (m *Manager) scheduleFilterReload(p Peer) {
	p.SetNeedsFilterUpdate(true)
	p.SendPing(func() {
		f := m.buildFilter(p)

		m.mu.Lock()
		m.filter = f
		syncing := m.syncing
		m.mu.Unlock()

		p.SendFilterload(f)
		p.SetNeedsFilterUpdate(false)
		p.SendPing(func() {
			if syncing {
				p.SendGetblocks(m.store.Locator(), chainhash.Hash{})
			} else {
				p.SendMempool()
			}
		})
	})
}

// noteRelay records that p has asserted it has hash (spec §4.5 relay
// bookkeeping). Once relay count reaches the connection cap the tx is
// considered verified if it had not yet been (timestamp==0 case is
// tracked by the caller owning publishedTx).
func (m *Manager) noteRelay(hash chainhash.Hash, p Peer) {
	set, ok := m.txRelays[hash]
	if !ok {
		set = make(map[Peer]bool)
		m.txRelays[hash] = set
	}
	set[p] = true

	// Once relay count reaches the connection cap, an unverified tx
	// (queued still zero) is considered verified.
	if len(set) >= m.maxConnects {
		if entry, ok := m.publishedTx[hash]; ok && entry.queued.IsZero() {
			entry.queued = time.Now()
		}
	}
}
