// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"testing"
	"time"

	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/chainhash"
)

// fakePeer is a minimal, no-op Peer used to exercise Manager logic that
// only needs a peer's identity (host/port), never its transport.
type fakePeer struct {
	host string
	port uint16
}

func (p *fakePeer) Connect()                                  {}
func (p *fakePeer) Disconnect()                                {}
func (p *fakePeer) ScheduleDisconnect(time.Duration)           {}
func (p *fakePeer) SendFilterload(*bloomfilter.Filter)         {}
func (p *fakePeer) SendGetblocks([]chainhash.Hash, chainhash.Hash)  {}
func (p *fakePeer) SendGetheaders([]chainhash.Hash, chainhash.Hash) {}
func (p *fakePeer) SendGetdata(_, _ []chainhash.Hash)          {}
func (p *fakePeer) SendMempool()                               {}
func (p *fakePeer) SendInv([]chainhash.Hash)                   {}
func (p *fakePeer) SendPing(cb func())                         { cb() }
func (p *fakePeer) SendGetaddr()                               {}
func (p *fakePeer) RerequestBlocks([]chainhash.Hash)           {}
func (p *fakePeer) SetCurrentBlockHeight(int32)                {}
func (p *fakePeer) SetNeedsFilterUpdate(bool)                  {}
func (p *fakePeer) SetEarliestKeyTime(time.Time)               {}
func (p *fakePeer) ConnectStatus() ConnectStatus               { return Connected }
func (p *fakePeer) LastBlock() int32                           { return 0 }
func (p *fakePeer) PingTime() time.Duration                    { return 0 }
func (p *fakePeer) Version() uint32                            { return 70015 }
func (p *fakePeer) Services() uint64                           { return nodeNetwork | nodeBloom }
func (p *fakePeer) FeePerKb() int64                            { return 1000 }
func (p *fakePeer) Host() string                               { return p.host }
func (p *fakePeer) Port() uint16                               { return p.port }
func (p *fakePeer) Timestamp() time.Time                       { return time.Time{} }

func TestPeerNonceDeterministicAndDistinct(t *testing.T) {
	a := &fakePeer{host: "10.0.0.1", port: 8333}
	b := &fakePeer{host: "10.0.0.2", port: 8333}

	if peerNonce(a) != peerNonce(a) {
		t.Fatal("peerNonce is not deterministic for the same peer")
	}
	if peerNonce(a) == peerNonce(b) {
		t.Fatal("distinct peers produced the same filter nonce")
	}
}

func newTestManager() *Manager {
	return &Manager{
		maxConnects: 2,
		txRelays:    make(map[chainhash.Hash]map[Peer]bool),
		publishedTx: make(map[chainhash.Hash]*publishEntry),
	}
}

func TestNoteRelayMarksVerifiedAtConnectionCap(t *testing.T) {
	m := newTestManager()
	hash := chainhash.HashH([]byte("tx"))
	m.publishedTx[hash] = &publishEntry{hash: hash}

	p1 := &fakePeer{host: "peer-1"}
	p2 := &fakePeer{host: "peer-2"}

	m.noteRelay(hash, p1)
	if !m.publishedTx[hash].queued.IsZero() {
		t.Fatal("a single relay should not yet mark the tx verified (cap is 2)")
	}

	m.noteRelay(hash, p2)
	if m.publishedTx[hash].queued.IsZero() {
		t.Fatal("reaching the connection cap should mark the tx verified")
	}
}

func TestNoteRelayCountsDistinctPeersOnly(t *testing.T) {
	m := newTestManager()
	hash := chainhash.HashH([]byte("tx"))
	p1 := &fakePeer{host: "peer-1"}

	m.noteRelay(hash, p1)
	m.noteRelay(hash, p1)
	if len(m.txRelays[hash]) != 1 {
		t.Fatalf("txRelays set size = %d, want 1 for a repeated peer", len(m.txRelays[hash]))
	}
}

func TestQuadraticBiasSelectReturnsAllWhenWantExceedsCandidates(t *testing.T) {
	candidates := []PeerAddr{{Host: "a"}, {Host: "b"}}
	got := quadraticBiasSelect(candidates, 5)
	if len(got) != 2 {
		t.Fatalf("quadraticBiasSelect() returned %d, want 2", len(got))
	}
}

func TestQuadraticBiasSelectReturnsWantDistinctCandidates(t *testing.T) {
	candidates := make([]PeerAddr, 10)
	for i := range candidates {
		candidates[i] = PeerAddr{Host: string(rune('a' + i))}
	}
	got := quadraticBiasSelect(candidates, 3)
	if len(got) != 3 {
		t.Fatalf("quadraticBiasSelect() returned %d, want 3", len(got))
	}
	seen := make(map[string]bool)
	for _, c := range got {
		if seen[c.Host] {
			t.Fatalf("quadraticBiasSelect() returned duplicate candidate %s", c.Host)
		}
		seen[c.Host] = true
	}
}

func TestMustAtoiParsesLeadingDigits(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"8333", 8333},
		{"0", 0},
		{"18333", 18333},
	}
	for _, tt := range tests {
		if got := mustAtoi(tt.in); got != tt.want {
			t.Errorf("mustAtoi(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
