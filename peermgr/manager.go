// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"errors"
	"math"
	mrand "math/rand"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/decred/dcrd/addrmgr/v2"
	"github.com/decred/dcrd/connmgr/v3"
	dcrdwire "github.com/decred/dcrd/wire"

	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/coreerr"
	"github.com/brainwallet-co/core/wallet"
)

// Normative constants (spec §6).
const (
	PeerMaxConnections = 3
	MaxConnectFailures = 20
	ProtocolTimeout    = 20 * time.Second

	// minVersionForBloomAndNetwork is the protocol version at which a
	// peer is required to advertise NODE_NETWORK and NODE_BLOOM (spec
	// §4.5 step 2).
	minVersionForBloomAndNetwork = 70011

	nodeNetwork = 1
	nodeBloom   = 4

	behindHeightThreshold = 500 // spec §4.4 bloom FP feedback "≥500 behind"
)

// PeerFactory constructs a session for a discovered address; supplied by
// the host since the wire-protocol transport is out of this core's
// scope (spec §1, §4.1).
type PeerFactory func(addr PeerAddr) Peer

// publishEntry tracks one transaction the Manager is actively
// broadcasting (spec §4.5 "Tx publish").
type publishEntry struct {
	raw      []byte
	hash     chainhash.Hash
	callback func(error)
	queued   time.Time
}

// Manager coordinates peer discovery, connection, chain sync and
// transaction relay (spec §4.5). A single coarse mutex guards all of its
// state (spec §5); every callback releases the lock before invoking a
// user-visible notification.
type Manager struct {
	mu sync.Mutex

	params  *chaincfg.Params
	store   *blockstore.Store
	wallet  *wallet.Wallet
	host    HostNotifier
	factory PeerFactory

	addrBook *addrmgr.AddrManager
	connMgr  *connmgr.ConnManager

	peers        []Peer
	downloadPeer Peer
	maxConnects  int

	connectFailureCount int
	misbehaveStreak     int

	syncing         bool
	syncStartHeight int32
	estimatedHeight int32
	earliestKeyTime time.Time

	// mempoolsPending tracks, during sync termination, which connected
	// peers have not yet reported their mempool-done callback (spec
	// §4.5 "Sync termination").
	mempoolsPending map[Peer]bool

	filter          *bloomfilter.Filter
	fpAverageTxPerBlock float64
	fpRate              float64

	txRelays     map[chainhash.Hash]map[Peer]bool
	txRequests   map[chainhash.Hash]map[Peer]bool
	publishedTx  map[chainhash.Hash]*publishEntry
	pendingTxRaw map[chainhash.Hash][]byte
}

// New constructs a Manager for the given chain parameters and block
// store, backed by a real connection pool (connmgr) and address book
// (addrmgr) the way the teacher's networking stack is wired, adapted
// here to SPV-only discovery and no inbound listener.
func New(params *chaincfg.Params, store *blockstore.Store, w *wallet.Wallet, dataDir string, host HostNotifier, factory PeerFactory) (*Manager, error) {
	amgr := addrmgr.New(dataDir, net.LookupIP)

	m := &Manager{
		params:           params,
		store:             store,
		wallet:            w,
		host:              host,
		factory:           factory,
		addrBook:          amgr,
		maxConnects:       PeerMaxConnections,
		mempoolsPending:     make(map[Peer]bool),
		fpAverageTxPerBlock: 500,
		fpRate:              bloomfilter.DefaultFalsePositiveRate,
		txRelays:            make(map[chainhash.Hash]map[Peer]bool),
		txRequests:          make(map[chainhash.Hash]map[Peer]bool),
		publishedTx:         make(map[chainhash.Hash]*publishEntry),
		pendingTxRaw:        make(map[chainhash.Hash][]byte),
	}

	cfg := &connmgr.Config{
		TargetOutbound: uint32(PeerMaxConnections),
		RetryDuration:  5 * time.Second,
		Dial: func(addr net.Addr) (net.Conn, error) {
			return nil, errors.New("peermgr: Dial is handled by the host transport, not connmgr")
		},
	}
	cm, err := connmgr.New(cfg)
	if err != nil {
		return nil, err
	}
	m.connMgr = cm
	m.connMgr.Start()

	return m, nil
}

// Connect implements spec §4.5's connect loop.
func (m *Manager) Connect() error {
	m.mu.Lock()

	// Sync-termination flake (spec §9): a manual retry resets the
	// failure streak.
	if m.connectFailureCount >= MaxConnectFailures {
		m.connectFailureCount = 0
	}

	tip := m.store.Tip()
	if m.downloadPeer == nil || tip.Height < m.estimatedHeight {
		m.syncStartHeight = tip.Height + 1
		m.syncing = true
		host := m.host
		m.mu.Unlock()
		if host != nil {
			host.SyncStarted()
		}
		m.mu.Lock()
	}

	need := m.maxConnects - len(m.peers)
	m.mu.Unlock()
	if need <= 0 {
		return nil
	}

	candidates := m.discover(need)
	if len(candidates) == 0 {
		log.Warnf("no peer candidates available, need %d", need)
		return coreerr.Unreachable
	}

	chosen := quadraticBiasSelect(candidates, need)
	attempted := 0
	for _, addr := range chosen {
		p := m.factory(addr)
		if p == nil {
			continue
		}
		m.mu.Lock()
		m.peers = append(m.peers, p)
		m.mu.Unlock()
		log.Debugf("connecting to %s:%d", addr.Host, addr.Port)
		p.Connect()
		attempted++
	}
	if attempted == 0 {
		return coreerr.Unreachable
	}
	return nil
}

// discover returns up to want candidate addresses: when the address book
// is empty it first fans out to DNS seeds in parallel (spec §4.5), then
// adds every address the book holds. Candidates are sorted by timestamp
// descending.
func (m *Manager) discover(want int) []PeerAddr {
	var out []PeerAddr

	if m.addrBook.NumAddresses() == 0 {
		out = append(out, m.seedFromDNS()...)
	}

	known := m.addrBook.AddressCache()
	for _, ka := range known {
		na := ka.NetAddress()
		out = append(out, PeerAddr{
			Host:      na.IP.String(),
			Port:      na.Port,
			Services:  uint64(na.Services),
			Timestamp: na.Timestamp,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > want*8 && want > 0 {
		out = out[:want*8]
	}
	return out
}

// seedFromDNS queries every configured DNS seed in parallel (spec §4.5).
func (m *Manager) seedFromDNS() []PeerAddr {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []PeerAddr
	)
	for _, seed := range m.params.DNSSeeds {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			ips, err := net.LookupIP(host)
			if err != nil {
				return
			}
			now := time.Now()
			mu.Lock()
			for _, ip := range ips {
				results = append(results, PeerAddr{Host: ip.String(), Port: mustAtoi(m.params.StandardPort), Timestamp: now})
			}
			mu.Unlock()
		}(seed.Host)
	}
	wg.Wait()

	// Feed the address book so subsequent Connect calls can reuse these
	// without re-querying DNS (adapted to addrmgr's wire.NetAddress
	// shape for persistence and quality tracking).
	netAddrs := make([]*dcrdwire.NetAddress, 0, len(results))
	for _, r := range results {
		netAddrs = append(netAddrs, &dcrdwire.NetAddress{
			Timestamp: r.Timestamp,
			Services:  dcrdwire.ServiceFlag(r.Services),
			IP:        net.ParseIP(r.Host),
			Port:      r.Port,
		})
	}
	if len(netAddrs) > 0 {
		m.addrBook.AddAddresses(netAddrs, netAddrs[0])
	}
	return results
}

// quadraticBiasSelect picks up to want addresses from candidates
// (assumed sorted most-recent-first), biasing the random choice toward
// the front of the list (spec §4.5 "quadratic bias toward most recent").
func quadraticBiasSelect(candidates []PeerAddr, want int) []PeerAddr {
	if want >= len(candidates) {
		return candidates
	}
	chosen := make([]PeerAddr, 0, want)
	used := make(map[int]bool)
	n := len(candidates)
	for len(chosen) < want {
		r := mrand.Float64()
		idx := int(math.Floor(r * r * float64(n)))
		if idx >= n {
			idx = n - 1
		}
		if used[idx] {
			continue
		}
		used[idx] = true
		chosen = append(chosen, candidates[idx])
	}
	return chosen
}

func mustAtoi(s string) uint16 {
	var v uint16
	for _, c := range s {
		if c < '0' || c > '9' {
			return v
		}
		v = v*10 + uint16(c-'0')
	}
	return v
}

// connectedPeers returns the peers currently in the Connected state.
func (m *Manager) connectedPeers() []Peer {
	out := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.ConnectStatus() == Connected {
			out = append(out, p)
		}
	}
	return out
}

// removePeer drops p from the tracked peer list.
func (m *Manager) removePeer(p Peer) {
	for i, q := range m.peers {
		if q == p {
			m.peers = append(m.peers[:i], m.peers[i+1:]...)
			return
		}
	}
}

// Disconnect asks every peer to stop and blocks (spec §5 "Cancellation")
// until the Manager has no connected peers left.
func (m *Manager) Disconnect() {
	log.Info("disconnecting all peers")
	m.mu.Lock()
	for _, p := range m.peers {
		p.Disconnect()
	}
	m.mu.Unlock()

	for {
		m.mu.Lock()
		remaining := len(m.connectedPeers())
		m.mu.Unlock()
		if remaining == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	m.connMgr.Stop()
}
