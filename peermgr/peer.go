// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peermgr implements the Peer Manager of spec §4.5: connection
// discovery and a bounded outbound pool, download-peer election, the
// Bloom filter lifecycle, transaction publish/relay bookkeeping and the
// sync state machine. The byte-level wire protocol itself (framing,
// handshake, inv/getdata/merkleblock messages) is an external
// collaborator per spec §4.1/§1 — this package only ever talks to a
// Peer through the capability interface below.
package peermgr

import (
	"time"

	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/chainhash"
)

// ConnectStatus is a Peer's connection lifecycle state (spec §4.1).
type ConnectStatus int

const (
	Disconnected ConnectStatus = iota
	Connecting
	Connected
)

// Peer is the capability contract a wire-protocol session exposes to the
// Manager (spec §4.1). Implementations own the actual socket and message
// pump; everything below this interface is out of this core's scope.
type Peer interface {
	Connect()
	Disconnect()
	ScheduleDisconnect(d time.Duration) // d < 0 cancels any pending timeout

	SendFilterload(f *bloomfilter.Filter)
	SendGetblocks(locator []chainhash.Hash, stop chainhash.Hash)
	SendGetheaders(locator []chainhash.Hash, stop chainhash.Hash)
	SendGetdata(txHashes, blockHashes []chainhash.Hash)
	SendMempool()
	SendInv(txHashes []chainhash.Hash)
	// SendPing guarantees cb runs only after every message already
	// enqueued from this peer has been processed (spec §4.1) — the
	// Manager's universal barrier for sequencing filter reload, mempool
	// completion and publish results.
	SendPing(cb func())
	SendGetaddr()
	RerequestBlocks(hashes []chainhash.Hash)

	SetCurrentBlockHeight(height int32)
	SetNeedsFilterUpdate(needed bool)
	SetEarliestKeyTime(t time.Time)

	ConnectStatus() ConnectStatus
	LastBlock() int32
	PingTime() time.Duration
	Version() uint32
	Services() uint64
	FeePerKb() int64
	Host() string
	Port() uint16
	Timestamp() time.Time
}

// PeerAddr is a discovered candidate address, independent of the wire
// protocol's own address record format (spec §4.5 connect loop).
type PeerAddr struct {
	Host      string
	Port      uint16
	Services  uint64
	Timestamp time.Time
}

// PeerObserver is the callback surface a Peer session invokes into the
// Manager (spec §4.1's "the Peer notifies the Manager via callbacks").
// Manager implements this interface; a transport adapter wires a raw
// session's events to these methods.
type PeerObserver interface {
	PeerConnected(p Peer)
	PeerDisconnected(p Peer, err error)
	PeerRelayedPeers(p Peer, addrs []PeerAddr)
	PeerRelayedTx(p Peer, tx []byte)
	PeerHasTx(p Peer, hash chainhash.Hash)
	PeerRejectedTx(p Peer, hash chainhash.Hash, code string)
	PeerRelayedBlock(p Peer, block *blockstore.MerkleBlock)
	PeerDataNotfound(p Peer, txHashes, blockHashes []chainhash.Hash)
	PeerSetFeePerKb(p Peer, rate int64)
	PeerRequestedTx(p Peer, hash chainhash.Hash) []byte
	NetworkIsReachable() bool
	ThreadCleanup(p Peer)
}

// HostNotifier receives the host-visible callbacks of spec §6, invoked
// only after the Manager lock has been released (spec §5 lock
// discipline).
type HostNotifier interface {
	SyncStarted()
	SyncStopped(err error)
	TxStatusUpdate()
	SaveBlocks(replace bool, blocks []*blockstore.MerkleBlock)
	SavePeers(replace bool, peers []PeerAddr)
	NetworkIsReachable() bool
	ThreadCleanup()
}
