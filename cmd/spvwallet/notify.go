// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/chainhash"
	"github.com/brainwallet-co/core/peermgr"
	"github.com/brainwallet-co/core/transaction"
)

// event is the wire shape of a single notification fanned out to every
// connected client (SPEC_FULL.md §C.3).
type event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// notifyHub translates the host callbacks of spec §6 into JSON events and
// fans them out to every connected websocket client, mirroring the
// teacher's wsNotificationManager queue-then-broadcast shape but scaled
// down to this core's small event set.
type notifyHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan event
}

func newNotifyHub() *notifyHub {
	return &notifyHub{clients: make(map[*websocket.Conn]chan event)}
}

func (h *notifyHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	ch := make(chan event, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
		}()
		for ev := range ch {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}()
}

func (h *notifyHub) broadcast(ev event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// Slow client; drop rather than block the notifier.
			delete(h.clients, conn)
			close(ch)
		}
	}
}

// Wallet Notifier (spec §6).

func (h *notifyHub) BalanceChanged(balance int64) {
	h.broadcast(event{Type: "balanceChanged", Data: balance})
}

func (h *notifyHub) TxAdded(tx *transaction.Transaction) {
	h.broadcast(event{Type: "txAdded", Data: txSummary(tx)})
}

func (h *notifyHub) TxUpdated(tx *transaction.Transaction) {
	h.broadcast(event{Type: "txUpdated", Data: txSummary(tx)})
}

func (h *notifyHub) TxDeleted(hash chainhash.Hash, notifyUser, recommendRescan bool) {
	if !notifyUser {
		return
	}
	h.broadcast(event{Type: "txDeleted", Data: map[string]interface{}{
		"hash":            hash.String(),
		"recommendRescan": recommendRescan,
	}})
}

// peermgr.HostNotifier (spec §6).

func (h *notifyHub) SyncStarted() {
	h.broadcast(event{Type: "syncStarted"})
}

func (h *notifyHub) SyncStopped(err error) {
	data := map[string]interface{}{}
	if err != nil {
		data["error"] = err.Error()
	}
	h.broadcast(event{Type: "syncStopped", Data: data})
}

func (h *notifyHub) TxStatusUpdate() {
	h.broadcast(event{Type: "txStatusUpdate"})
}

func (h *notifyHub) SaveBlocks(replace bool, blocks []*blockstore.MerkleBlock) {
	// Persistent block storage is host glue outside this core's scope
	// (SPEC_FULL.md §B); this demo host only logs the checkpoint advance.
	if len(blocks) > 0 {
		log.Debugf("save %d blocks (replace=%v), tip height %d", len(blocks), replace, blocks[len(blocks)-1].Height)
	}
}

func (h *notifyHub) SavePeers(replace bool, peers []peermgr.PeerAddr) {
	log.Debugf("save %d peers (replace=%v)", len(peers), replace)
}

func (h *notifyHub) NetworkIsReachable() bool { return true }

func (h *notifyHub) ThreadCleanup() {}

func txSummary(tx *transaction.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"hash":        tx.Hash().String(),
		"blockHeight": tx.BlockHeight,
		"numInputs":   len(tx.Inputs),
		"numOutputs":  len(tx.Outputs),
	}
}

