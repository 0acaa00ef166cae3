// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command spvwallet is thin host glue wiring configuration, logging, the
// block store, wallet engine and peer manager together for manual
// smoke-testing (SPEC_FULL.md §C.2). It does not implement a wire-protocol
// transport: that is an explicit external collaborator (spec §1, §4.1),
// supplied by whatever embeds this module as a library. Without one
// configured, this command still derives addresses, reports the wallet's
// balance, and serves the optional notification feed.
package main

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/decred/dcrd/hdkeychain/v3"

	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/chaincfg"
	"github.com/brainwallet-co/core/logging"
	"github.com/brainwallet-co/core/peermgr"
	"github.com/brainwallet-co/core/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "spvwallet:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogging(cfg); err != nil {
		return err
	}
	defer logging.Close()

	params := chaincfg.MainNetParams()
	if cfg.TestNet {
		params = chaincfg.TestNetParams()
	}

	accountKey, err := deriveAccountKey(cfg, params)
	if err != nil {
		return err
	}

	hub := newNotifyHub()

	chain, err := wallet.NewAddressChain(accountKey, params)
	if err != nil {
		return fmt.Errorf("derive address chain: %w", err)
	}
	w := wallet.New(chain, params, cfg.FeePerKb, hub)

	genesis := genesisFromCheckpoint(params)
	store := blockstore.New(params, genesis)

	mgr, err := peermgr.New(params, store, w, cfg.DataDir, hub, noTransportFactory)
	if err != nil {
		return fmt.Errorf("construct peer manager: %w", err)
	}

	if cfg.NotifyAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/", hub)
			log.Infof("serving notification feed on %s", cfg.NotifyAddr)
			if err := http.ListenAndServe(cfg.NotifyAddr, mux); err != nil {
				log.Errorf("notification server stopped: %v", err)
			}
		}()
	}

	addrs, err := chain.UnusedAddrs(wallet.External, 1, nil)
	if err != nil {
		return fmt.Errorf("derive receive address: %w", err)
	}
	fmt.Printf("receive address: %s\n", addrs[0])
	fmt.Printf("balance: %d satoshis\n", w.Balance())

	if err := mgr.Connect(); err != nil {
		log.Warnf("no peer transport configured, running offline: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	mgr.Disconnect()
	return nil
}

// deriveAccountKey builds the BIP32 account key the address chain derives
// from, either a watch-only public key or a spending key from a raw seed
// (spec §1 treats mnemonic/seed encoding as out of scope; callers supply
// already-decoded bytes).
func deriveAccountKey(cfg *config, params *chaincfg.Params) (*hdkeychain.ExtendedKey, error) {
	if cfg.AccountKey != "" {
		key, err := hdkeychain.NewKeyFromString(cfg.AccountKey, params)
		if err != nil {
			return nil, fmt.Errorf("parse account key: %w", err)
		}
		return key, nil
	}
	seed, err := hex.DecodeString(cfg.SeedHex)
	if err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	master, err := wallet.MasterFromSeed(seed, params)
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	return master, nil
}

// genesisFromCheckpoint anchors the block store at the newest configured
// checkpoint rather than true genesis, matching how an SPV wallet created
// well after launch starts its sync (it never needs headers older than
// its own key's earliest-possible birthday).
func genesisFromCheckpoint(params *chaincfg.Params) *blockstore.MerkleBlock {
	cp := params.LatestCheckpoint(1 << 30)
	if cp == nil {
		return &blockstore.MerkleBlock{Height: 0}
	}
	return &blockstore.MerkleBlock{
		Version:    1,
		MerkleRoot: cp.Hash,
		Timestamp:  cp.Timestamp,
		Height:     cp.Height,
	}
}

// noTransportFactory is the default PeerFactory when no host transport
// has been wired in; it declines every candidate so Connect reports
// coreerr.Unreachable rather than panicking on a nil dereference.
func noTransportFactory(addr peermgr.PeerAddr) peermgr.Peer {
	return nil
}
