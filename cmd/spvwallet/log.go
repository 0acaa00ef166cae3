// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/brainwallet-co/core/blockstore"
	"github.com/brainwallet-co/core/bloomfilter"
	"github.com/brainwallet-co/core/logging"
	"github.com/brainwallet-co/core/peermgr"
	"github.com/brainwallet-co/core/wallet"
)

var log = logging.Logger(logging.TagSpvw)

// initLogging wires every package's subsystem logger, mirroring the
// teacher's main-package InitLogRotators() + per-package UseLogger calls.
func initLogging(cfg *config) error {
	if !cfg.NoLogFile {
		if err := logging.InitLogRotator(cfg.logFile()); err != nil {
			return err
		}
	}
	logging.SetLevels(cfg.LogLevel)
	log = logging.Logger(logging.TagSpvw)

	peermgr.UseLogger(logging.Logger(logging.TagPeer))
	wallet.UseLogger(logging.Logger(logging.TagWlt))
	blockstore.UseLogger(logging.Logger(logging.TagBstr))
	bloomfilter.UseLogger(logging.Logger(logging.TagBlom))
	return nil
}
