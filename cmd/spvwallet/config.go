// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

const (
	defaultLogFilename = "spvwallet.log"
	defaultFeePerKb    = 1000
)

func defaultDataDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, ".spvwallet")
}

// config mirrors the teacher's params.go network-selection flags, scoped
// down to what an SPV client needs (SPEC_FULL.md §A "Configuration").
type config struct {
	TestNet bool   `long:"testnet" description:"Use the test network"`
	DataDir string `long:"datadir" description:"Directory to store logs and wallet state (default: ~/.spvwallet)"`

	AccountKey string `long:"accountkey" description:"Watch-only BIP32 extended public key for the wallet account"`
	SeedHex    string `long:"seed" description:"Hex-encoded BIP32 seed to derive a spending account key from"`

	FeePerKb int64 `long:"feeperkb" description:"Fee rate in satoshis per kilobyte" default:"1000"`

	LogLevel string `long:"loglevel" description:"Logging level: trace, debug, info, warn, error, critical" default:"info"`
	NoLogFile bool  `long:"nologfile" description:"Disable logging to a rotated file, log to stdout only"`

	NotifyAddr string `long:"notify" description:"Address to serve a local websocket notification feed on, e.g. 127.0.0.1:8885 (disabled if empty)"`
}

func loadConfig() (*config, error) {
	cfg := &config{
		DataDir:  defaultDataDir(),
		FeePerKb: defaultFeePerKb,
		LogLevel: "info",
	}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	if cfg.AccountKey == "" && cfg.SeedHex == "" {
		return nil, fmt.Errorf("one of --accountkey or --seed is required")
	}
	if cfg.AccountKey != "" && cfg.SeedHex != "" {
		return nil, fmt.Errorf("--accountkey and --seed are mutually exclusive")
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return cfg, nil
}

func (c *config) logFile() string {
	return filepath.Join(c.DataDir, defaultLogFilename)
}
