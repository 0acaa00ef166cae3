// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logging wires up the subsystem loggers shared by every package
// in this module (SPEC_FULL.md §A "Logging"). Each subsystem logger is
// created once here and handed to its owning package through that
// package's UseLogger function, following the teacher's backend/subsystem
// split rather than each package calling fmt.Println/log.* directly.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags, one per package with a package-level log var.
const (
	TagPeer = "PEER"
	TagWlt  = "WLLT"
	TagBstr = "BSTR"
	TagBlom = "BLOM"
	TagSpvw = "SPVW"
)

type logWriter struct{ r *rotator.Rotator }

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.r != nil {
		w.r.Write(p)
	}
	return len(p), nil
}

var (
	backend *slog.Backend
	rotate  *rotator.Rotator
)

func init() {
	// Safe to use before InitLogRotator: writes simply don't hit a file
	// until a rotator is installed.
	backend = slog.NewBackend(logWriter{})
}

// InitLogRotator creates a rolling log file at logFile, rotating at 10 MiB
// keeping 3 rolls, mirroring the teacher's rotator setup. Must be called,
// if at all, before any subsystem logger's level is raised above Off.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("logging: create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("logging: create log rotator: %w", err)
	}
	rotate = r
	backend = slog.NewBackend(logWriter{r: r})
	return nil
}

// Logger returns the logger for the given subsystem tag, creating it on
// first use.
func Logger(tag string) slog.Logger {
	return backend.Logger(tag)
}

// SetLevel sets the logging level for a single subsystem tag. Invalid
// tags and levels are ignored, defaulting to info.
func SetLevel(tag, level string) {
	l := Logger(tag)
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		lvl = slog.LevelInfo
	}
	l.SetLevel(lvl)
}

// SetLevels sets every known subsystem to the same level.
func SetLevels(level string) {
	for _, tag := range []string{TagPeer, TagWlt, TagBstr, TagBlom, TagSpvw} {
		SetLevel(tag, level)
	}
}

// Close flushes and closes the on-disk rotator, if one was installed.
func Close() {
	if rotate != nil {
		rotate.Close()
	}
}
