// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coreerr defines the sentinel error kinds used across the peer
// manager, wallet engine and block store (spec §7): unreachable peers,
// request timeouts, protocol violations and invalid input. Callers use
// errors.Is against the sentinels below; call sites wrap a sentinel with
// fmt.Errorf's %w verb to attach context without losing it.
package coreerr

import "errors"

// Sentinel error kinds (spec §7).
var (
	// Unreachable is wrapped when a peer connection cannot be
	// established or is lost mid-operation.
	Unreachable = errors.New("coreerr: peer unreachable")

	// Timeout is wrapped when a request (ping barrier, block download,
	// tx publish) does not complete within its deadline.
	Timeout = errors.New("coreerr: request timed out")

	// ProtocolViolation is wrapped when a peer sends a message that
	// violates the wire protocol or this core's expectations of it
	// (oversized message, out-of-order handshake, malformed payload).
	ProtocolViolation = errors.New("coreerr: protocol violation")

	// InvalidInput is wrapped when caller-supplied data fails
	// validation (malformed address, unsigned transaction passed where
	// a signed one is required, unknown key).
	InvalidInput = errors.New("coreerr: invalid input")
)

// Kind reports which sentinel, if any, err wraps. It returns nil if err
// does not wrap one of the kinds declared in this package.
func Kind(err error) error {
	for _, k := range []error{Unreachable, Timeout, ProtocolViolation, InvalidInput} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
