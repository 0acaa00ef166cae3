// Copyright (c) 2018 The ExchangeCoin team
// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peermgr

import (
	"fmt"

	"github.com/brainwallet-co/core/coreerr"
)

var errProto = fmt.Errorf("EPROTO: %w", coreerr.ProtocolViolation)

func coreErrNotConn() error {
	return fmt.Errorf("ENOTCONN: %w", coreerr.Unreachable)
}

func errRejected(code string) error {
	return fmt.Errorf("tx rejected (%s): %w", code, coreerr.InvalidInput)
}

func errTimeout() error {
	return fmt.Errorf("ETIMEDOUT: %w", coreerr.Timeout)
}
