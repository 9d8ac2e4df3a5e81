// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized    = errors.New("caller not permitted")
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyOccupied = errors.New("inventory slot already occupied")
	ErrBanned          = errors.New("buyer banned by seller")
	ErrFundsFailure    = errors.New("token transfer failed")
	ErrBatchArity      = errors.New("batch arrays differ in length")
	ErrGateUnsatisfied = errors.New("release gate not satisfied")

	ErrTimingViolation = errors.New("timing violation")
	ErrStateConflict   = errors.New("state conflict")

	ErrAuctionNotStarted = fmt.Errorf("%w: auction not started", ErrTimingViolation)
	ErrAuctionExpired    = fmt.Errorf("%w: auction expired", ErrTimingViolation)
	ErrDisplayNotOver    = fmt.Errorf("%w: display window not elapsed", ErrTimingViolation)

	ErrBidOutstanding   = fmt.Errorf("%w: bid outstanding", ErrStateConflict)
	ErrNoPendingBid     = fmt.Errorf("%w: no bid awaiting decision", ErrStateConflict)
	ErrAlreadyWithdrawn = fmt.Errorf("%w: settlement already withdrawn", ErrStateConflict)
	ErrInventoryInUse   = fmt.Errorf("%w: inventory has auctions in progress", ErrStateConflict)
	ErrCommitmentSet    = fmt.Errorf("%w: commitment already set", ErrStateConflict)

	ErrInvalidWindow = errors.New("invalid time window")
	ErrInvalidPrice  = errors.New("price ceiling must be positive")
	ErrInvalidPolicy = errors.New("invalid approval policy")
	ErrInvalidFee    = errors.New("fee exceeds maximum")
)

// wrapFunds tags a ledger failure with the engine's funds sentinel so callers
// can test the taxonomy with errors.Is.
func wrapFunds(err error) error {
	return fmt.Errorf("%w: %v", ErrFundsFailure, err)
}
