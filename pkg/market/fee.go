// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"math/bits"

	"github.com/adxyz/marketplace/pkg/log"
)

// MaxFeeBps caps the protocol fee at 20% per recipient.
const MaxFeeBps = 2000

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10000

// FeeSplitter computes the protocol cut taken on rejection and settlement
// payout. The same cut goes to each configured recipient (one or two); the
// counterparty receives the remainder.
type FeeSplitter struct {
	state      *State
	owner      Address
	recipients []Address
	log        log.Logger
}

// NewFeeSplitter creates the splitter. Only owner may change the fee.
func NewFeeSplitter(state *State, owner Address, recipients []Address, logger log.Logger) *FeeSplitter {
	return &FeeSplitter{state: state, owner: owner, recipients: recipients, log: logger}
}

// SetFee updates the protocol fee in basis points.
func (f *FeeSplitter) SetFee(caller Address, bps uint32, c *call) error {
	if caller != f.owner {
		return ErrUnauthorized
	}
	if bps > MaxFeeBps {
		return ErrInvalidFee
	}
	prev := f.state.feeBps
	c.onUndo(func() { f.state.feeBps = prev })
	f.state.feeBps = bps
	f.log.Info("protocol fee updated", "bps", bps)
	return nil
}

// Fee returns the current fee in basis points.
func (f *FeeSplitter) Fee() uint32 {
	return f.state.feeBps
}

// Cut returns the per-recipient cut of amount, truncating.
func (f *FeeSplitter) Cut(amount uint64) uint64 {
	hi, lo := bits.Mul64(amount, uint64(f.state.feeBps))
	q, _ := bits.Div64(hi, lo, feeDenominator)
	return q
}

// distribute pays the cut to each recipient out of escrow and returns the
// total taken. The remainder stays in escrow for the caller to route.
func (f *FeeSplitter) distribute(c *call, fu *funds, amount uint64) (uint64, error) {
	cut := f.Cut(amount)
	if cut == 0 {
		return 0, nil
	}
	var total uint64
	for _, rcpt := range f.recipients {
		if err := fu.transfer(c, fu.escrow, rcpt, cut); err != nil {
			return 0, err
		}
		total += cut
	}
	return total, nil
}
