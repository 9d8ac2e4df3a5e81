// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/token"
)

// funds performs payment-ledger transfers on behalf of the engine and stages
// compensating transfers on the journal so an aborted batch returns every
// escrowed unit.
type funds struct {
	ledger token.PaymentLedger
	escrow Address
	log    log.Logger
}

func (f *funds) transfer(c *call, from, to Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := f.ledger.Transfer(from, to, amount); err != nil {
		return wrapFunds(err)
	}
	c.onUndo(func() {
		if err := f.ledger.Transfer(to, from, amount); err != nil {
			// Funds sit in the escrow account for every forward transfer the
			// engine makes, so the reverse cannot run dry; an external ledger
			// refusing it is an accounting fault worth shouting about.
			f.log.Error("compensating transfer failed",
				"from", to, "to", from, "amount", amount, "error", err)
		}
	})
	return nil
}
