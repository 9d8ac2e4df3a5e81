// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
)

// SettlementLedger stores the record created when a bid is accepted and
// enforces the payout preconditions: the display window must have elapsed,
// the settlement must not have been paid already, and the release gate
// (when configured) must be satisfied.
type SettlementLedger struct {
	state     *State
	access    *AccessControl
	inventory *InventoryRegistry
	fee       *FeeSplitter
	gate      *ReleaseGate // nil in the basic variant
	funds     *funds
	log       log.Logger
}

// NewSettlementLedger creates the ledger. Pass a nil gate to disable the
// commit-reveal/threshold guard.
func NewSettlementLedger(state *State, access *AccessControl, inventory *InventoryRegistry, fee *FeeSplitter, gate *ReleaseGate, funds *funds, logger log.Logger) *SettlementLedger {
	return &SettlementLedger{
		state:     state,
		access:    access,
		inventory: inventory,
		fee:       fee,
		gate:      gate,
		funds:     funds,
		log:       logger,
	}
}

// create records the settlement for an approved auction. The id equals the
// auction's id. Called by the auction engine inside the same top-level call
// as the approval.
func (l *SettlementLedger) create(a *Auction, c *call) {
	c.saveSettlement(l.state, a.ID)
	l.state.settlements[a.ID] = &Settlement{
		ID:           a.ID,
		AuctionID:    a.ID,
		CampaignID:   a.CampaignID,
		DisplayStart: a.DisplayStart,
		DisplayEnd:   a.DisplayEnd,
		Value:        a.PriceFinal,
		State:        WithdrawalPending,
	}
	l.log.Info("settlement created", "settlement", a.ID, "value", a.PriceFinal)
}

// Withdraw pays the settlement value, minus the protocol cut, to the
// auction's seller. The preimage is ignored when no gate is configured.
func (l *SettlementLedger) Withdraw(caller Address, settlementID uint64, preimage []byte, c *call) error {
	rec, ok := l.state.settlements[settlementID]
	if !ok {
		return ErrNotFound
	}
	a, ok := l.state.auctions[rec.AuctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	if err := l.access.requirePermitted(a.Seller, caller); err != nil {
		return err
	}

	switch rec.State {
	case WithdrawalPending:
	case Withdrawn:
		return ErrAlreadyWithdrawn
	default:
		return ErrStateConflict
	}
	if c.now < rec.DisplayEnd {
		return ErrDisplayNotOver
	}
	if l.gate != nil && !l.gate.Satisfied(settlementID, preimage) {
		return ErrGateUnsatisfied
	}

	feePaid, err := l.fee.distribute(c, l.funds, rec.Value)
	if err != nil {
		return err
	}
	if err := l.funds.transfer(c, l.funds.escrow, a.Seller, rec.Value-feePaid); err != nil {
		return err
	}

	c.saveSettlement(l.state, settlementID)
	l.state.settlements[settlementID].State = Withdrawn

	// Payout ends the auction's claim on the inventory slot.
	l.inventory.markComplete(a.TokenID, c)

	c.emit(Event{
		Type:         EventSettlementPaid,
		Caller:       caller,
		SettlementID: settlementID,
		AuctionID:    rec.AuctionID,
		CampaignID:   rec.CampaignID,
		Amount:       rec.Value - feePaid,
		FeePaid:      feePaid,
	})
	l.log.Info("settlement withdrawn",
		"settlement", settlementID, "seller", a.Seller, "paid", rec.Value-feePaid, "fee", feePaid)
	return nil
}

// Get returns the settlement record.
func (l *SettlementLedger) Get(id uint64) (Settlement, error) {
	rec, ok := l.state.settlements[id]
	if !ok {
		return Settlement{}, ErrNotFound
	}
	cp := *rec
	cp.Shares = append([]string(nil), rec.Shares...)
	if rec.Commitment != nil {
		cp.Commitment = append([]byte(nil), rec.Commitment...)
	}
	return cp, nil
}
