// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/token"
)

// InventoryRegistry tracks deposited inventory tokens. Custody of the token
// itself lives with the external custodian; the registry only records who
// deposited it and how many auctions reference it.
type InventoryRegistry struct {
	state     *State
	custodian token.InventoryCustodian
	escrow    Address
	log       log.Logger
}

// NewInventoryRegistry creates the registry over the shared store.
func NewInventoryRegistry(state *State, custodian token.InventoryCustodian, escrow Address, logger log.Logger) *InventoryRegistry {
	return &InventoryRegistry{state: state, custodian: custodian, escrow: escrow, log: logger}
}

// Deposit takes custody of tokenID and opens its slot for auctions. Fails if
// the slot is occupied; a token cannot be deposited twice without an
// intervening withdrawal.
func (r *InventoryRegistry) Deposit(caller Address, tokenID uint64, policy ApprovalPolicy, c *call) error {
	if rec, ok := r.state.inventory[tokenID]; ok && rec.Seller != token.Zero {
		return ErrAlreadyOccupied
	}
	if err := r.custodian.TransferItem(tokenID, caller, r.escrow); err != nil {
		return wrapFunds(err)
	}
	c.onUndo(func() {
		if err := r.custodian.TransferItem(tokenID, r.escrow, caller); err != nil {
			r.log.Error("inventory custody rollback failed", "token", tokenID, "error", err)
		}
	})

	c.saveInventory(r.state, tokenID)
	r.state.inventory[tokenID] = &InventorySetting{
		TokenID: tokenID,
		Seller:  caller,
		Policy:  policy,
	}
	c.emit(Event{Type: EventInventoryDeposit, Caller: caller, TokenID: tokenID})
	r.log.Info("inventory deposited", "token", tokenID, "seller", caller, "policy", policy)
	return nil
}

// Withdraw returns custody to the seller and zeroes the slot. Only the
// seller themselves may withdraw, and only when no auctions are in progress.
func (r *InventoryRegistry) Withdraw(caller Address, tokenID uint64, c *call) error {
	rec, ok := r.state.inventory[tokenID]
	if !ok || rec.Seller == token.Zero {
		return ErrNotFound
	}
	if rec.Seller != caller {
		return ErrUnauthorized
	}
	if rec.InProgress > 0 {
		return ErrInventoryInUse
	}
	if err := r.custodian.TransferItem(tokenID, r.escrow, caller); err != nil {
		return wrapFunds(err)
	}
	c.onUndo(func() {
		if err := r.custodian.TransferItem(tokenID, caller, r.escrow); err != nil {
			r.log.Error("inventory custody rollback failed", "token", tokenID, "error", err)
		}
	})

	c.saveInventory(r.state, tokenID)
	r.state.inventory[tokenID] = &InventorySetting{TokenID: tokenID}
	c.emit(Event{Type: EventInventoryWithdraw, Caller: caller, TokenID: tokenID})
	r.log.Info("inventory withdrawn", "token", tokenID, "seller", caller)
	return nil
}

// Get returns the slot record, zeroed if never deposited.
func (r *InventoryRegistry) Get(tokenID uint64) InventorySetting {
	if rec, ok := r.state.inventory[tokenID]; ok {
		return *rec
	}
	return InventorySetting{TokenID: tokenID}
}

// markInProgress bumps the slot's auction count. Internal hook for the
// auction engine.
func (r *InventoryRegistry) markInProgress(tokenID uint64, c *call) error {
	rec, ok := r.state.inventory[tokenID]
	if !ok || rec.Seller == token.Zero {
		return ErrNotFound
	}
	c.saveInventory(r.state, tokenID)
	r.state.inventory[tokenID].InProgress++
	return nil
}

// markComplete releases one in-progress reference, invoked on auction
// cancellation and on settlement payout.
func (r *InventoryRegistry) markComplete(tokenID uint64, c *call) {
	rec, ok := r.state.inventory[tokenID]
	if !ok || rec.InProgress == 0 {
		return
	}
	c.saveInventory(r.state, tokenID)
	rec = r.state.inventory[tokenID]
	rec.InProgress--
}
