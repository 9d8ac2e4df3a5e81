// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/token"
)

// AccessControl tracks operator delegation and per-seller ban lists. Every
// mutating entry point resolves its acting principal and consults
// IsPermitted here; bid paths additionally consult IsBanned.
type AccessControl struct {
	state *State
	log   log.Logger
}

// NewAccessControl creates the access controller over the shared store.
func NewAccessControl(state *State, logger log.Logger) *AccessControl {
	return &AccessControl{state: state, log: logger}
}

// Authorize grants operator the right to act for principal. Idempotent.
func (ac *AccessControl) Authorize(principal, operator Address, c *call) {
	edges, ok := ac.state.operators[principal]
	if !ok {
		edges = make(map[Address]bool)
		ac.state.operators[principal] = edges
	}
	prev := edges[operator]
	c.onUndo(func() {
		if prev {
			edges[operator] = true
		} else {
			delete(edges, operator)
		}
	})
	edges[operator] = true
	ac.log.Debug("operator authorized", "principal", principal, "operator", operator)
}

// Revoke removes the delegation edge. Idempotent and effective immediately.
func (ac *AccessControl) Revoke(principal, operator Address, c *call) {
	edges, ok := ac.state.operators[principal]
	if !ok {
		return
	}
	prev := edges[operator]
	c.onUndo(func() {
		if prev {
			edges[operator] = true
		} else {
			delete(edges, operator)
		}
	})
	delete(edges, operator)
	ac.log.Debug("operator revoked", "principal", principal, "operator", operator)
}

// IsPermitted reports whether caller may act for principal.
func (ac *AccessControl) IsPermitted(principal, caller Address) bool {
	if principal == token.Zero {
		return false
	}
	if caller == principal {
		return true
	}
	return ac.state.operators[principal][caller]
}

// requirePermitted is the capability check consulted at the top of every
// mutating operation.
func (ac *AccessControl) requirePermitted(principal, caller Address) error {
	if !ac.IsPermitted(principal, caller) {
		return ErrUnauthorized
	}
	return nil
}

// Ban blocks buyer from bidding on seller's inventory.
func (ac *AccessControl) Ban(seller, buyer Address, c *call) {
	banned, ok := ac.state.bans[seller]
	if !ok {
		banned = make(map[Address]bool)
		ac.state.bans[seller] = banned
	}
	prev := banned[buyer]
	c.onUndo(func() {
		if prev {
			banned[buyer] = true
		} else {
			delete(banned, buyer)
		}
	})
	banned[buyer] = true
	ac.log.Debug("buyer banned", "seller", seller, "buyer", buyer)
}

// Unban lifts a ban. Idempotent.
func (ac *AccessControl) Unban(seller, buyer Address, c *call) {
	banned, ok := ac.state.bans[seller]
	if !ok {
		return
	}
	prev := banned[buyer]
	c.onUndo(func() {
		if prev {
			banned[buyer] = true
		} else {
			delete(banned, buyer)
		}
	})
	delete(banned, buyer)
	ac.log.Debug("buyer unbanned", "seller", seller, "buyer", buyer)
}

// IsBanned reports whether seller has banned buyer.
func (ac *AccessControl) IsBanned(seller, buyer Address) bool {
	return ac.state.bans[seller][buyer]
}
