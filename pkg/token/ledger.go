// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token defines the marketplace's view of the external token
// ledgers. Balance bookkeeping lives outside the engine; these interfaces
// are the only fallible I/O each operation performs.
package token

import (
	"errors"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotItemOwner      = errors.New("not item owner")
)

// Address identifies a participant. The empty string is the universal
// "absent" sentinel.
type Address string

// Zero is the absent address.
const Zero Address = ""

// PaymentLedger moves fungible payment tokens between participants.
type PaymentLedger interface {
	Transfer(from, to Address, amount uint64) error
	BalanceOf(addr Address) uint64
}

// InventoryCustodian moves custody of inventory tokens, keyed by token id.
type InventoryCustodian interface {
	TransferItem(tokenID uint64, from, to Address) error
	OwnerOf(tokenID uint64) Address
}

// MemoryLedger is an in-memory PaymentLedger used by tests and the dev
// server.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[Address]uint64
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[Address]uint64)}
}

// Mint credits amount to addr.
func (l *MemoryLedger) Mint(addr Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
}

// Transfer moves amount from one account to another.
func (l *MemoryLedger) Transfer(from, to Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// BalanceOf returns the current balance of addr.
func (l *MemoryLedger) BalanceOf(addr Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// MemoryCustodian is an in-memory InventoryCustodian.
type MemoryCustodian struct {
	mu     sync.RWMutex
	owners map[uint64]Address
}

// NewMemoryCustodian creates an empty custodian.
func NewMemoryCustodian() *MemoryCustodian {
	return &MemoryCustodian{owners: make(map[uint64]Address)}
}

// MintItem assigns a fresh inventory token to addr.
func (c *MemoryCustodian) MintItem(tokenID uint64, addr Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[tokenID] = addr
}

// TransferItem moves custody of tokenID from one holder to another.
func (c *MemoryCustodian) TransferItem(tokenID uint64, from, to Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owners[tokenID] != from {
		return ErrNotItemOwner
	}
	c.owners[tokenID] = to
	return nil
}

// OwnerOf returns the current custodian of tokenID.
func (c *MemoryCustodian) OwnerOf(tokenID uint64) Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owners[tokenID]
}
