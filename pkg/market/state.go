// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

// State is the single owned store behind every registry and the engine.
// Mutation happens only under the Marketplace lock, one top-level call at a
// time; batch calls stage undo closures so a late failure leaves no trace.
type State struct {
	inventory   map[uint64]*InventorySetting
	campaigns   map[uint64]*Campaign
	auctions    map[uint64]*Auction
	settlements map[uint64]*Settlement

	// (principal, operator) -> authorized and (seller, buyer) -> banned.
	operators map[Address]map[Address]bool
	bans      map[Address]map[Address]bool

	nextCampaignID uint64
	nextAuctionID  uint64

	feeBps uint32
}

// NewState creates an empty store. Ids are 1-based.
func NewState() *State {
	return &State{
		inventory:      make(map[uint64]*InventorySetting),
		campaigns:      make(map[uint64]*Campaign),
		auctions:       make(map[uint64]*Auction),
		settlements:    make(map[uint64]*Settlement),
		operators:      make(map[Address]map[Address]bool),
		bans:           make(map[Address]map[Address]bool),
		nextCampaignID: 1,
		nextAuctionID:  1,
	}
}

// call carries the per-operation context: the clock reading taken once at
// entry, the undo journal, and events to publish after commit.
type call struct {
	now    int64
	undos  []func()
	events []Event
}

func (c *call) onUndo(fn func()) {
	c.undos = append(c.undos, fn)
}

// unwind rolls back every staged mutation in reverse order.
func (c *call) unwind() {
	for i := len(c.undos) - 1; i >= 0; i-- {
		c.undos[i]()
	}
	c.undos = nil
	c.events = nil
}

func (c *call) emit(ev Event) {
	ev.Time = c.now
	c.events = append(c.events, ev)
}

// Snapshot-style undo helpers. Each stages a restore of the record's current
// value (or its absence) before the caller mutates it.

func (c *call) saveInventory(s *State, tokenID uint64) {
	if rec, ok := s.inventory[tokenID]; ok {
		cp := *rec
		c.onUndo(func() { s.inventory[tokenID] = &cp })
	} else {
		c.onUndo(func() { delete(s.inventory, tokenID) })
	}
}

func (c *call) saveAuction(s *State, id uint64) {
	if rec, ok := s.auctions[id]; ok {
		cp := *rec
		c.onUndo(func() { s.auctions[id] = &cp })
	} else {
		c.onUndo(func() { delete(s.auctions, id) })
	}
}

func (c *call) saveSettlement(s *State, id uint64) {
	if rec, ok := s.settlements[id]; ok {
		cp := *rec
		cp.Shares = append([]string(nil), rec.Shares...)
		if rec.Commitment != nil {
			cp.Commitment = append([]byte(nil), rec.Commitment...)
		}
		c.onUndo(func() { s.settlements[id] = &cp })
	} else {
		c.onUndo(func() { delete(s.settlements, id) })
	}
}

func (c *call) saveCampaignCounter(s *State) {
	prev := s.nextCampaignID
	c.onUndo(func() { s.nextCampaignID = prev })
}

func (c *call) saveAuctionCounter(s *State) {
	prev := s.nextAuctionID
	c.onUndo(func() { s.nextAuctionID = prev })
}
