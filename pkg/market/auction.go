// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/token"
)

// AuctionEngine owns the auction record lifecycle: creation, Dutch-price
// bidding, bid cancellation, rejection, approval, and cancellation. Every
// state transition here runs inside one top-level marketplace call.
type AuctionEngine struct {
	state       *State
	access      *AccessControl
	inventory   *InventoryRegistry
	campaigns   *CampaignRegistry
	settlements *SettlementLedger
	fee         *FeeSplitter
	funds       *funds
	log         log.Logger
}

// NewAuctionEngine wires the engine to its collaborators.
func NewAuctionEngine(state *State, access *AccessControl, inventory *InventoryRegistry, campaigns *CampaignRegistry, settlements *SettlementLedger, fee *FeeSplitter, funds *funds, logger log.Logger) *AuctionEngine {
	return &AuctionEngine{
		state:       state,
		access:      access,
		inventory:   inventory,
		campaigns:   campaigns,
		settlements: settlements,
		fee:         fee,
		funds:       funds,
		log:         logger,
	}
}

// Create allocates an auction for a deposited inventory token and marks the
// slot in progress.
func (e *AuctionEngine) Create(caller Address, tokenID uint64, auctionStart, auctionEnd, displayStart, displayEnd int64, priceCeiling uint64, c *call) (uint64, error) {
	inv := e.inventory.Get(tokenID)
	if inv.Seller == token.Zero {
		return 0, ErrNotFound
	}
	if err := e.access.requirePermitted(inv.Seller, caller); err != nil {
		return 0, err
	}
	if auctionStart >= auctionEnd || displayStart >= displayEnd {
		return 0, ErrInvalidWindow
	}
	if priceCeiling == 0 {
		return 0, ErrInvalidPrice
	}

	c.saveAuctionCounter(e.state)
	id := e.state.nextAuctionID
	e.state.nextAuctionID++

	c.onUndo(func() { delete(e.state.auctions, id) })
	e.state.auctions[id] = &Auction{
		ID:           id,
		Seller:       inv.Seller,
		TokenID:      tokenID,
		AuctionStart: auctionStart,
		AuctionEnd:   auctionEnd,
		DisplayStart: displayStart,
		DisplayEnd:   displayEnd,
		PriceCeiling: priceCeiling,
		State:        BidOpen,
	}
	if err := e.inventory.markInProgress(tokenID, c); err != nil {
		return 0, err
	}

	c.emit(Event{Type: EventAuctionCreated, Caller: caller, AuctionID: id, TokenID: tokenID})
	e.log.Info("auction created", "auction", id, "token", tokenID, "ceiling", priceCeiling)
	return id, nil
}

// Bid escrows the current Dutch price for the campaign. Under AutoApprove
// the bid settles immediately; otherwise it waits for the seller's decision.
func (e *AuctionEngine) Bid(caller Address, auctionID, campaignID uint64, c *call) error {
	a, ok := e.state.auctions[auctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	camp, err := e.campaigns.Get(campaignID)
	if err != nil {
		return err
	}
	if err := e.access.requirePermitted(camp.Buyer, caller); err != nil {
		return err
	}
	if a.CampaignID != 0 {
		return ErrBidOutstanding
	}
	if e.access.IsBanned(a.Seller, camp.Buyer) {
		return ErrBanned
	}

	price, err := priceAt(a, c.now)
	if err != nil {
		return err
	}
	if err := e.funds.transfer(c, camp.Buyer, e.funds.escrow, price); err != nil {
		return err
	}

	c.saveAuction(e.state, auctionID)
	a = e.state.auctions[auctionID]
	a.CampaignID = campaignID

	policy := e.inventory.Get(a.TokenID).Policy
	switch policy {
	case PolicyAuto:
		a.PriceFinal = price
		a.State = BidApproved
		e.settlements.create(a, c)
	case PolicyManual:
		a.PricePending = price
		a.State = BidPending
	default:
		// Policies are validated at deposit; an occupied slot cannot carry
		// PolicyNone.
		return ErrInvalidPolicy
	}

	c.emit(Event{Type: EventAuctionBid, Caller: caller, AuctionID: auctionID, CampaignID: campaignID, Amount: price})
	if policy == PolicyAuto {
		c.emit(Event{Type: EventAuctionApproved, Caller: caller, AuctionID: auctionID, CampaignID: campaignID, Amount: price})
	}
	e.log.Info("bid placed", "auction", auctionID, "campaign", campaignID, "price", price, "policy", policy)
	return nil
}

// BidCancel lets the current bidder walk away before the seller decides,
// refunding the escrow in full.
func (e *AuctionEngine) BidCancel(caller Address, auctionID uint64, c *call) error {
	a, ok := e.state.auctions[auctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	if a.State != BidPending || a.CampaignID == 0 {
		return ErrNoPendingBid
	}
	camp, err := e.campaigns.Get(a.CampaignID)
	if err != nil {
		return err
	}
	if err := e.access.requirePermitted(camp.Buyer, caller); err != nil {
		return err
	}

	refund := a.PricePending
	if err := e.funds.transfer(c, e.funds.escrow, camp.Buyer, refund); err != nil {
		return err
	}

	c.saveAuction(e.state, auctionID)
	a = e.state.auctions[auctionID]
	a.CampaignID = 0
	a.PricePending = 0
	a.State = BidOpen

	c.emit(Event{Type: EventBidCancelled, Caller: caller, AuctionID: auctionID, CampaignID: camp.ID, Amount: refund})
	e.log.Info("bid cancelled", "auction", auctionID, "refund", refund)
	return nil
}

// Reject returns the pending escrow to the buyer minus the protocol cut and
// reopens the auction.
func (e *AuctionEngine) Reject(caller Address, auctionID uint64, c *call) error {
	a, ok := e.state.auctions[auctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	if err := e.access.requirePermitted(a.Seller, caller); err != nil {
		return err
	}
	if a.State != BidPending || a.CampaignID == 0 {
		return ErrNoPendingBid
	}
	camp, err := e.campaigns.Get(a.CampaignID)
	if err != nil {
		return err
	}

	feePaid, err := e.fee.distribute(c, e.funds, a.PricePending)
	if err != nil {
		return err
	}
	refund := a.PricePending - feePaid
	if err := e.funds.transfer(c, e.funds.escrow, camp.Buyer, refund); err != nil {
		return err
	}

	c.saveAuction(e.state, auctionID)
	a = e.state.auctions[auctionID]
	a.CampaignID = 0
	a.PricePending = 0
	a.State = BidOpen

	c.emit(Event{Type: EventAuctionRejected, Caller: caller, AuctionID: auctionID, CampaignID: camp.ID, Amount: refund, FeePaid: feePaid})
	e.log.Info("bid rejected", "auction", auctionID, "refund", refund, "fee", feePaid)
	return nil
}

// Approve accepts the pending bid, finalizes the price, and creates the
// settlement record.
func (e *AuctionEngine) Approve(caller Address, auctionID uint64, c *call) error {
	a, ok := e.state.auctions[auctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	if err := e.access.requirePermitted(a.Seller, caller); err != nil {
		return err
	}
	// AutoApprove auctions settle at bid time and are never pending here.
	if a.State != BidPending || a.CampaignID == 0 {
		return ErrNoPendingBid
	}

	c.saveAuction(e.state, auctionID)
	a = e.state.auctions[auctionID]
	a.PriceFinal = a.PricePending
	a.PricePending = 0
	a.State = BidApproved
	e.settlements.create(a, c)

	c.emit(Event{Type: EventAuctionApproved, Caller: caller, AuctionID: auctionID, CampaignID: a.CampaignID, Amount: a.PriceFinal})
	e.log.Info("bid approved", "auction", auctionID, "value", a.PriceFinal)
	return nil
}

// Cancel zeroes an auction with no outstanding bid and releases its claim
// on the inventory slot. The id is never reused.
func (e *AuctionEngine) Cancel(caller Address, auctionID uint64, c *call) error {
	a, ok := e.state.auctions[auctionID]
	if !ok || a.cleared() {
		return ErrNotFound
	}
	if err := e.access.requirePermitted(a.Seller, caller); err != nil {
		return err
	}
	if a.CampaignID != 0 {
		return ErrBidOutstanding
	}

	tokenID := a.TokenID
	c.saveAuction(e.state, auctionID)
	e.state.auctions[auctionID] = &Auction{ID: auctionID}
	e.inventory.markComplete(tokenID, c)

	c.emit(Event{Type: EventAuctionCancelled, Caller: caller, AuctionID: auctionID, TokenID: tokenID})
	e.log.Info("auction cancelled", "auction", auctionID)
	return nil
}

// Get returns the auction record; a cancelled auction reads back zeroed.
func (e *AuctionEngine) Get(id uint64) (Auction, error) {
	a, ok := e.state.auctions[id]
	if !ok {
		return Auction{}, ErrNotFound
	}
	return *a, nil
}

// PriceAt exposes the Dutch price of an open auction at the given time.
func (e *AuctionEngine) PriceAt(id uint64, now int64) (uint64, error) {
	a, ok := e.state.auctions[id]
	if !ok || a.cleared() {
		return 0, ErrNotFound
	}
	return priceAt(a, now)
}
