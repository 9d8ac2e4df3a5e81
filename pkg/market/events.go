// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

// EventType labels a marketplace state change.
type EventType string

const (
	EventCampaignCreated   EventType = "campaign_created"
	EventInventoryDeposit  EventType = "inventory_deposit"
	EventInventoryWithdraw EventType = "inventory_withdraw"
	EventAuctionCreated    EventType = "auction_created"
	EventAuctionBid        EventType = "auction_bid"
	EventBidCancelled      EventType = "bid_cancelled"
	EventAuctionRejected   EventType = "auction_rejected"
	EventAuctionApproved   EventType = "auction_approved"
	EventAuctionCancelled  EventType = "auction_cancelled"
	EventSettlementPaid    EventType = "settlement_paid"
)

// Event is published to subscribers after a call commits. Amount carries the
// escrowed, refunded, or paid-out value where one applies.
type Event struct {
	Type         EventType `json:"type"`
	Caller       Address   `json:"caller,omitempty"`
	TokenID      uint64    `json:"token_id,omitempty"`
	CampaignID   uint64    `json:"campaign_id,omitempty"`
	AuctionID    uint64    `json:"auction_id,omitempty"`
	SettlementID uint64    `json:"settlement_id,omitempty"`
	Amount       uint64    `json:"amount,omitempty"`
	FeePaid      uint64    `json:"fee_paid,omitempty"`
	Time         int64     `json:"time"`
}
