// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package market implements the auction-escrow-settlement engine of the
// ad-inventory marketplace: sellers deposit inventory tokens, buyers attach
// creative campaigns, a Dutch auction matches them, and settlement releases
// escrowed funds once the display window elapses and the release gate (when
// configured) is satisfied.
package market

import (
	"fmt"

	"github.com/adxyz/marketplace/pkg/token"
)

// Address aliases the ledger address type; the empty string means absent.
type Address = token.Address

// ApprovalPolicy controls what happens when a bid lands on an auction.
type ApprovalPolicy uint8

const (
	PolicyNone   ApprovalPolicy = 0
	PolicyManual ApprovalPolicy = 1
	PolicyAuto   ApprovalPolicy = 2
)

// ParseApprovalPolicy validates a wire value at the construction boundary.
func ParseApprovalPolicy(v uint8) (ApprovalPolicy, error) {
	switch p := ApprovalPolicy(v); p {
	case PolicyManual, PolicyAuto:
		return p, nil
	default:
		return PolicyNone, fmt.Errorf("%w: %d", ErrInvalidPolicy, v)
	}
}

func (p ApprovalPolicy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyManual:
		return "manual"
	case PolicyAuto:
		return "auto"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// BidState tracks the auction's bid lifecycle.
type BidState uint8

const (
	BidOpen     BidState = 0 // no outstanding bid
	BidPending  BidState = 1 // bid escrowed, awaiting seller decision
	BidApproved BidState = 2 // bid accepted, settlement created
)

func (s BidState) String() string {
	switch s {
	case BidOpen:
		return "open"
	case BidPending:
		return "pending"
	case BidApproved:
		return "approved"
	default:
		return fmt.Sprintf("bidstate(%d)", uint8(s))
	}
}

// WithdrawalState tracks settlement payout, transitioning 1 -> 2 exactly once.
type WithdrawalState uint8

const (
	WithdrawalNone    WithdrawalState = 0
	WithdrawalPending WithdrawalState = 1
	Withdrawn         WithdrawalState = 2
)

func (s WithdrawalState) String() string {
	switch s {
	case WithdrawalNone:
		return "none"
	case WithdrawalPending:
		return "pending"
	case Withdrawn:
		return "withdrawn"
	default:
		return fmt.Sprintf("withdrawal(%d)", uint8(s))
	}
}

// InventorySetting records a deposited inventory token. Seller == Zero means
// the slot is unoccupied.
type InventorySetting struct {
	TokenID    uint64         `json:"token_id"`
	Seller     Address        `json:"seller"`
	Policy     ApprovalPolicy `json:"policy"`
	InProgress uint32         `json:"in_progress"`
}

// Campaign is a buyer's creative campaign. Immutable once created and
// reusable across auctions.
type Campaign struct {
	ID          uint64  `json:"id"`
	Buyer       Address `json:"buyer"`
	CreativeRef string  `json:"creative_ref"`
}

// Auction is the Dutch-auction record. CampaignID == 0 means no outstanding
// bid. At most one of PricePending and PriceFinal is nonzero while a
// campaign is attached.
type Auction struct {
	ID           uint64   `json:"id"`
	Seller       Address  `json:"seller"`
	TokenID      uint64   `json:"token_id"`
	AuctionStart int64    `json:"auction_start"`
	AuctionEnd   int64    `json:"auction_end"`
	DisplayStart int64    `json:"display_start"`
	DisplayEnd   int64    `json:"display_end"`
	PriceCeiling uint64   `json:"price_ceiling"`
	PricePending uint64   `json:"price_pending"`
	PriceFinal   uint64   `json:"price_final"`
	CampaignID   uint64   `json:"campaign_id"`
	State        BidState `json:"state"`
}

// cleared reports whether the record was zeroed by a cancel. The id slot is
// never recycled.
func (a *Auction) cleared() bool {
	return a.Seller == token.Zero
}

// Settlement is created atomically with auction approval; its id equals the
// auction's id. The gate fields stay zero until the release authorities act.
type Settlement struct {
	ID           uint64          `json:"id"`
	AuctionID    uint64          `json:"auction_id"`
	CampaignID   uint64          `json:"campaign_id"`
	DisplayStart int64           `json:"display_start"`
	DisplayEnd   int64           `json:"display_end"`
	Value        uint64          `json:"value"`
	State        WithdrawalState `json:"state"`

	Commitment     []byte   `json:"commitment,omitempty"`
	ShareThreshold uint32   `json:"share_threshold,omitempty"`
	Shares         []string `json:"shares,omitempty"`
	TotalShares    uint32   `json:"total_shares,omitempty"`
}
