// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/token"
)

// Config fixes the marketplace's authorities and fee routing.
type Config struct {
	// Owner may change the protocol fee.
	Owner Address
	// Escrow is the marketplace's own ledger account holding escrowed funds
	// and inventory custody.
	Escrow Address
	// FeeBps is the initial protocol fee in basis points, taken per
	// recipient on rejection and settlement payout.
	FeeBps uint32
	// FeeRecipients receive the protocol cut; one or two addresses.
	FeeRecipients []Address
	// GateEnabled layers the commit-reveal/threshold guard over withdrawal.
	GateEnabled bool
	// CommitAuthority may post release commitments (gated variant only).
	CommitAuthority Address
	// ShareAuthority may post attestation shares (gated variant only).
	ShareAuthority Address
}

// Marketplace is the single-writer facade over the engine. One mutex guards
// every entry point for its full duration, so each call (batch included)
// executes as one indivisible unit and the engine can never re-enter itself
// during an external transfer.
type Marketplace struct {
	mu  sync.Mutex
	cfg Config

	state       *State
	access      *AccessControl
	inventory   *InventoryRegistry
	campaigns   *CampaignRegistry
	engine      *AuctionEngine
	settlements *SettlementLedger
	gate        *ReleaseGate
	fee         *FeeSplitter
	funds       *funds

	clock func() time.Time
	log   log.Logger
	subs  []chan Event
}

// Option adjusts marketplace construction.
type Option func(*Marketplace)

// WithClock replaces the wall clock; tests use a logical clock so price
// assertions are exact.
func WithClock(clock func() time.Time) Option {
	return func(m *Marketplace) { m.clock = clock }
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(m *Marketplace) { m.log = logger }
}

// New wires the full engine over the external ledgers.
func New(cfg Config, ledger token.PaymentLedger, custodian token.InventoryCustodian, opts ...Option) (*Marketplace, error) {
	if cfg.Owner == token.Zero || cfg.Escrow == token.Zero {
		return nil, fmt.Errorf("owner and escrow addresses are required")
	}
	if n := len(cfg.FeeRecipients); n < 1 || n > 2 {
		return nil, fmt.Errorf("fee recipients: want 1 or 2, got %d", n)
	}
	if cfg.FeeBps > MaxFeeBps {
		return nil, ErrInvalidFee
	}
	if cfg.GateEnabled && (cfg.CommitAuthority == token.Zero || cfg.ShareAuthority == token.Zero) {
		return nil, fmt.Errorf("gate authorities are required when the gate is enabled")
	}

	m := &Marketplace{
		cfg:   cfg,
		state: NewState(),
		clock: time.Now,
		log:   log.NoLog,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.state.feeBps = cfg.FeeBps

	m.funds = &funds{ledger: ledger, escrow: cfg.Escrow, log: m.log}
	m.access = NewAccessControl(m.state, m.log)
	m.inventory = NewInventoryRegistry(m.state, custodian, cfg.Escrow, m.log)
	m.campaigns = NewCampaignRegistry(m.state, m.log)
	m.fee = NewFeeSplitter(m.state, cfg.Owner, cfg.FeeRecipients, m.log)
	if cfg.GateEnabled {
		m.gate = NewReleaseGate(m.state, cfg.CommitAuthority, cfg.ShareAuthority, m.log)
	}
	m.settlements = NewSettlementLedger(m.state, m.access, m.inventory, m.fee, m.gate, m.funds, m.log)
	m.engine = NewAuctionEngine(m.state, m.access, m.inventory, m.campaigns, m.settlements, m.fee, m.funds, m.log)
	return m, nil
}

// run executes fn as one atomic call: the clock is read once, and any error
// unwinds every staged mutation before it returns.
func (m *Marketplace) run(fn func(*call) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &call{now: m.clock().Unix()}
	if err := fn(c); err != nil {
		c.unwind()
		return err
	}
	m.publish(c.events)
	return nil
}

// publish fans events out to subscribers without blocking the engine; a
// slow subscriber loses events rather than stalling settlement.
func (m *Marketplace) publish(events []Event) {
	for _, ev := range events {
		for _, ch := range m.subs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Subscribe registers an event channel with the given buffer.
func (m *Marketplace) Subscribe(buffer int) <-chan Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan Event, buffer)
	m.subs = append(m.subs, ch)
	return ch
}

// Now returns the engine's current unix time.
func (m *Marketplace) Now() int64 {
	return m.clock().Unix()
}

// --- Campaigns ---

// CampaignCreate stores a new creative campaign for the caller.
func (m *Marketplace) CampaignCreate(caller Address, creativeRef string) (uint64, error) {
	var id uint64
	err := m.run(func(c *call) error {
		id = m.campaigns.Create(caller, creativeRef, c)
		return nil
	})
	return id, err
}

// CampaignCreateBatch stores one campaign per creative ref.
func (m *Marketplace) CampaignCreateBatch(caller Address, creativeRefs []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(creativeRefs))
	err := m.run(func(c *call) error {
		for _, ref := range creativeRefs {
			ids = append(ids, m.campaigns.Create(caller, ref, c))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Campaign returns a campaign record.
func (m *Marketplace) Campaign(id uint64) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns.Get(id)
}

// --- Inventory ---

// InventoryDeposit takes custody of an inventory token under the given
// approval policy.
func (m *Marketplace) InventoryDeposit(caller Address, tokenID uint64, policy uint8) error {
	p, err := ParseApprovalPolicy(policy)
	if err != nil {
		return err
	}
	return m.run(func(c *call) error {
		return m.inventory.Deposit(caller, tokenID, p, c)
	})
}

// InventoryDepositBatch deposits several tokens atomically.
func (m *Marketplace) InventoryDepositBatch(caller Address, tokenIDs []uint64, policies []uint8) error {
	if len(tokenIDs) != len(policies) {
		return ErrBatchArity
	}
	parsed := make([]ApprovalPolicy, len(policies))
	for i, v := range policies {
		p, err := ParseApprovalPolicy(v)
		if err != nil {
			return err
		}
		parsed[i] = p
	}
	return m.run(func(c *call) error {
		for i, tokenID := range tokenIDs {
			if err := m.inventory.Deposit(caller, tokenID, parsed[i], c); err != nil {
				return err
			}
		}
		return nil
	})
}

// InventoryWithdraw returns custody of a token to its seller.
func (m *Marketplace) InventoryWithdraw(caller Address, tokenID uint64) error {
	return m.run(func(c *call) error {
		return m.inventory.Withdraw(caller, tokenID, c)
	})
}

// InventoryWithdrawBatch withdraws several tokens atomically.
func (m *Marketplace) InventoryWithdrawBatch(caller Address, tokenIDs []uint64) error {
	return m.run(func(c *call) error {
		for _, tokenID := range tokenIDs {
			if err := m.inventory.Withdraw(caller, tokenID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Inventory returns the slot record for a token.
func (m *Marketplace) Inventory(tokenID uint64) InventorySetting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory.Get(tokenID)
}

// --- Auctions ---

// AuctionCreate opens a Dutch auction on a deposited token.
func (m *Marketplace) AuctionCreate(caller Address, tokenID uint64, auctionStart, auctionEnd, displayStart, displayEnd int64, priceCeiling uint64) (uint64, error) {
	var id uint64
	err := m.run(func(c *call) error {
		var err error
		id, err = m.engine.Create(caller, tokenID, auctionStart, auctionEnd, displayStart, displayEnd, priceCeiling, c)
		return err
	})
	return id, err
}

// AuctionCreateBatch opens several auctions on one token from parallel
// window/price arrays. All-or-nothing.
func (m *Marketplace) AuctionCreateBatch(caller Address, tokenID uint64, auctionStarts, auctionEnds, displayStarts, displayEnds []int64, priceCeilings []uint64) ([]uint64, error) {
	n := len(auctionStarts)
	if len(auctionEnds) != n || len(displayStarts) != n || len(displayEnds) != n || len(priceCeilings) != n {
		return nil, ErrBatchArity
	}
	ids := make([]uint64, 0, n)
	err := m.run(func(c *call) error {
		for i := 0; i < n; i++ {
			id, err := m.engine.Create(caller, tokenID, auctionStarts[i], auctionEnds[i], displayStarts[i], displayEnds[i], priceCeilings[i], c)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// AuctionBid places the campaign as the auction's bid at the current Dutch
// price.
func (m *Marketplace) AuctionBid(caller Address, auctionID, campaignID uint64) error {
	return m.run(func(c *call) error {
		return m.engine.Bid(caller, auctionID, campaignID, c)
	})
}

// AuctionBidBatch bids one campaign across several auctions atomically.
func (m *Marketplace) AuctionBidBatch(caller Address, auctionIDs []uint64, campaignID uint64) error {
	return m.run(func(c *call) error {
		for _, id := range auctionIDs {
			if err := m.engine.Bid(caller, id, campaignID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuctionBidCancel withdraws the caller's pending bid with a full refund.
func (m *Marketplace) AuctionBidCancel(caller Address, auctionID uint64) error {
	return m.run(func(c *call) error {
		return m.engine.BidCancel(caller, auctionID, c)
	})
}

// AuctionBidCancelBatch cancels several pending bids atomically.
func (m *Marketplace) AuctionBidCancelBatch(caller Address, auctionIDs []uint64) error {
	return m.run(func(c *call) error {
		for _, id := range auctionIDs {
			if err := m.engine.BidCancel(caller, id, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuctionReject declines the pending bid, refunding the buyer minus the
// protocol cut.
func (m *Marketplace) AuctionReject(caller Address, auctionID uint64) error {
	return m.run(func(c *call) error {
		return m.engine.Reject(caller, auctionID, c)
	})
}

// AuctionRejectBatch rejects several pending bids atomically.
func (m *Marketplace) AuctionRejectBatch(caller Address, auctionIDs []uint64) error {
	return m.run(func(c *call) error {
		for _, id := range auctionIDs {
			if err := m.engine.Reject(caller, id, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuctionApprove accepts the pending bid and creates the settlement.
func (m *Marketplace) AuctionApprove(caller Address, auctionID uint64) error {
	return m.run(func(c *call) error {
		return m.engine.Approve(caller, auctionID, c)
	})
}

// AuctionApproveBatch approves several pending bids atomically.
func (m *Marketplace) AuctionApproveBatch(caller Address, auctionIDs []uint64) error {
	return m.run(func(c *call) error {
		for _, id := range auctionIDs {
			if err := m.engine.Approve(caller, id, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// AuctionCancel clears an auction with no outstanding bid.
func (m *Marketplace) AuctionCancel(caller Address, auctionID uint64) error {
	return m.run(func(c *call) error {
		return m.engine.Cancel(caller, auctionID, c)
	})
}

// AuctionCancelBatch cancels several auctions atomically.
func (m *Marketplace) AuctionCancelBatch(caller Address, auctionIDs []uint64) error {
	return m.run(func(c *call) error {
		for _, id := range auctionIDs {
			if err := m.engine.Cancel(caller, id, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Auction returns an auction record.
func (m *Marketplace) Auction(id uint64) (Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.Get(id)
}

// PriceAt returns the auction's Dutch price right now.
func (m *Marketplace) PriceAt(id uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine.PriceAt(id, m.clock().Unix())
}

// OpenAuctions lists auctions currently accepting bids.
func (m *Marketplace) OpenAuctions() []Auction {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock().Unix()
	var out []Auction
	for _, a := range m.state.auctions {
		if a.cleared() || a.CampaignID != 0 {
			continue
		}
		if now < a.AuctionStart || now >= a.AuctionEnd {
			continue
		}
		out = append(out, *a)
	}
	return out
}

// --- Settlement ---

// SettlementWithdraw pays out a settlement once the display window has
// elapsed and, in the gated variant, the release gate is satisfied.
func (m *Marketplace) SettlementWithdraw(caller Address, settlementID uint64, preimage []byte) error {
	return m.run(func(c *call) error {
		return m.settlements.Withdraw(caller, settlementID, preimage, c)
	})
}

// SettlementWithdrawBatch withdraws several settlements atomically; the
// preimage array is parallel to the id array.
func (m *Marketplace) SettlementWithdrawBatch(caller Address, settlementIDs []uint64, preimages [][]byte) error {
	if preimages != nil && len(preimages) != len(settlementIDs) {
		return ErrBatchArity
	}
	return m.run(func(c *call) error {
		for i, id := range settlementIDs {
			var preimage []byte
			if preimages != nil {
				preimage = preimages[i]
			}
			if err := m.settlements.Withdraw(caller, id, preimage, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// Settlement returns a settlement record.
func (m *Marketplace) Settlement(id uint64) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settlements.Get(id)
}

// --- Release gate ---

// GateSetCommitment posts the hash commitment and share threshold for a
// settlement.
func (m *Marketplace) GateSetCommitment(caller Address, settlementID uint64, commitment [32]byte, threshold uint32) error {
	if m.gate == nil {
		return ErrUnauthorized
	}
	return m.run(func(c *call) error {
		return m.gate.SetCommitment(caller, settlementID, commitment, threshold, c)
	})
}

// GateSetCommitmentBatch posts commitments for several settlements.
func (m *Marketplace) GateSetCommitmentBatch(caller Address, settlementIDs []uint64, commitments [][32]byte, thresholds []uint32) error {
	if m.gate == nil {
		return ErrUnauthorized
	}
	if len(commitments) != len(settlementIDs) || len(thresholds) != len(settlementIDs) {
		return ErrBatchArity
	}
	return m.run(func(c *call) error {
		for i, id := range settlementIDs {
			if err := m.gate.SetCommitment(caller, id, commitments[i], thresholds[i], c); err != nil {
				return err
			}
		}
		return nil
	})
}

// GatePostShare posts one attestation share for a settlement.
func (m *Marketplace) GatePostShare(caller Address, settlementID uint64, share string) error {
	if m.gate == nil {
		return ErrUnauthorized
	}
	return m.run(func(c *call) error {
		return m.gate.PostShare(caller, settlementID, share, c)
	})
}

// GatePostShareBatch posts one share per settlement id.
func (m *Marketplace) GatePostShareBatch(caller Address, settlementIDs []uint64, shares []string) error {
	if m.gate == nil {
		return ErrUnauthorized
	}
	if len(shares) != len(settlementIDs) {
		return ErrBatchArity
	}
	return m.run(func(c *call) error {
		for i, id := range settlementIDs {
			if err := m.gate.PostShare(caller, id, shares[i], c); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Access control ---

// Authorize lets operator act for the caller on every operation.
func (m *Marketplace) Authorize(caller, operator Address) error {
	return m.run(func(c *call) error {
		m.access.Authorize(caller, operator, c)
		return nil
	})
}

// AuthorizeBatch grants several operators at once.
func (m *Marketplace) AuthorizeBatch(caller Address, operators []Address) error {
	return m.run(func(c *call) error {
		for _, op := range operators {
			m.access.Authorize(caller, op, c)
		}
		return nil
	})
}

// Revoke removes an operator grant immediately and totally.
func (m *Marketplace) Revoke(caller, operator Address) error {
	return m.run(func(c *call) error {
		m.access.Revoke(caller, operator, c)
		return nil
	})
}

// RevokeBatch revokes several operators at once.
func (m *Marketplace) RevokeBatch(caller Address, operators []Address) error {
	return m.run(func(c *call) error {
		for _, op := range operators {
			m.access.Revoke(caller, op, c)
		}
		return nil
	})
}

// SellerBan blocks buyer from bidding on the caller's inventory.
func (m *Marketplace) SellerBan(caller, buyer Address) error {
	return m.run(func(c *call) error {
		m.access.Ban(caller, buyer, c)
		return nil
	})
}

// SellerBanBatch bans several buyers at once.
func (m *Marketplace) SellerBanBatch(caller Address, buyers []Address) error {
	return m.run(func(c *call) error {
		for _, b := range buyers {
			m.access.Ban(caller, b, c)
		}
		return nil
	})
}

// SellerUnban lifts a ban.
func (m *Marketplace) SellerUnban(caller, buyer Address) error {
	return m.run(func(c *call) error {
		m.access.Unban(caller, buyer, c)
		return nil
	})
}

// SellerUnbanBatch lifts several bans at once.
func (m *Marketplace) SellerUnbanBatch(caller Address, buyers []Address) error {
	return m.run(func(c *call) error {
		for _, b := range buyers {
			m.access.Unban(caller, b, c)
		}
		return nil
	})
}

// IsOperator reports whether operator may act for principal.
func (m *Marketplace) IsOperator(principal, operator Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.IsPermitted(principal, operator) && principal != operator
}

// IsBanned reports whether seller has banned buyer.
func (m *Marketplace) IsBanned(seller, buyer Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access.IsBanned(seller, buyer)
}

// --- Fees ---

// SetFee updates the protocol fee; owner only.
func (m *Marketplace) SetFee(caller Address, bps uint32) error {
	return m.run(func(c *call) error {
		return m.fee.SetFee(caller, bps, c)
	})
}

// Fee returns the protocol fee in basis points.
func (m *Marketplace) Fee() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fee.Fee()
}
