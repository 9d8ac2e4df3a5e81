package analytics

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/adxyz/marketplace/pkg/market"
)

// Tracker aggregates marketplace activity for reporting: gross volume,
// fees, fill rate, and average clearing price. It consumes the engine's
// event stream.
type Tracker struct {
	mu sync.RWMutex

	auctionsCreated uint64
	bidsPlaced      uint64
	bidsApproved    uint64
	bidsRejected    uint64
	settlementsPaid uint64

	escrowedVolume decimal.Decimal
	paidVolume     decimal.Decimal
	feeVolume      decimal.Decimal
	clearingTotal  decimal.Decimal
}

// Stats is a point-in-time report.
type Stats struct {
	AuctionsCreated  uint64          `json:"auctions_created"`
	BidsPlaced       uint64          `json:"bids_placed"`
	BidsApproved     uint64          `json:"bids_approved"`
	BidsRejected     uint64          `json:"bids_rejected"`
	SettlementsPaid  uint64          `json:"settlements_paid"`
	EscrowedVolume   decimal.Decimal `json:"escrowed_volume"`
	PaidVolume       decimal.Decimal `json:"paid_volume"`
	FeeVolume        decimal.Decimal `json:"fee_volume"`
	FillRate         decimal.Decimal `json:"fill_rate"`
	AvgClearingPrice decimal.Decimal `json:"avg_clearing_price"`
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		escrowedVolume: decimal.Zero,
		paidVolume:     decimal.Zero,
		feeVolume:      decimal.Zero,
		clearingTotal:  decimal.Zero,
	}
}

// Run consumes events until the channel closes.
func (t *Tracker) Run(events <-chan market.Event) {
	for ev := range events {
		t.Observe(ev)
	}
}

// Observe folds one event into the aggregates.
func (t *Tracker) Observe(ev market.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case market.EventAuctionCreated:
		t.auctionsCreated++
	case market.EventAuctionBid:
		t.bidsPlaced++
		t.escrowedVolume = t.escrowedVolume.Add(decimal.NewFromUint64(ev.Amount))
	case market.EventAuctionApproved:
		t.bidsApproved++
		t.clearingTotal = t.clearingTotal.Add(decimal.NewFromUint64(ev.Amount))
	case market.EventAuctionRejected:
		t.bidsRejected++
		t.feeVolume = t.feeVolume.Add(decimal.NewFromUint64(ev.FeePaid))
	case market.EventSettlementPaid:
		t.settlementsPaid++
		t.paidVolume = t.paidVolume.Add(decimal.NewFromUint64(ev.Amount))
		t.feeVolume = t.feeVolume.Add(decimal.NewFromUint64(ev.FeePaid))
	}
}

// Stats returns the current aggregates. FillRate is approved bids over
// auctions created; AvgClearingPrice averages approved bid values.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		AuctionsCreated:  t.auctionsCreated,
		BidsPlaced:       t.bidsPlaced,
		BidsApproved:     t.bidsApproved,
		BidsRejected:     t.bidsRejected,
		SettlementsPaid:  t.settlementsPaid,
		EscrowedVolume:   t.escrowedVolume,
		PaidVolume:       t.paidVolume,
		FeeVolume:        t.feeVolume,
		FillRate:         decimal.Zero,
		AvgClearingPrice: decimal.Zero,
	}
	if t.auctionsCreated > 0 {
		s.FillRate = decimal.NewFromUint64(t.bidsApproved).
			Div(decimal.NewFromUint64(t.auctionsCreated)).Round(4)
	}
	if t.bidsApproved > 0 {
		s.AvgClearingPrice = t.clearingTotal.
			Div(decimal.NewFromUint64(t.bidsApproved)).Round(4)
	}
	return s
}
