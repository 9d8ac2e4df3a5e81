// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/marketplace/pkg/analytics"
	"github.com/adxyz/marketplace/pkg/crypto/hashing"
	"github.com/adxyz/marketplace/pkg/market"
	"github.com/adxyz/marketplace/pkg/rtb"
	"github.com/adxyz/marketplace/pkg/storage"
	"github.com/adxyz/marketplace/pkg/token"
)

// TestFullLifecycle drives the marketplace end to end: deposit, auction,
// Dutch bidding, operator delegation, rejection with fee, approval,
// display-gated settlement, and inventory recovery.
func TestFullLifecycle(t *testing.T) {
	require := require.New(t)

	var now int64 = 1000
	clock := func() time.Time { return time.Unix(now, 0) }

	ledger := token.NewMemoryLedger()
	custodian := token.NewMemoryCustodian()
	ledger.Mint("buyer-a", 10_000)
	ledger.Mint("buyer-b", 10_000)
	custodian.MintItem(1, "publisher")
	custodian.MintItem(2, "publisher")

	mkt, err := market.New(market.Config{
		Owner:         "owner",
		Escrow:        "escrow",
		FeeBps:        200, // 2%
		FeeRecipients: []market.Address{"protocol-fee"},
	}, ledger, custodian, market.WithClock(clock))
	require.NoError(err)

	tracker := analytics.NewTracker()
	events := mkt.Subscribe(64)

	// Publisher lists both slots; an agency operator runs the auctions.
	require.NoError(mkt.InventoryDepositBatch("publisher",
		[]uint64{1, 2}, []uint8{1, 1})) // manual approval
	require.NoError(mkt.Authorize("publisher", "agency"))

	ids, err := mkt.AuctionCreateBatch("agency", 1,
		[]int64{1000, 1000},
		[]int64{10900, 10900},
		[]int64{11000, 11000},
		[]int64{20000, 20000},
		[]uint64{100, 200})
	require.NoError(err)
	require.Len(ids, 2)

	// DSPs discover the open inventory over RTB.
	exporter := rtb.NewExporter(mkt, "USD")
	req := exporter.BidRequest()
	require.NotNil(req)
	require.Len(req.Imp, 2)

	// buyer-a bids on the first slot 100s in: price 100*9800/9900 = 98.
	campA, err := mkt.CampaignCreate("buyer-a", "creative://video-a")
	require.NoError(err)
	now = 1100
	require.NoError(mkt.AuctionBid("buyer-a", ids[0], campA))
	require.Equal(uint64(10_000-98), ledger.BalanceOf("buyer-a"))

	// The agency rejects it; the protocol keeps its cut of the escrow.
	require.NoError(mkt.AuctionReject("agency", ids[0]))
	require.Equal(uint64(1), ledger.BalanceOf("protocol-fee")) // 98*200/10000
	require.Equal(uint64(10_000-1), ledger.BalanceOf("buyer-a"))

	// buyer-b takes both slots mid-window and the agency approves.
	campB, err := mkt.CampaignCreate("buyer-b", "creative://video-b")
	require.NoError(err)
	now = 1000 + 4950
	require.NoError(mkt.AuctionBidBatch("buyer-b", ids, campB))
	require.NoError(mkt.AuctionApproveBatch("agency", ids))

	a0, err := mkt.Auction(ids[0])
	require.NoError(err)
	require.Equal(uint64(50), a0.PriceFinal) // half of ceiling 100
	a1, err := mkt.Auction(ids[1])
	require.NoError(err)
	require.Equal(uint64(100), a1.PriceFinal) // half of ceiling 200

	// Settlement is blocked until the display window elapses.
	err = mkt.SettlementWithdraw("publisher", ids[0], nil)
	require.ErrorIs(err, market.ErrDisplayNotOver)

	now = 20000
	require.NoError(mkt.SettlementWithdrawBatch("agency", ids, nil))
	// 50 -> fee 1, 100 -> fee 2; the publisher nets 49 + 98.
	require.Equal(uint64(147), ledger.BalanceOf("publisher"))
	require.Equal(uint64(4), ledger.BalanceOf("protocol-fee"))
	require.Equal(uint64(0), ledger.BalanceOf("escrow"))

	// Both claims released: the slot can leave custody.
	require.NoError(mkt.InventoryWithdraw("publisher", 1))
	require.Equal(token.Address("publisher"), custodian.OwnerOf(1))

	// Fold the buffered event stream; the tracker saw the whole story.
drain:
	for {
		select {
		case ev := <-events:
			tracker.Observe(ev)
		default:
			break drain
		}
	}
	stats := tracker.Stats()
	require.Equal(uint64(2), stats.AuctionsCreated)
	require.Equal(uint64(3), stats.BidsPlaced)
	require.Equal(uint64(2), stats.BidsApproved)
	require.Equal(uint64(1), stats.BidsRejected)
	require.Equal(uint64(2), stats.SettlementsPaid)
}

// TestGatedLifecycleWithSnapshot exercises the release gate across a
// snapshot/restore boundary, the way a restarted node would see it.
func TestGatedLifecycleWithSnapshot(t *testing.T) {
	require := require.New(t)

	var now int64 = 1000
	clock := func() time.Time { return time.Unix(now, 0) }

	ledger := token.NewMemoryLedger()
	custodian := token.NewMemoryCustodian()
	ledger.Mint("buyer", 10_000)
	custodian.MintItem(1, "publisher")

	cfg := market.Config{
		Owner:           "owner",
		Escrow:          "escrow",
		FeeRecipients:   []market.Address{"protocol-fee"},
		GateEnabled:     true,
		CommitAuthority: "verifier",
		ShareAuthority:  "attestor",
	}
	mkt, err := market.New(cfg, ledger, custodian, market.WithClock(clock))
	require.NoError(err)

	require.NoError(mkt.InventoryDeposit("publisher", 1, 2)) // auto-approve
	auctionID, err := mkt.AuctionCreate("publisher", 1, 1000, 10900, 11000, 20000, 100)
	require.NoError(err)

	campaign, err := mkt.CampaignCreate("buyer", "creative://native")
	require.NoError(err)
	require.NoError(mkt.AuctionBid("buyer", auctionID, campaign))

	// Auto-approve created the settlement in the same call.
	s, err := mkt.Settlement(auctionID)
	require.NoError(err)
	require.Equal(market.WithdrawalPending, s.State)

	preimage := []byte("delivery-proof-key")
	require.NoError(mkt.GateSetCommitment("verifier", auctionID, hashing.Keccak256(preimage), 2))
	require.NoError(mkt.GatePostShare("attestor", auctionID, "attestation-1"))

	// Node restart: snapshot, then restore into a fresh instance.
	store := storage.NewMemory()
	require.NoError(mkt.Snapshot(store))
	restarted, err := market.New(cfg, ledger, custodian, market.WithClock(clock))
	require.NoError(err)
	require.NoError(restarted.Restore(store))

	now = 20000
	// One share short.
	err = restarted.SettlementWithdraw("publisher", auctionID, preimage)
	require.ErrorIs(err, market.ErrGateUnsatisfied)

	require.NoError(restarted.GatePostShare("attestor", auctionID, "attestation-2"))
	require.NoError(restarted.SettlementWithdraw("publisher", auctionID, preimage))
	require.Equal(uint64(100), ledger.BalanceOf("publisher"))
}
