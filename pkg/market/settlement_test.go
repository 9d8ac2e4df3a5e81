// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// settle runs deposit, auction, bid at tStart (price == ceiling), and
// approval, returning the settlement id.
func settle(t *testing.T, f *fixture) uint64 {
	t.Helper()
	auctionID := f.depositAndAuction(t, 1, PolicyManual)
	campaignID := f.campaign(t, buyer)
	f.clk.now = tStart
	require.NoError(t, f.mkt.AuctionBid(buyer, auctionID, campaignID))
	require.NoError(t, f.mkt.AuctionApprove(seller, auctionID))
	return auctionID
}

func TestWithdrawGatedOnDisplayWindow(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)

	f.clk.now = tDispEnd - 1
	err := f.mkt.SettlementWithdraw(seller, id, nil)
	require.ErrorIs(err, ErrDisplayNotOver)
	require.ErrorIs(err, ErrTimingViolation)

	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))
	require.Equal(ceiling, f.ledger.BalanceOf(seller))
}

func TestWithdrawExactlyOnce(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)

	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, nil), ErrAlreadyWithdrawn)
	require.Equal(ceiling, f.ledger.BalanceOf(seller))

	s, err := f.mkt.Settlement(id)
	require.NoError(err)
	require.Equal(Withdrawn, s.State)
}

func TestWithdrawPermissions(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)
	f.clk.now = tDispEnd

	require.ErrorIs(f.mkt.SettlementWithdraw(buyer, id, nil), ErrUnauthorized)
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id+9, nil), ErrNotFound)
}

func TestWithdrawFeeSplit(t *testing.T) {
	require := require.New(t)
	cfg := defaultConfig()
	cfg.FeeBps = 200 // 2% per recipient
	cfg.FeeRecipients = []Address{feeA, feeB}
	f := newFixture(t, cfg)
	id := settle(t, f) // value 100

	before := f.total()
	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))
	require.Equal(before, f.total())

	// Each recipient takes 100*200/10000 = 2; the seller gets the rest.
	require.Equal(uint64(2), f.ledger.BalanceOf(feeA))
	require.Equal(uint64(2), f.ledger.BalanceOf(feeB))
	require.Equal(uint64(96), f.ledger.BalanceOf(seller))
	require.Equal(uint64(0), f.ledger.BalanceOf(escrow))
}

func TestWithdrawFeeTruncates(t *testing.T) {
	require := require.New(t)
	cfg := defaultConfig()
	cfg.FeeBps = 1 // 0.01%: cut on 100 truncates to zero
	f := newFixture(t, cfg)
	id := settle(t, f)

	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))
	require.Equal(uint64(0), f.ledger.BalanceOf(feeA))
	require.Equal(ceiling, f.ledger.BalanceOf(seller))
}

func TestWithdrawReleasesInventory(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)

	require.ErrorIs(f.mkt.InventoryWithdraw(seller, 1), ErrInventoryInUse)

	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))

	// Payout released the auction's claim; the token can leave custody
	// without cancelling anything.
	require.Equal(uint32(0), f.mkt.Inventory(1).InProgress)
	require.NoError(f.mkt.InventoryWithdraw(seller, 1))
	require.Equal(seller, f.custodian.OwnerOf(1))
}

func TestFundConservationAcrossLifecycle(t *testing.T) {
	require := require.New(t)
	cfg := defaultConfig()
	cfg.FeeBps = 300
	cfg.FeeRecipients = []Address{feeA, feeB}
	f := newFixture(t, cfg)
	before := f.total()

	auctionID := f.depositAndAuction(t, 1, PolicyManual)
	campaignID := f.campaign(t, buyer)

	f.clk.now = tStart + 100
	require.NoError(f.mkt.AuctionBid(buyer, auctionID, campaignID))
	require.Equal(before, f.total())

	require.NoError(f.mkt.AuctionReject(seller, auctionID))
	require.Equal(before, f.total())

	require.NoError(f.mkt.AuctionBid(buyer, auctionID, campaignID))
	require.NoError(f.mkt.AuctionApprove(seller, auctionID))
	require.Equal(before, f.total())

	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, auctionID, nil))
	require.Equal(before, f.total())
	require.Equal(uint64(0), f.ledger.BalanceOf(escrow))
}
