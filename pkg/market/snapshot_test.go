// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/marketplace/pkg/crypto/hashing"
	"github.com/adxyz/marketplace/pkg/storage"
)

func TestSnapshotRoundtrip(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())

	// Build up a representative state: a paid-for auction with a partly
	// satisfied gate, an operator grant, a ban, and a fee change.
	id := settle(t, f)
	preimage := []byte("release-key")
	require.NoError(f.mkt.GateSetCommitment(commitAuth, id, hashing.Keccak256(preimage), 2))
	require.NoError(f.mkt.GatePostShare(shareAuth, id, "share-1"))
	require.NoError(f.mkt.Authorize(seller, operator))
	require.NoError(f.mkt.SellerBan(seller, buyer2))
	require.NoError(f.mkt.SetFee(owner, 150))

	store := storage.NewMemory()
	require.NoError(f.mkt.Snapshot(store))

	// Restore into a second marketplace over the same external ledgers.
	restored, err := New(gatedConfig(), f.ledger, f.custodian, WithClock(f.clk.Now))
	require.NoError(err)
	require.NoError(restored.Restore(store))

	require.Equal(uint32(150), restored.Fee())
	require.True(restored.IsOperator(seller, operator))
	require.True(restored.IsBanned(seller, buyer2))

	wantAuction, err := f.mkt.Auction(id)
	require.NoError(err)
	gotAuction, err := restored.Auction(id)
	require.NoError(err)
	require.Equal(wantAuction, gotAuction)

	wantSettlement, err := f.mkt.Settlement(id)
	require.NoError(err)
	gotSettlement, err := restored.Settlement(id)
	require.NoError(err)
	require.Equal(wantSettlement, gotSettlement)

	require.Equal(f.mkt.Inventory(1), restored.Inventory(1))

	// Counters survive: new records continue the id sequence.
	nextCampaign, err := restored.CampaignCreate(buyer2, "creative://next")
	require.NoError(err)
	require.Equal(uint64(2), nextCampaign)

	// The restored engine keeps working end to end.
	require.NoError(restored.GatePostShare(shareAuth, id, "share-2"))
	f.clk.now = tDispEnd
	require.NoError(restored.SettlementWithdraw(seller, id, preimage))
}

func TestRestoreFreshStoreIsNoop(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := f.depositAndAuction(t, 1, PolicyManual)

	require.NoError(f.mkt.Restore(storage.NewMemory()))

	// Nothing was wiped.
	a, err := f.mkt.Auction(id)
	require.NoError(err)
	require.Equal(seller, a.Seller)
}

func TestSnapshotIsolatedFromLaterMutation(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)

	store := storage.NewMemory()
	require.NoError(f.mkt.Snapshot(store))

	// Pay out after the snapshot; the stored copy still shows pending.
	f.clk.now = tDispEnd
	require.NoError(f.mkt.SettlementWithdraw(seller, id, nil))

	restored, err := New(defaultConfig(), f.ledger, f.custodian, WithClock(f.clk.Now))
	require.NoError(err)
	require.NoError(restored.Restore(store))

	s, err := restored.Settlement(id)
	require.NoError(err)
	require.Equal(WithdrawalPending, s.State)
}
