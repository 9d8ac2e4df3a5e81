// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDutchPriceDecay(t *testing.T) {
	require := require.New(t)
	a := &Auction{
		Seller:       seller,
		AuctionStart: tStart,
		AuctionEnd:   tEnd,
		PriceCeiling: ceiling,
	}

	// Before the window opens.
	_, err := priceAt(a, tStart-1)
	require.ErrorIs(err, ErrAuctionNotStarted)
	require.ErrorIs(err, ErrTimingViolation)

	// Opening price is the full ceiling.
	price, err := priceAt(a, tStart)
	require.NoError(err)
	require.Equal(ceiling, price)

	// 100s into a 9900s window: 100 * 9800 / 9900 truncates to 98.
	price, err = priceAt(a, tStart+100)
	require.NoError(err)
	require.Equal(uint64(98), price)

	// Midpoint.
	price, err = priceAt(a, tStart+4950)
	require.NoError(err)
	require.Equal(uint64(50), price)

	// One second before close the price has decayed to the floor.
	price, err = priceAt(a, tEnd-1)
	require.NoError(err)
	require.Equal(uint64(0), price)

	// The close itself is exclusive.
	_, err = priceAt(a, tEnd)
	require.ErrorIs(err, ErrAuctionExpired)
	_, err = priceAt(a, tEnd+500)
	require.ErrorIs(err, ErrAuctionExpired)
}

func TestDutchPriceLargeCeiling(t *testing.T) {
	require := require.New(t)
	// ceiling * remaining overflows 64 bits; the 128-bit intermediate keeps
	// the quotient exact.
	a := &Auction{
		Seller:       seller,
		AuctionStart: 0,
		AuctionEnd:   1 << 40,
		PriceCeiling: 1 << 62,
	}
	price, err := priceAt(a, 1<<39)
	require.NoError(err)
	require.Equal(uint64(1<<61), price)
}

func TestMarketplacePriceAt(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	auctionID := f.depositAndAuction(t, 1, PolicyManual)

	f.clk.now = tStart + 100
	price, err := f.mkt.PriceAt(auctionID)
	require.NoError(err)
	require.Equal(uint64(98), price)

	_, err = f.mkt.PriceAt(auctionID + 99)
	require.ErrorIs(err, ErrNotFound)
}
