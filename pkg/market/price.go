// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import "math/bits"

// priceAt computes the Dutch price of an auction at the given unix time.
// The price decays linearly from the ceiling at window start toward zero at
// window end, using truncating integer division. Bids are accepted in
// [start, end): at the end instant the auction has expired.
func priceAt(a *Auction, now int64) (uint64, error) {
	if now < a.AuctionStart {
		return 0, ErrAuctionNotStarted
	}
	if now >= a.AuctionEnd {
		return 0, ErrAuctionExpired
	}
	window := uint64(a.AuctionEnd - a.AuctionStart)
	remaining := uint64(a.AuctionEnd - now)
	// 128-bit intermediate; remaining < window keeps the quotient within
	// the ceiling, so Div64 cannot trap.
	hi, lo := bits.Mul64(a.PriceCeiling, remaining)
	q, _ := bits.Div64(hi, lo, window)
	return q, nil
}
