package rtb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/marketplace/pkg/market"
	"github.com/adxyz/marketplace/pkg/token"
)

func newMarket(t *testing.T, now *int64) (*market.Marketplace, *token.MemoryLedger) {
	t.Helper()
	ledger := token.NewMemoryLedger()
	custodian := token.NewMemoryCustodian()
	custodian.MintItem(1, "seller")

	mkt, err := market.New(market.Config{
		Owner:         "owner",
		Escrow:        "escrow",
		FeeRecipients: []market.Address{"fee"},
	}, ledger, custodian, market.WithClock(func() time.Time {
		return time.Unix(*now, 0)
	}))
	require.NoError(t, err)
	return mkt, ledger
}

func TestBidRequestFromOpenAuctions(t *testing.T) {
	require := require.New(t)
	now := int64(1000)
	mkt, _ := newMarket(t, &now)
	exp := NewExporter(mkt, "USD")

	// Nothing open yet.
	require.Nil(exp.BidRequest())

	require.NoError(mkt.InventoryDeposit("seller", 1, 1))
	auctionID, err := mkt.AuctionCreate("seller", 1, 1000, 10900, 11000, 20000, 100)
	require.NoError(err)

	now = 1100 // Dutch price 98
	req := exp.BidRequest()
	require.NotNil(req)
	require.NotEmpty(req.ID)
	require.Equal([]string{"USD"}, req.Cur)
	require.Len(req.Imp, 1)

	imp := req.Imp[0]
	require.Equal("auction-1", imp.ID)
	require.Equal("inventory-1", imp.TagID)
	require.Equal(float64(98), imp.BidFloor)
	require.Equal("USD", imp.BidFloorCur)
	require.Equal(int64(9800), imp.Exp)

	// A closed auction drops out of the request.
	require.NoError(mkt.AuctionCancel("seller", auctionID))
	require.Nil(exp.BidRequest())
}

func TestBidRequestSkipsExpiredWindow(t *testing.T) {
	require := require.New(t)
	now := int64(1000)
	mkt, _ := newMarket(t, &now)
	exp := NewExporter(mkt, "USD")

	require.NoError(mkt.InventoryDeposit("seller", 1, 1))
	_, err := mkt.AuctionCreate("seller", 1, 1000, 10900, 11000, 20000, 100)
	require.NoError(err)

	now = 10900
	require.Nil(exp.BidRequest())
}
