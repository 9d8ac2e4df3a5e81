package rtb

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/adxyz/marketplace/pkg/market"
)

// Exporter translates open marketplace auctions into OpenRTB bid requests
// so external DSPs can discover biddable inventory. The floor of each
// impression is the auction's current Dutch price.
type Exporter struct {
	mkt *market.Marketplace
	cur string
}

// NewExporter creates an exporter quoting floors in the given currency
// label.
func NewExporter(mkt *market.Marketplace, currency string) *Exporter {
	return &Exporter{mkt: mkt, cur: currency}
}

// BidRequest assembles one OpenRTB request covering every auction that is
// currently accepting bids. Returns nil when nothing is open.
func (e *Exporter) BidRequest() *openrtb2.BidRequest {
	open := e.mkt.OpenAuctions()
	if len(open) == 0 {
		return nil
	}
	now := e.mkt.Now()

	imps := make([]openrtb2.Imp, 0, len(open))
	for _, a := range open {
		price, err := e.mkt.PriceAt(a.ID)
		if err != nil {
			continue
		}
		floor, _ := decimal.NewFromUint64(price).Float64()
		imps = append(imps, openrtb2.Imp{
			ID:          fmt.Sprintf("auction-%d", a.ID),
			TagID:       fmt.Sprintf("inventory-%d", a.TokenID),
			BidFloor:    floor,
			BidFloorCur: e.cur,
			Exp:         a.AuctionEnd - now,
		})
	}
	if len(imps) == 0 {
		return nil
	}

	return &openrtb2.BidRequest{
		ID:  uuid.NewString(),
		Imp: imps,
		Cur: []string{e.cur},
	}
}
