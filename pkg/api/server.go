// Package api exposes the marketplace operation surface over HTTP. The
// caller address comes from the X-Market-Caller header; upstream gateways
// are expected to have authenticated it.
package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/adxyz/marketplace/pkg/analytics"
	"github.com/adxyz/marketplace/pkg/log"
	"github.com/adxyz/marketplace/pkg/market"
	"github.com/adxyz/marketplace/pkg/rtb"
)

const callerHeader = "X-Market-Caller"

// Server wires the marketplace, tracker, and RTB exporter behind gin.
type Server struct {
	mkt      *market.Marketplace
	tracker  *analytics.Tracker
	exporter *rtb.Exporter
	log      log.Logger
	router   *gin.Engine
}

// NewServer builds the router. tracker and exporter may be nil.
func NewServer(mkt *market.Marketplace, tracker *analytics.Tracker, exporter *rtb.Exporter, logger log.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		mkt:      mkt,
		tracker:  tracker,
		exporter: exporter,
		log:      logger,
		router:   gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestLog())
	s.routes()
	return s
}

// Handler returns the http handler for mounting.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		c.Next()
		s.log.Debug("request handled",
			"id", reqID, "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status())
	}
}

func (s *Server) routes() {
	v1 := s.router.Group("/v1")

	v1.POST("/campaigns", s.campaignCreate)
	v1.POST("/campaigns/batch", s.campaignCreateBatch)
	v1.GET("/campaigns/:id", s.campaignGet)

	v1.POST("/inventory/deposit", s.inventoryDeposit)
	v1.POST("/inventory/withdraw", s.inventoryWithdraw)
	v1.GET("/inventory/:id", s.inventoryGet)

	v1.POST("/auctions", s.auctionCreate)
	v1.POST("/auctions/batch", s.auctionCreateBatch)
	v1.GET("/auctions/:id", s.auctionGet)
	v1.GET("/auctions/:id/price", s.auctionPrice)
	v1.POST("/auctions/:id/bid", s.auctionBid)
	v1.POST("/auctions/bid/batch", s.auctionBidBatch)
	v1.POST("/auctions/:id/bid/cancel", s.auctionBidCancel)
	v1.POST("/auctions/:id/reject", s.auctionReject)
	v1.POST("/auctions/:id/approve", s.auctionApprove)
	v1.POST("/auctions/:id/cancel", s.auctionCancel)

	v1.POST("/settlements/:id/withdraw", s.settlementWithdraw)
	v1.GET("/settlements/:id", s.settlementGet)

	v1.POST("/gate/commitment", s.gateSetCommitment)
	v1.POST("/gate/share", s.gatePostShare)

	v1.POST("/operators/authorize", s.authorize)
	v1.POST("/operators/revoke", s.revoke)
	v1.POST("/bans", s.ban)
	v1.POST("/bans/remove", s.unban)

	v1.GET("/fee", s.feeGet)
	v1.POST("/fee", s.feeSet)

	v1.GET("/stats", s.stats)
	v1.GET("/rtb/bidrequest", s.bidRequest)
}

func (s *Server) caller(c *gin.Context) (market.Address, bool) {
	addr := market.Address(c.GetHeader(callerHeader))
	if addr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + callerHeader + " header"})
		return "", false
	}
	return addr, true
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// fail maps engine errors onto HTTP statuses.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, market.ErrUnauthorized),
		errors.Is(err, market.ErrBanned),
		errors.Is(err, market.ErrGateUnsatisfied):
		status = http.StatusForbidden
	case errors.Is(err, market.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrAlreadyOccupied),
		errors.Is(err, market.ErrStateConflict),
		errors.Is(err, market.ErrTimingViolation):
		status = http.StatusConflict
	case errors.Is(err, market.ErrFundsFailure):
		status = http.StatusPaymentRequired
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// --- Campaigns ---

type campaignCreateRequest struct {
	CreativeRef string `json:"creative_ref" binding:"required"`
}

func (s *Server) campaignCreate(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req campaignCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.mkt.CampaignCreate(caller, req.CreativeRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type campaignCreateBatchRequest struct {
	CreativeRefs []string `json:"creative_refs" binding:"required"`
}

func (s *Server) campaignCreateBatch(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req campaignCreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := s.mkt.CampaignCreateBatch(caller, req.CreativeRefs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

func (s *Server) campaignGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.mkt.Campaign(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Inventory ---

type inventoryDepositRequest struct {
	TokenID uint64 `json:"token_id"`
	Policy  uint8  `json:"policy" binding:"required"`
}

func (s *Server) inventoryDeposit(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req inventoryDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.InventoryDeposit(caller, req.TokenID, req.Policy); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type inventoryWithdrawRequest struct {
	TokenID uint64 `json:"token_id"`
}

func (s *Server) inventoryWithdraw(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req inventoryWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.InventoryWithdraw(caller, req.TokenID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) inventoryGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.mkt.Inventory(id))
}

// --- Auctions ---

type auctionCreateRequest struct {
	TokenID      uint64 `json:"token_id"`
	AuctionStart int64  `json:"auction_start" binding:"required"`
	AuctionEnd   int64  `json:"auction_end" binding:"required"`
	DisplayStart int64  `json:"display_start" binding:"required"`
	DisplayEnd   int64  `json:"display_end" binding:"required"`
	PriceCeiling uint64 `json:"price_ceiling" binding:"required"`
}

func (s *Server) auctionCreate(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req auctionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := s.mkt.AuctionCreate(caller, req.TokenID, req.AuctionStart, req.AuctionEnd, req.DisplayStart, req.DisplayEnd, req.PriceCeiling)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type auctionCreateBatchRequest struct {
	TokenID       uint64   `json:"token_id"`
	AuctionStarts []int64  `json:"auction_starts" binding:"required"`
	AuctionEnds   []int64  `json:"auction_ends" binding:"required"`
	DisplayStarts []int64  `json:"display_starts" binding:"required"`
	DisplayEnds   []int64  `json:"display_ends" binding:"required"`
	PriceCeilings []uint64 `json:"price_ceilings" binding:"required"`
}

func (s *Server) auctionCreateBatch(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req auctionCreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := s.mkt.AuctionCreateBatch(caller, req.TokenID, req.AuctionStarts, req.AuctionEnds, req.DisplayStarts, req.DisplayEnds, req.PriceCeilings)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

func (s *Server) auctionGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.mkt.Auction(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) auctionPrice(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	price, err := s.mkt.PriceAt(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"price": price})
}

type bidRequest struct {
	CampaignID uint64 `json:"campaign_id" binding:"required"`
}

func (s *Server) auctionBid(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req bidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.AuctionBid(caller, id, req.CampaignID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bidBatchRequest struct {
	AuctionIDs []uint64 `json:"auction_ids" binding:"required"`
	CampaignID uint64   `json:"campaign_id" binding:"required"`
}

func (s *Server) auctionBidBatch(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req bidBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.AuctionBidBatch(caller, req.AuctionIDs, req.CampaignID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) auctionBidCancel(c *gin.Context) { s.auctionAction(c, s.mkt.AuctionBidCancel) }
func (s *Server) auctionReject(c *gin.Context)    { s.auctionAction(c, s.mkt.AuctionReject) }
func (s *Server) auctionApprove(c *gin.Context)   { s.auctionAction(c, s.mkt.AuctionApprove) }
func (s *Server) auctionCancel(c *gin.Context)    { s.auctionAction(c, s.mkt.AuctionCancel) }

func (s *Server) auctionAction(c *gin.Context, fn func(market.Address, uint64) error) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := fn(caller, id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Settlement ---

type withdrawRequest struct {
	Preimage string `json:"preimage"` // hex, optional without a gate
}

func (s *Server) settlementWithdraw(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var preimage []byte
	if req.Preimage != "" {
		var err error
		preimage, err = hex.DecodeString(req.Preimage)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "preimage must be hex"})
			return
		}
	}
	if err := s.mkt.SettlementWithdraw(caller, id, preimage); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) settlementGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	rec, err := s.mkt.Settlement(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Release gate ---

type commitmentRequest struct {
	SettlementID uint64 `json:"settlement_id" binding:"required"`
	Commitment   string `json:"commitment" binding:"required"` // 32-byte hex
	Threshold    uint32 `json:"threshold"`
}

func (s *Server) gateSetCommitment(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req commitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, err := hex.DecodeString(req.Commitment)
	if err != nil || len(raw) != 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "commitment must be 32 bytes of hex"})
		return
	}
	var commitment [32]byte
	copy(commitment[:], raw)
	if err := s.mkt.GateSetCommitment(caller, req.SettlementID, commitment, req.Threshold); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type shareRequest struct {
	SettlementID uint64 `json:"settlement_id" binding:"required"`
	Share        string `json:"share" binding:"required"`
}

func (s *Server) gatePostShare(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req shareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.GatePostShare(caller, req.SettlementID, req.Share); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Access control ---

type operatorRequest struct {
	Operator market.Address `json:"operator" binding:"required"`
}

func (s *Server) authorize(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.Authorize(caller, req.Operator); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) revoke(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req operatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.Revoke(caller, req.Operator); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type banRequest struct {
	Buyer market.Address `json:"buyer" binding:"required"`
}

func (s *Server) ban(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.SellerBan(caller, req.Buyer); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unban(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.SellerUnban(caller, req.Buyer); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Fees / reporting ---

type feeRequest struct {
	Bps uint32 `json:"bps"`
}

func (s *Server) feeSet(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req feeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mkt.SetFee(caller, req.Bps); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) feeGet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bps": s.mkt.Fee()})
}

func (s *Server) stats(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stats not enabled"})
		return
	}
	c.JSON(http.StatusOK, s.tracker.Stats())
}

func (s *Server) bidRequest(c *gin.Context) {
	if s.exporter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rtb export not enabled"})
		return
	}
	req := s.exporter.BidRequest()
	if req == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, req)
}
