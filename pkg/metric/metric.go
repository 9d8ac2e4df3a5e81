// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	metrics "github.com/luxfi/metric"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adxyz/marketplace/pkg/market"
)

// Metrics holds the marketplace counters, exported via prometheus.
type Metrics struct {
	metricsInstance metrics.Metrics

	CampaignsCreated     metrics.Counter
	InventoryDeposits    metrics.Counter
	InventoryWithdrawals metrics.Counter
	AuctionsCreated      metrics.Counter
	BidsPlaced           metrics.Counter
	BidsCancelled        metrics.Counter
	BidsRejected         metrics.Counter
	BidsApproved         metrics.Counter
	AuctionsCancelled    metrics.Counter
	SettlementsPaid      metrics.Counter

	EscrowedVolume metrics.Counter
	PaidVolume     metrics.Counter
	FeeVolume      metrics.Counter
}

// NewMetrics creates the metrics set under the "marketplace" namespace.
func NewMetrics() (*Metrics, error) {
	factory := metrics.NewPrometheusFactory()
	metricsInstance := factory.New("marketplace")

	m := &Metrics{metricsInstance: metricsInstance}

	m.CampaignsCreated = metricsInstance.NewCounter("campaigns_created_total", "Total buyer campaigns created")
	m.InventoryDeposits = metricsInstance.NewCounter("inventory_deposits_total", "Total inventory tokens deposited")
	m.InventoryWithdrawals = metricsInstance.NewCounter("inventory_withdrawals_total", "Total inventory tokens withdrawn")
	m.AuctionsCreated = metricsInstance.NewCounter("auctions_created_total", "Total auctions created")
	m.BidsPlaced = metricsInstance.NewCounter("bids_placed_total", "Total bids placed")
	m.BidsCancelled = metricsInstance.NewCounter("bids_cancelled_total", "Total bids cancelled by buyers")
	m.BidsRejected = metricsInstance.NewCounter("bids_rejected_total", "Total bids rejected by sellers")
	m.BidsApproved = metricsInstance.NewCounter("bids_approved_total", "Total bids approved")
	m.AuctionsCancelled = metricsInstance.NewCounter("auctions_cancelled_total", "Total auctions cancelled")
	m.SettlementsPaid = metricsInstance.NewCounter("settlements_paid_total", "Total settlements withdrawn")

	m.EscrowedVolume = metricsInstance.NewCounter("escrowed_volume_total", "Payment tokens escrowed via bids")
	m.PaidVolume = metricsInstance.NewCounter("paid_volume_total", "Payment tokens paid out to sellers")
	m.FeeVolume = metricsInstance.NewCounter("fee_volume_total", "Payment tokens routed to fee recipients")

	return m, nil
}

// Observe maps a marketplace event onto the counters. Wire it to an event
// subscription.
func (m *Metrics) Observe(ev market.Event) {
	switch ev.Type {
	case market.EventCampaignCreated:
		m.CampaignsCreated.Inc()
	case market.EventInventoryDeposit:
		m.InventoryDeposits.Inc()
	case market.EventInventoryWithdraw:
		m.InventoryWithdrawals.Inc()
	case market.EventAuctionCreated:
		m.AuctionsCreated.Inc()
	case market.EventAuctionBid:
		m.BidsPlaced.Inc()
		m.EscrowedVolume.Add(float64(ev.Amount))
	case market.EventBidCancelled:
		m.BidsCancelled.Inc()
	case market.EventAuctionRejected:
		m.BidsRejected.Inc()
		m.FeeVolume.Add(float64(ev.FeePaid))
	case market.EventAuctionApproved:
		m.BidsApproved.Inc()
	case market.EventAuctionCancelled:
		m.AuctionsCancelled.Inc()
	case market.EventSettlementPaid:
		m.SettlementsPaid.Inc()
		m.PaidVolume.Add(float64(ev.Amount))
		m.FeeVolume.Add(float64(ev.FeePaid))
	}
}

// GetGatherer returns the prometheus gatherer for metrics export.
func (m *Metrics) GetGatherer() prometheus.Gatherer {
	if registry := m.metricsInstance.Registry(); registry != nil {
		return registry
	}
	return prometheus.DefaultGatherer
}
