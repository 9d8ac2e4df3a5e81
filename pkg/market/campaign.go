// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/adxyz/marketplace/pkg/log"
)

// CampaignRegistry stores buyer campaigns. Records are immutable after
// creation and may win any number of auctions.
type CampaignRegistry struct {
	state *State
	log   log.Logger
}

// NewCampaignRegistry creates the registry over the shared store.
func NewCampaignRegistry(state *State, logger log.Logger) *CampaignRegistry {
	return &CampaignRegistry{state: state, log: logger}
}

// Create allocates the next campaign id for the caller's creative.
func (r *CampaignRegistry) Create(caller Address, creativeRef string, c *call) uint64 {
	c.saveCampaignCounter(r.state)
	id := r.state.nextCampaignID
	r.state.nextCampaignID++

	c.onUndo(func() { delete(r.state.campaigns, id) })
	r.state.campaigns[id] = &Campaign{ID: id, Buyer: caller, CreativeRef: creativeRef}

	c.emit(Event{Type: EventCampaignCreated, Caller: caller, CampaignID: id})
	r.log.Info("campaign created", "campaign", id, "buyer", caller)
	return id
}

// Get returns the campaign record.
func (r *CampaignRegistry) Get(id uint64) (Campaign, error) {
	rec, ok := r.state.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return *rec, nil
}
