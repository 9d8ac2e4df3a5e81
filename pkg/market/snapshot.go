// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"encoding/json"
	"fmt"

	"github.com/adxyz/marketplace/pkg/storage"
)

// Snapshot key layout. Records go under per-entity prefixes; counters and
// the fee live under the meta key.
const (
	keyMeta      = "meta"
	keyOperators = "operators"
	keyBans      = "bans"

	prefixInventory  = "i/"
	prefixCampaign   = "c/"
	prefixAuction    = "a/"
	prefixSettlement = "s/"
)

type snapshotMeta struct {
	NextCampaignID uint64 `json:"next_campaign_id"`
	NextAuctionID  uint64 `json:"next_auction_id"`
	FeeBps         uint32 `json:"fee_bps"`
}

type accessEdge struct {
	From Address `json:"from"`
	To   Address `json:"to"`
}

// Snapshot writes the full engine state to the store. Callers run it
// between operations; the engine lock keeps the copy consistent.
func (m *Marketplace) Snapshot(store *storage.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	meta := snapshotMeta{
		NextCampaignID: m.state.nextCampaignID,
		NextAuctionID:  m.state.nextAuctionID,
		FeeBps:         m.state.feeBps,
	}
	if err := store.PutJSON([]byte(keyMeta), meta); err != nil {
		return err
	}
	for id, rec := range m.state.inventory {
		if err := store.PutJSON(recordKey(prefixInventory, id), rec); err != nil {
			return err
		}
	}
	for id, rec := range m.state.campaigns {
		if err := store.PutJSON(recordKey(prefixCampaign, id), rec); err != nil {
			return err
		}
	}
	for id, rec := range m.state.auctions {
		if err := store.PutJSON(recordKey(prefixAuction, id), rec); err != nil {
			return err
		}
	}
	for id, rec := range m.state.settlements {
		if err := store.PutJSON(recordKey(prefixSettlement, id), rec); err != nil {
			return err
		}
	}
	if err := store.PutJSON([]byte(keyOperators), flattenEdges(m.state.operators)); err != nil {
		return err
	}
	return store.PutJSON([]byte(keyBans), flattenEdges(m.state.bans))
}

// Restore replaces the engine state with the store's snapshot.
func (m *Marketplace) Restore(store *storage.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := store.Has([]byte(keyMeta))
	if err != nil {
		return fmt.Errorf("snapshot meta: %w", err)
	}
	if !ok {
		// Nothing snapshotted yet; keep the current (fresh) state.
		return nil
	}

	state := NewState()
	var meta snapshotMeta
	if err := store.GetJSON([]byte(keyMeta), &meta); err != nil {
		return fmt.Errorf("snapshot meta: %w", err)
	}
	state.nextCampaignID = meta.NextCampaignID
	state.nextAuctionID = meta.NextAuctionID
	state.feeBps = meta.FeeBps

	if err := loadRecords(store, prefixInventory, func(id uint64) any {
		rec := &InventorySetting{}
		state.inventory[id] = rec
		return rec
	}); err != nil {
		return err
	}
	if err := loadRecords(store, prefixCampaign, func(id uint64) any {
		rec := &Campaign{}
		state.campaigns[id] = rec
		return rec
	}); err != nil {
		return err
	}
	if err := loadRecords(store, prefixAuction, func(id uint64) any {
		rec := &Auction{}
		state.auctions[id] = rec
		return rec
	}); err != nil {
		return err
	}
	if err := loadRecords(store, prefixSettlement, func(id uint64) any {
		rec := &Settlement{}
		state.settlements[id] = rec
		return rec
	}); err != nil {
		return err
	}

	var edges []accessEdge
	if err := store.GetJSON([]byte(keyOperators), &edges); err != nil {
		return fmt.Errorf("snapshot operators: %w", err)
	}
	state.operators = expandEdges(edges)
	edges = nil
	if err := store.GetJSON([]byte(keyBans), &edges); err != nil {
		return fmt.Errorf("snapshot bans: %w", err)
	}
	state.bans = expandEdges(edges)

	m.state = state
	m.rebind()
	return nil
}

// rebind points every component at the freshly restored store.
func (m *Marketplace) rebind() {
	m.access.state = m.state
	m.inventory.state = m.state
	m.campaigns.state = m.state
	m.engine.state = m.state
	m.settlements.state = m.state
	m.fee.state = m.state
	if m.gate != nil {
		m.gate.state = m.state
	}
}

func recordKey(prefix string, id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", prefix, id))
}

func parseRecordKey(prefix string, key []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(key), prefix+"%d", &id)
	return id, err
}

func loadRecords(store *storage.Store, prefix string, alloc func(id uint64) any) error {
	it := store.NewIteratorWithPrefix([]byte(prefix))
	defer it.Release()
	for it.Next() {
		id, err := parseRecordKey(prefix, it.Key())
		if err != nil {
			return fmt.Errorf("snapshot key %q: %w", it.Key(), err)
		}
		rec := alloc(id)
		if err := json.Unmarshal(it.Value(), rec); err != nil {
			return err
		}
	}
	return it.Error()
}

func flattenEdges(edges map[Address]map[Address]bool) []accessEdge {
	var out []accessEdge
	for from, tos := range edges {
		for to, ok := range tos {
			if ok {
				out = append(out, accessEdge{From: from, To: to})
			}
		}
	}
	return out
}

func expandEdges(edges []accessEdge) map[Address]map[Address]bool {
	out := make(map[Address]map[Address]bool)
	for _, e := range edges {
		if out[e.From] == nil {
			out[e.From] = make(map[Address]bool)
		}
		out[e.From][e.To] = true
	}
	return out
}
