// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"bytes"

	"github.com/adxyz/marketplace/pkg/crypto/hashing"
	"github.com/adxyz/marketplace/pkg/log"
)

// ReleaseGate guards settlement payout behind a hash commitment and a
// minimum count of posted attestation shares. Both conditions must hold;
// neither alone suffices. The commit authority and the share authority are
// distinct roles, though a deployment may assign both to one address.
type ReleaseGate struct {
	state           *State
	commitAuthority Address
	shareAuthority  Address
	log             log.Logger
}

// NewReleaseGate creates the gate over the shared store.
func NewReleaseGate(state *State, commitAuthority, shareAuthority Address, logger log.Logger) *ReleaseGate {
	return &ReleaseGate{
		state:           state,
		commitAuthority: commitAuthority,
		shareAuthority:  shareAuthority,
		log:             logger,
	}
}

// SetCommitment posts the hash commitment and required share count for a
// settlement. It may be set exactly once; redefinition could weaken the
// guarantee and is rejected.
func (g *ReleaseGate) SetCommitment(caller Address, settlementID uint64, commitment [32]byte, threshold uint32, c *call) error {
	if caller != g.commitAuthority {
		return ErrUnauthorized
	}
	rec, ok := g.state.settlements[settlementID]
	if !ok {
		return ErrNotFound
	}
	if len(rec.Commitment) != 0 {
		return ErrCommitmentSet
	}
	c.saveSettlement(g.state, settlementID)
	rec = g.state.settlements[settlementID]
	rec.Commitment = append([]byte(nil), commitment[:]...)
	rec.ShareThreshold = threshold
	g.log.Info("release commitment set", "settlement", settlementID, "threshold", threshold)
	return nil
}

// PostShare appends one attestation share. Shares are count-based; a
// duplicate posting still advances the total.
func (g *ReleaseGate) PostShare(caller Address, settlementID uint64, share string, c *call) error {
	if caller != g.shareAuthority {
		return ErrUnauthorized
	}
	rec, ok := g.state.settlements[settlementID]
	if !ok {
		return ErrNotFound
	}
	c.saveSettlement(g.state, settlementID)
	rec = g.state.settlements[settlementID]
	rec.Shares = append(rec.Shares, share)
	rec.TotalShares++
	g.log.Debug("release share posted", "settlement", settlementID, "total", rec.TotalShares)
	return nil
}

// Satisfied reports whether the preimage matches the commitment and enough
// shares have been posted. A settlement with no commitment never satisfies
// the gate: the zero commitment matches no preimage.
func (g *ReleaseGate) Satisfied(settlementID uint64, preimage []byte) bool {
	rec, ok := g.state.settlements[settlementID]
	if !ok {
		return false
	}
	if len(rec.Commitment) == 0 {
		return false
	}
	digest := hashing.Keccak256(preimage)
	if !bytes.Equal(digest[:], rec.Commitment) {
		return false
	}
	return rec.TotalShares >= rec.ShareThreshold
}
