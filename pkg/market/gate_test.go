// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/marketplace/pkg/crypto/hashing"
)

const (
	commitAuth = Address("commit-auth")
	shareAuth  = Address("share-auth")
)

func gatedConfig() Config {
	cfg := defaultConfig()
	cfg.GateEnabled = true
	cfg.CommitAuthority = commitAuth
	cfg.ShareAuthority = shareAuth
	return cfg
}

func TestGatedWithdraw(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())
	id := settle(t, f)
	f.clk.now = tDispEnd

	preimage := []byte("release-key")
	commitment := hashing.Keccak256(preimage)

	// No commitment posted yet: the gate can never be satisfied, even with
	// the display window over.
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, preimage), ErrGateUnsatisfied)

	require.NoError(f.mkt.GateSetCommitment(commitAuth, id, commitment, 3))

	// Shares below threshold.
	require.NoError(f.mkt.GatePostShare(shareAuth, id, "share-1"))
	require.NoError(f.mkt.GatePostShare(shareAuth, id, "share-2"))
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, preimage), ErrGateUnsatisfied)

	require.NoError(f.mkt.GatePostShare(shareAuth, id, "share-3"))

	// Wrong preimage still fails.
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, []byte("wrong")), ErrGateUnsatisfied)
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, nil), ErrGateUnsatisfied)

	require.NoError(f.mkt.SettlementWithdraw(seller, id, preimage))
	require.Equal(ceiling, f.ledger.BalanceOf(seller))
}

func TestGateDuplicateSharesCount(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())
	id := settle(t, f)
	f.clk.now = tDispEnd

	preimage := []byte("release-key")
	require.NoError(f.mkt.GateSetCommitment(commitAuth, id, hashing.Keccak256(preimage), 2))

	// Shares are tallied by count, not uniqueness.
	require.NoError(f.mkt.GatePostShare(shareAuth, id, "dup"))
	require.NoError(f.mkt.GatePostShare(shareAuth, id, "dup"))

	s, err := f.mkt.Settlement(id)
	require.NoError(err)
	require.Equal(uint32(2), s.TotalShares)
	require.NoError(f.mkt.SettlementWithdraw(seller, id, preimage))
}

func TestGateCommitmentSetOnce(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())
	id := settle(t, f)

	c1 := hashing.Keccak256([]byte("first"))
	require.NoError(f.mkt.GateSetCommitment(commitAuth, id, c1, 1))

	err := f.mkt.GateSetCommitment(commitAuth, id, hashing.Keccak256([]byte("second")), 1)
	require.ErrorIs(err, ErrCommitmentSet)
	require.ErrorIs(err, ErrStateConflict)

	s, err := f.mkt.Settlement(id)
	require.NoError(err)
	require.Equal(c1[:], s.Commitment)
}

func TestGateAuthorities(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())
	id := settle(t, f)
	commitment := hashing.Keccak256([]byte("key"))

	require.ErrorIs(f.mkt.GateSetCommitment(seller, id, commitment, 1), ErrUnauthorized)
	require.ErrorIs(f.mkt.GateSetCommitment(shareAuth, id, commitment, 1), ErrUnauthorized)
	require.ErrorIs(f.mkt.GatePostShare(commitAuth, id, "s"), ErrUnauthorized)

	require.ErrorIs(f.mkt.GateSetCommitment(commitAuth, id+9, commitment, 1), ErrNotFound)
	require.ErrorIs(f.mkt.GatePostShare(shareAuth, id+9, "s"), ErrNotFound)
}

func TestGateZeroThreshold(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, gatedConfig())
	id := settle(t, f)
	f.clk.now = tDispEnd

	// Threshold zero needs no shares, but the preimage must still match.
	preimage := []byte("key")
	require.NoError(f.mkt.GateSetCommitment(commitAuth, id, hashing.Keccak256(preimage), 0))
	require.ErrorIs(f.mkt.SettlementWithdraw(seller, id, []byte("other")), ErrGateUnsatisfied)
	require.NoError(f.mkt.SettlementWithdraw(seller, id, preimage))
}

func TestGateDisabled(t *testing.T) {
	require := require.New(t)
	f := newFixture(t, defaultConfig())
	id := settle(t, f)

	require.ErrorIs(f.mkt.GateSetCommitment(commitAuth, id, [32]byte{}, 1), ErrUnauthorized)
	require.ErrorIs(f.mkt.GatePostShare(shareAuth, id, "s"), ErrUnauthorized)
}
