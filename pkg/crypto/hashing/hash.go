// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashing

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// SHA256 computes the SHA-256 hash of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ComputeHash256 computes the SHA-256 hash and returns it as a slice.
func ComputeHash256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Keccak256 computes the legacy Keccak-256 hash of data. Release-gate
// commitments use Keccak so preimages produced by EVM tooling verify
// unchanged.
func Keccak256(data []byte) [32]byte {
	var out [32]byte
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	copy(out[:], h.Sum(nil))
	return out
}
