// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package ephid derives ephemeral identifiers for both DP-3T designs. The
// low-cost design (this file) expands one day-key into 96 EphIDs via an
// HMAC-derived stream key and an AES-CTR keystream; the unlinkable design
// (unlinkable.go) derives one EphID per independently-random per-epoch seed.
package ephid

import (
	"github.com/DP-3T/reference-implementation/cryptoutil"
	"github.com/DP-3T/reference-implementation/dp3tconst"
)

// NextDayKey computes the next day-key in the low-cost hash chain:
// next(k) = SHA256(k). The chain is forward-only; there is no way to
// recover a prior key from a later one.
func NextDayKey(k [32]byte) [32]byte {
	return cryptoutil.SHA256(k[:])
}

// GenerateEphidsForDay derives the 96 EphIDs for the day keyed by k.
//
// The stream key fed to AES-CTR is the full 32-byte HMAC-SHA-256 output,
// not a 16-byte truncation — see cryptoutil.AESCTRKeystream's documentation
// for why this is load-bearing for the published test vectors.
//
// Set shuffle=false only for generating or verifying test vectors; all
// other callers must shuffle to avoid leaking epoch-within-day ordering.
func GenerateEphidsForDay(k [32]byte, shuffle bool) ([][dp3tconst.LengthEphID]byte, error) {
	streamKey := cryptoutil.HMACSHA256(k[:], dp3tconst.BroadcastKey)

	raw, err := cryptoutil.AESCTRKeystream(streamKey[:], dp3tconst.NumEpochsPerDay*dp3tconst.LengthEphID)
	if err != nil {
		return nil, err
	}

	ephids := make([][dp3tconst.LengthEphID]byte, dp3tconst.NumEpochsPerDay)
	for i := range ephids {
		copy(ephids[i][:], raw[i*dp3tconst.LengthEphID:(i+1)*dp3tconst.LengthEphID])
	}

	if shuffle {
		if err := cryptoutil.SecureShuffle(ephids); err != nil {
			return nil, err
		}
	}

	return ephids, nil
}
