// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

package ephid

import (
	"encoding/binary"

	"github.com/DP-3T/reference-implementation/cryptoutil"
	"github.com/DP-3T/reference-implementation/dp3tconst"
)

// EphidFromSeed derives the single EphID a per-epoch seed is good for:
// SHA256(seed)[0:16]. Unlike the low-cost design, each seed is used for
// exactly one EphID and is never expanded into a keystream.
func EphidFromSeed(seed [32]byte) [dp3tconst.LengthEphID]byte {
	digest := cryptoutil.SHA256(seed[:])
	var out [dp3tconst.LengthEphID]byte
	copy(out[:], digest[:dp3tconst.LengthEphID])
	return out
}

// HashedObservation computes SHA256(ephid || big-endian uint32(epoch)), the
// form in which the unlinkable design stores observations so that a replay
// in a later epoch hashes to a different value and cannot match.
func HashedObservation(ephid [dp3tconst.LengthEphID]byte, epoch uint32) [32]byte {
	buf := make([]byte, dp3tconst.LengthEphID+4)
	copy(buf, ephid[:])
	binary.BigEndian.PutUint32(buf[dp3tconst.LengthEphID:], epoch)
	return cryptoutil.SHA256(buf)
}

// HashedObservationFromSeed derives the EphID for seed and returns its
// hashed observation for epoch. See HashedObservation.
func HashedObservationFromSeed(seed [32]byte, epoch uint32) [32]byte {
	return HashedObservation(EphidFromSeed(seed), epoch)
}
