// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package dp3tconst holds the protocol-level constants shared by both the
// low-cost and unlinkable DP-3T designs. These are wire-format invariants,
// not deployment knobs — see package dp3tconfig for the handful of values
// that are actually configurable.
package dp3tconst

import "math"

const (
	// EpochLengthMinutes is the duration of one epoch.
	EpochLengthMinutes = 15

	// NumEpochsPerDay is the number of epochs in a calendar day.
	NumEpochsPerDay = 24 * 60 / EpochLengthMinutes

	// LengthEphID is the length, in bytes, of an ephemeral identifier.
	LengthEphID = 16

	// SecondsPerDay is the number of seconds in a day.
	SecondsPerDay = 24 * 60 * 60

	// SecondsPerBatch is the length of a low-cost design batch (2 hours).
	SecondsPerBatch = 2 * 60 * 60

	// RetentionPeriod is the number of days keys, seeds, EphIDs, and
	// observations are retained. The library value is 21; a historical demo
	// script in the reference implementation used 14, but that inconsistency
	// does not carry over here.
	RetentionPeriod = 21

	// DefaultFilterHeadroom is the default capacity multiplier applied to the
	// item count when sizing an unlinkable design membership filter.
	DefaultFilterHeadroom = 1.2
)

// BroadcastKey is the ASCII domain-separation string used to derive a day's
// stream-cipher key from its day-key via HMAC-SHA-256.
var BroadcastKey = []byte("broadcast key")

// CuckooFPR is the target false-positive rate for the unlinkable design's
// membership filter: 2^-42.
var CuckooFPR = math.Pow(2, -42)
