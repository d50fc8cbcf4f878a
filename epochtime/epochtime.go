// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package epochtime maps a time.Time instant onto the three time bases the
// DP-3T designs are built on: the start of its UTC day, the start of its
// 2-hour batch (low-cost design only), and its absolute 15-minute epoch
// number counted from the Unix epoch (unlinkable design only). The package
// never reads the wall clock itself — every function takes an explicit
// time.Time, so callers (and tests) control time entirely.
package epochtime

import (
	"time"

	"github.com/DP-3T/reference-implementation/dp3tconst"
)

// DayStart returns the first Unix second of the UTC day containing t.
func DayStart(t time.Time) int64 {
	sec := t.Unix()
	return floorDiv(sec, dp3tconst.SecondsPerDay) * dp3tconst.SecondsPerDay
}

// BatchStart returns the first Unix second of the 2-hour batch containing t.
func BatchStart(t time.Time) int64 {
	sec := t.Unix()
	return floorDiv(sec, dp3tconst.SecondsPerBatch) * dp3tconst.SecondsPerBatch
}

// EpochFromTime returns the number of whole 15-minute epochs that have
// elapsed since the Unix epoch, as of t.
func EpochFromTime(t time.Time) uint32 {
	sec := t.Unix()
	epochLen := int64(dp3tconst.EpochLengthMinutes * 60)
	return uint32(floorDiv(sec, epochLen))
}

// floorDiv computes floor(a/b) for a possibly-negative a and positive b,
// matching Python's "//" operator (Go's "/" truncates toward zero instead).
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
