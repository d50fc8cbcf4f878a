// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package tracer defines the contract both contact-tracing designs satisfy.
// The low-cost and unlinkable designs carry different tracing-information
// and batch types, so the contract is generic over both rather than
// widened to interface{}.
package tracer

import "time"

// Tracer is the behavior common to the low-cost and unlinkable designs: it
// publishes EphIDs, records peer observations, and reports how many stored
// observations match a released batch. TracingInfo and Batch are the
// per-design associated types (batch.LowCostTracingInfo and
// batch.LowCostBatch, or their unlinkable counterparts).
type Tracer[TracingInfo any, Batch any] interface {
	// CurrentDayEphids returns the EphIDs this tracer is broadcasting today,
	// in whatever order the design publishes them.
	CurrentDayEphids() [][16]byte

	// GetEphidForTime returns the EphID valid at t. Fails with
	// dp3terr.ErrUnavailableEphID if t falls outside what the tracer
	// currently has material for.
	GetEphidForTime(t time.Time) ([16]byte, error)

	// AddObservation records a peer's EphID observed at t. Fails with
	// dp3terr.ErrOutOfDayObservation if t falls outside the tracer's
	// current day.
	AddObservation(ephid [16]byte, t time.Time) error

	// NextDay advances the tracer's notion of "today" by one day,
	// rotating key/seed material and enforcing the retention window.
	NextDay() error

	// GetTracingInformation exports what a diagnosed user would submit to
	// a batch server, covering epochs from first through last. A nil last
	// defaults to the start of today; the low-cost design ignores last
	// entirely since one export is always exactly one day-key.
	GetTracingInformation(first time.Time, last *time.Time) (TracingInfo, error)

	// MatchesWithBatch reports how many stored observations match the
	// given batch.
	MatchesWithBatch(b Batch) (int, error)
}
