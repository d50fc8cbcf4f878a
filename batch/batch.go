// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package batch builds the published batch artifacts both tracer designs
// match observations against, and defines the abstract membership-filter
// contract the unlinkable design's batch is built on.
package batch

import (
	"fmt"
	"math"

	"github.com/DP-3T/reference-implementation/dp3tconst"
	"github.com/DP-3T/reference-implementation/dp3terr"
	"github.com/DP-3T/reference-implementation/ephid"
)

// LowCostTracingEntry is one infected user's day-key as submitted to a
// batch server. LowCostTracingInfo is the same shape: a tracer exports
// exactly one entry per call to GetTracingInformation.
type LowCostTracingEntry struct {
	StartTime int64
	Key       [32]byte
}

// LowCostTracingInfo is what a low-cost tracer exports for one diagnosed
// day. It has the same shape as a single batch entry because that is
// exactly what it becomes once a server collects it.
type LowCostTracingInfo = LowCostTracingEntry

// LowCostBatch is the published low-cost batch: a release time and the
// day-keys of every user who submitted tracing information before it.
type LowCostBatch struct {
	ReleaseTime int64
	Entries     []LowCostTracingEntry
}

// NewLowCostBatch builds a batch, rejecting a release time that does not
// fall on a batch boundary.
func NewLowCostBatch(entries []LowCostTracingEntry, releaseTime int64) (LowCostBatch, error) {
	if releaseTime%dp3tconst.SecondsPerBatch != 0 {
		return LowCostBatch{}, fmt.Errorf("%w: release time %d is not a multiple of %d seconds",
			dp3terr.ErrNotBatchAligned, releaseTime, dp3tconst.SecondsPerBatch)
	}
	return LowCostBatch{ReleaseTime: releaseTime, Entries: entries}, nil
}

// UnlinkableSeed is one epoch's per-epoch seed as submitted to a batch
// server.
type UnlinkableSeed struct {
	Epoch uint32
	Seed  [32]byte
}

// UnlinkableTracingInfo is what an unlinkable tracer exports for a range
// of diagnosed epochs.
type UnlinkableTracingInfo struct {
	Seeds []UnlinkableSeed
}

// MembershipFilter is the abstract probabilistic-set contract the
// unlinkable design's batch is built on. The module does not mandate a
// concrete wire format; batch/cuckooadapter is one concrete, swappable
// implementation.
type MembershipFilter interface {
	// Reset discards any prior contents and resizes the filter to hold at
	// least capacity items at false-positive rate fpr.
	Reset(capacity int, fpr float64) error
	// Insert adds item to the filter.
	Insert(item [32]byte) error
	// Lookup reports whether item may be a member (false positives
	// possible at the configured rate, false negatives never).
	Lookup(item [32]byte) bool
}

// UnlinkableBatch is the published unlinkable batch: an optional release
// time and a membership filter over every submitted user's hashed
// observations.
type UnlinkableBatch struct {
	ReleaseTime *int64
	Filter      MembershipFilter
}

// NewUnlinkableBatch sizes filter to hold every (epoch, seed) pair across
// entries at headroom× the exact item count, inserts each pair's hashed
// observation, and returns the resulting batch.
func NewUnlinkableBatch(entries []UnlinkableTracingInfo, releaseTime *int64, filter MembershipFilter, headroom, fpr float64) (UnlinkableBatch, error) {
	itemCount := 0
	for _, e := range entries {
		itemCount += len(e.Seeds)
	}
	capacity := int(math.Ceil(float64(itemCount) * headroom))
	if capacity < 1 {
		capacity = 1
	}
	if err := filter.Reset(capacity, fpr); err != nil {
		return UnlinkableBatch{}, fmt.Errorf("resetting membership filter to capacity %d: %w", capacity, err)
	}
	for _, e := range entries {
		for _, s := range e.Seeds {
			obs := ephid.HashedObservationFromSeed(s.Seed, s.Epoch)
			if err := filter.Insert(obs); err != nil {
				return UnlinkableBatch{}, fmt.Errorf("inserting hashed observation: %w", err)
			}
		}
	}
	return UnlinkableBatch{ReleaseTime: releaseTime, Filter: filter}, nil
}
