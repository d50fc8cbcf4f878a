// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package unlinkable implements the unlinkable DP-3T design: one
// independently-random seed per epoch, with observations stored as
// one-way hashes so that a diagnosed user's export reveals nothing about
// epochs outside the range they choose to disclose.
package unlinkable

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/DP-3T/reference-implementation/batch"
	"github.com/DP-3T/reference-implementation/cryptoutil"
	"github.com/DP-3T/reference-implementation/dp3tconfig"
	"github.com/DP-3T/reference-implementation/dp3tconst"
	"github.com/DP-3T/reference-implementation/dp3terr"
	"github.com/DP-3T/reference-implementation/epochtime"
	"github.com/DP-3T/reference-implementation/ephid"
	"github.com/DP-3T/reference-implementation/tracer"
)

var _ tracer.Tracer[batch.UnlinkableTracingInfo, batch.UnlinkableBatch] = (*Tracer)(nil)

// Tracer is the unlinkable design's tracer. It is not safe for
// concurrent use by multiple goroutines; callers needing that wrap it in
// their own sync.Mutex.
type Tracer struct {
	seedsPerEpoch      map[uint32][32]byte
	ephidsPerEpoch     map[uint32][16]byte
	observationsPerDay map[int64][][32]byte
	startOfToday       int64
	retentionDays      int
}

// New creates a tracer with freshly-random seeds and EphIDs for every
// epoch of the UTC day containing now, retaining dp3tconst.RetentionPeriod
// days of history.
func New(now time.Time) (*Tracer, error) {
	return newWithRetention(now, dp3tconst.RetentionPeriod)
}

// NewWithConfig behaves like New but takes its retention window from cfg,
// letting a deployment (or a test harness) override the hardcoded default
// via dp3tconfig.Load.
func NewWithConfig(now time.Time, cfg dp3tconfig.Config) (*Tracer, error) {
	return newWithRetention(now, cfg.RetentionDays)
}

func newWithRetention(now time.Time, retentionDays int) (*Tracer, error) {
	t := &Tracer{
		seedsPerEpoch:      make(map[uint32][32]byte),
		ephidsPerEpoch:     make(map[uint32][16]byte),
		observationsPerDay: make(map[int64][][32]byte),
		startOfToday:       epochtime.DayStart(now),
		retentionDays:      retentionDays,
	}
	if err := t.populateDay(t.startOfToday); err != nil {
		return nil, err
	}
	return t, nil
}

// populateDay creates 96 fresh (seed, ephid) pairs for every epoch of the
// day starting at dayStart.
func (t *Tracer) populateDay(dayStart int64) error {
	firstEpoch := epochtime.EpochFromTime(time.Unix(dayStart, 0).UTC())
	for i := uint32(0); i < dp3tconst.NumEpochsPerDay; i++ {
		var seed [32]byte
		raw, err := cryptoutil.RandomBytes(32)
		if err != nil {
			return fmt.Errorf("generating seed for epoch %d: %w", firstEpoch+i, err)
		}
		copy(seed[:], raw)
		t.seedsPerEpoch[firstEpoch+i] = seed
		t.ephidsPerEpoch[firstEpoch+i] = ephid.EphidFromSeed(seed)
	}
	return nil
}

// CurrentDayEphids returns today's EphIDs, one per epoch, in epoch order.
func (t *Tracer) CurrentDayEphids() [][16]byte {
	firstEpoch := epochtime.EpochFromTime(time.Unix(t.startOfToday, 0).UTC())
	out := make([][16]byte, 0, dp3tconst.NumEpochsPerDay)
	for i := uint32(0); i < dp3tconst.NumEpochsPerDay; i++ {
		out = append(out, t.ephidsPerEpoch[firstEpoch+i])
	}
	return out
}

// GetEphidForTime returns the EphID for the epoch containing t.
func (t *Tracer) GetEphidForTime(tm time.Time) ([16]byte, error) {
	epoch := epochtime.EpochFromTime(tm)
	e, ok := t.ephidsPerEpoch[epoch]
	if !ok {
		return [16]byte{}, fmt.Errorf("%w: no ephid for epoch %d", dp3terr.ErrUnavailableEphID, epoch)
	}
	return e, nil
}

// AddObservation records a peer EphID observed at t, stored as an
// irreversible hash over the EphID and the epoch it was seen in.
func (t *Tracer) AddObservation(e [16]byte, tm time.Time) error {
	day := epochtime.DayStart(tm)
	if day != t.startOfToday {
		return fmt.Errorf("%w: %v falls outside today's window", dp3terr.ErrOutOfDayObservation, tm)
	}
	epoch := epochtime.EpochFromTime(tm)
	t.observationsPerDay[day] = append(t.observationsPerDay[day], ephid.HashedObservation(e, epoch))
	return nil
}

// NextDay advances the tracer by one day: fresh seeds/EphIDs are created
// for the new day's epochs, and material older than the retention window
// is dropped.
func (t *Tracer) NextDay() error {
	t.startOfToday += dp3tconst.SecondsPerDay
	if err := t.populateDay(t.startOfToday); err != nil {
		return err
	}

	dayCutoff := t.startOfToday - int64(t.retentionDays)*dp3tconst.SecondsPerDay
	droppedDays := 0
	for day := range t.observationsPerDay {
		if day < dayCutoff {
			delete(t.observationsPerDay, day)
			droppedDays++
		}
	}

	epochCutoff := epochtime.EpochFromTime(time.Unix(dayCutoff, 0).UTC())
	droppedEpochs := 0
	for epoch := range t.seedsPerEpoch {
		if epoch < epochCutoff {
			delete(t.seedsPerEpoch, epoch)
			delete(t.ephidsPerEpoch, epoch)
			droppedEpochs++
		}
	}
	if droppedDays > 0 || droppedEpochs > 0 {
		slog.Debug("dropped material outside retention window", "days", droppedDays, "epochs", droppedEpochs)
	}
	return nil
}

// GetTracingInformation exports every (epoch, seed) pair from first
// through last, inclusive. A nil last defaults to the start of today.
// last must not precede first; every epoch in range must still have a
// stored seed.
func (t *Tracer) GetTracingInformation(first time.Time, last *time.Time) (batch.UnlinkableTracingInfo, error) {
	end := time.Unix(t.startOfToday, 0).UTC()
	if last != nil {
		end = *last
	}
	if end.Before(first) {
		return batch.UnlinkableTracingInfo{}, fmt.Errorf("%w: last %v precedes first %v", dp3terr.ErrInvalidRange, end, first)
	}

	startEpoch := epochtime.EpochFromTime(first)
	endEpoch := epochtime.EpochFromTime(end)

	seeds := make([]batch.UnlinkableSeed, 0, endEpoch-startEpoch+1)
	for epoch := startEpoch; epoch <= endEpoch; epoch++ {
		seed, ok := t.seedsPerEpoch[epoch]
		if !ok {
			return batch.UnlinkableTracingInfo{}, fmt.Errorf("%w: no seed for epoch %d", dp3terr.ErrUnavailableTracingKey, epoch)
		}
		seeds = append(seeds, batch.UnlinkableSeed{Epoch: epoch, Seed: seed})
	}
	return batch.UnlinkableTracingInfo{Seeds: seeds}, nil
}

// MatchesWithBatch reports how many of the tracer's stored hashed
// observations are reported present by the batch's membership filter.
// The count is an upper bound on true matches: the filter may report a
// false positive at its configured rate but never a false negative.
func (t *Tracer) MatchesWithBatch(b batch.UnlinkableBatch) (int, error) {
	matches := 0
	for _, obs := range t.observationsPerDay {
		for _, o := range obs {
			if b.Filter.Lookup(o) {
				matches++
			}
		}
	}
	return matches, nil
}
