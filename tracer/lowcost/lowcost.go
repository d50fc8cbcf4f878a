// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package lowcost implements the low-cost DP-3T design: a single hash-chained
// day-key expanded into 96 EphIDs per day, with batch-granularity
// observation storage that coarsens to day-granularity once a batch
// containing it has been released.
package lowcost

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

var _ tracer.Tracer[batch.LowCostTracingInfo, batch.LowCostBatch] = (*Tracer)(nil)

// Tracer is the low-cost design's tracer. It is not safe for concurrent
// use by multiple goroutines; callers needing that wrap it in their own
// sync.Mutex.
type Tracer struct {
	currentDayKey [32]byte
	currentEphids [][16]byte
	pastKeys      [][32]byte
	observations  map[int64][][16]byte
	startOfToday  int64
	retentionDays int
}

// New creates a tracer with a fresh random day-key, rooted at the UTC day
// containing now, retaining dp3tconst.RetentionPeriod days of history.
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
	var key [32]byte
	raw, err := cryptoutil.RandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generating initial day key: %w", err)
	}
	copy(key[:], raw)

	ephids, err := ephid.GenerateEphidsForDay(key, true)
	if err != nil {
		return nil, fmt.Errorf("generating initial ephids: %w", err)
	}

	return &Tracer{
		currentDayKey: key,
		currentEphids: toSlice(ephids),
		observations:  make(map[int64][][16]byte),
		startOfToday:  epochtime.DayStart(now),
		retentionDays: retentionDays,
	}, nil
}

func toSlice(arr [][dp3tconst.LengthEphID]byte) [][16]byte {
	out := make([][16]byte, len(arr))
	copy(out, arr)
	return out
}

// CurrentDayEphids returns the EphIDs broadcast today.
func (t *Tracer) CurrentDayEphids() [][16]byte {
	return t.currentEphids
}

// GetEphidForTime returns the EphID valid at t.
func (t *Tracer) GetEphidForTime(tm time.Time) ([16]byte, error) {
	if epochtime.DayStart(tm) != t.startOfToday {
		return [16]byte{}, fmt.Errorf("%w: %v is not within today's window", dp3terr.ErrUnavailableEphID, tm)
	}
	epochOfDay := (tm.Unix() - t.startOfToday) / (dp3tconst.EpochLengthMinutes * 60)
	if epochOfDay < 0 || int(epochOfDay) >= len(t.currentEphids) {
		return [16]byte{}, fmt.Errorf("%w: %v falls outside today's epochs", dp3terr.ErrUnavailableEphID, tm)
	}
	return t.currentEphids[epochOfDay], nil
}

// AddObservation records a peer EphID seen at t, bucketed by the start of
// its 2-hour batch, then cryptographically reshuffles the bucket so
// storage order never leaks receive order.
func (t *Tracer) AddObservation(e [16]byte, tm time.Time) error {
	b := epochtime.BatchStart(tm)
	if b < t.startOfToday || b >= t.startOfToday+dp3tconst.SecondsPerDay {
		return fmt.Errorf("%w: %v falls outside today's window", dp3terr.ErrOutOfDayObservation, tm)
	}
	bucket := append(t.observations[b], e)
	if err := cryptoutil.SecureShuffle(bucket); err != nil {
		return fmt.Errorf("shuffling observation bucket: %w", err)
	}
	t.observations[b] = bucket
	return nil
}

// NextDay advances the tracer by one day: the current key is retired into
// pastKeys (bounded to retentionDays entries), a new day-key and EphID set
// are derived, and observations older than the retention window are
// dropped.
func (t *Tracer) NextDay() error {
	t.pastKeys = append([][32]byte{t.currentDayKey}, t.pastKeys...)
	if len(t.pastKeys) > t.retentionDays {
		t.pastKeys = t.pastKeys[:t.retentionDays]
	}

	nextKey := ephid.NextDayKey(t.currentDayKey)
	nextEphids, err := ephid.GenerateEphidsForDay(nextKey, true)
	if err != nil {
		return fmt.Errorf("generating next day's ephids: %w", err)
	}

	t.currentDayKey = nextKey
	t.currentEphids = toSlice(nextEphids)
	t.startOfToday += dp3tconst.SecondsPerDay

	cutoff := t.startOfToday - int64(t.retentionDays)*dp3tconst.SecondsPerDay
	dropped := 0
	for bucket := range t.observations {
		if bucket < cutoff {
			delete(t.observations, bucket)
			dropped++
		}
	}
	if dropped > 0 {
		slog.Debug("dropped observation buckets outside retention window", "count", dropped, "cutoff", cutoff)
	}
	return nil
}

// GetTracingInformation exports the day-key for the day containing first.
// last is accepted for interface parity with the unlinkable design but
// unused: a low-cost export is always exactly one day-key.
func (t *Tracer) GetTracingInformation(first time.Time, _ *time.Time) (batch.LowCostTracingInfo, error) {
	return t.getTracingInformation(first, false)
}

// GetTracingInformationReset behaves like GetTracingInformation but also
// atomically replaces the current key and EphIDs with fresh random
// material and clears past-key history, so nothing exported remains
// derivable from the tracer's future state (forward privacy on export).
func (t *Tracer) GetTracingInformationReset(first time.Time, _ *time.Time) (batch.LowCostTracingInfo, error) {
	return t.getTracingInformation(first, true)
}

func (t *Tracer) getTracingInformation(first time.Time, resetAfter bool) (batch.LowCostTracingInfo, error) {
	daysBack := (t.startOfToday - epochtime.DayStart(first)) / dp3tconst.SecondsPerDay
	if daysBack < 0 || int(daysBack) > len(t.pastKeys) {
		return batch.LowCostTracingInfo{}, fmt.Errorf("%w: %v is out of range", dp3terr.ErrUnavailableTracingKey, first)
	}

	var key [32]byte
	var startTime int64
	if daysBack == 0 {
		key = t.currentDayKey
		startTime = t.startOfToday
	} else {
		key = t.pastKeys[daysBack-1]
		startTime = t.startOfToday - daysBack*dp3tconst.SecondsPerDay
	}
	info := batch.LowCostTracingInfo{StartTime: startTime, Key: key}

	if resetAfter {
		raw, err := cryptoutil.RandomBytes(32)
		if err != nil {
			return batch.LowCostTracingInfo{}, fmt.Errorf("generating replacement day key: %w", err)
		}
		var newKey [32]byte
		copy(newKey[:], raw)
		newEphids, err := ephid.GenerateEphidsForDay(newKey, true)
		if err != nil {
			return batch.LowCostTracingInfo{}, fmt.Errorf("generating replacement ephids: %w", err)
		}
		t.currentDayKey = newKey
		t.currentEphids = toSlice(newEphids)
		t.pastKeys = nil
		slog.Debug("reset tracer key material after tracing export", "start_time", startTime)
	}

	return info, nil
}

// MatchesWithKey reconstructs the EphID sequence key would have produced
// each day from startTime through releaseTime and counts how many stored
// observations match one of them. Buckets at or after releaseTime are
// skipped: an EphID received after its key was released may be a replay,
// so it is never counted (replay protection).
func (t *Tracer) MatchesWithKey(key [32]byte, startTime, releaseTime int64) (int, error) {
	matches := 0
	day := startTime
	dayKey := key
	for day < releaseTime {
		ephids, err := ephid.GenerateEphidsForDay(dayKey, false)
		if err != nil {
			return 0, fmt.Errorf("reconstructing ephids for day %d: %w", day, err)
		}
		set := make(map[[16]byte]bool, len(ephids))
		for _, e := range ephids {
			set[e] = true
		}

		for bucketTime, bucket := range t.observations {
			if bucketTime >= releaseTime {
				continue
			}
			if epochtime.DayStart(time.Unix(bucketTime, 0).UTC()) != day {
				continue
			}
			for _, obs := range bucket {
				if set[obs] {
					matches++
				}
			}
		}

		day += dp3tconst.SecondsPerDay
		dayKey = ephid.NextDayKey(dayKey)
	}
	return matches, nil
}

// MatchesWithBatch sums MatchesWithKey over every entry in b.
func (t *Tracer) MatchesWithBatch(b batch.LowCostBatch) (int, error) {
	total := 0
	for _, entry := range b.Entries {
		n, err := t.MatchesWithKey(entry.Key, entry.StartTime, b.ReleaseTime)
		if err != nil {
			return 0, fmt.Errorf("matching entry starting %d: %w", entry.StartTime, err)
		}
		total += n
	}
	return total, nil
}

// HousekeepingAfterBatch coarsens every stored bucket older than the
// batch's release time from batch-granularity to day-granularity,
// concatenating and reshuffling bags that merge onto the same day. Batches
// must be processed in order of increasing release time.
func (t *Tracer) HousekeepingAfterBatch(b batch.LowCostBatch) error {
	for bucketTime, bucket := range t.observations {
		if bucketTime >= b.ReleaseTime {
			continue
		}
		if bucketTime%dp3tconst.SecondsPerDay == 0 {
			continue
		}
		dayStart := epochtime.DayStart(time.Unix(bucketTime, 0).UTC())
		merged := append(t.observations[dayStart], bucket...)
		if err := cryptoutil.SecureShuffle(merged); err != nil {
			return fmt.Errorf("reshuffling merged bucket for day %d: %w", dayStart, err)
		}
		t.observations[dayStart] = merged
		delete(t.observations, bucketTime)
	}
	return nil
}
