// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package conformance exercises the properties both tracer designs must
// satisfy identically, since callers switch between them behind the
// shared tracer.Tracer contract.
package conformance

import (
	"testing"
	"time"

	"github.com/DP-3T/reference-implementation/batch"
	"github.com/DP-3T/reference-implementation/batch/cuckooadapter"
	"github.com/DP-3T/reference-implementation/dp3tconfig"
	"github.com/DP-3T/reference-implementation/dp3tconst"
	"github.com/DP-3T/reference-implementation/dp3tlog"
	"github.com/DP-3T/reference-implementation/tracer"
	"github.com/DP-3T/reference-implementation/tracer/lowcost"
	"github.com/DP-3T/reference-implementation/tracer/unlinkable"
)

func init() {
	dp3tlog.Configure(true)
}

var startTime = time.Date(2020, 4, 25, 15, 17, 0, 0, time.UTC)

// design bundles everything the generic property tests need to drive one
// tracer design without caring about its associated TracingInfo/Batch
// types.
type design[TI any, B any] struct {
	name       string
	newTracer  func(now time.Time) (tracer.Tracer[TI, B], error)
	buildBatch func(infos []TI, releaseTime int64) (B, error)
}

// loadConfig exercises dp3tconfig.Load the way a host application would,
// rather than reaching for dp3tconst's hardcoded defaults directly.
func loadConfig(t *testing.T) dp3tconfig.Config {
	t.Helper()
	cfg, err := dp3tconfig.Load("")
	if err != nil {
		t.Fatalf("dp3tconfig.Load: %v", err)
	}
	return cfg
}

func lowCostDesign(t *testing.T) design[batch.LowCostTracingInfo, batch.LowCostBatch] {
	cfg := loadConfig(t)
	return design[batch.LowCostTracingInfo, batch.LowCostBatch]{
		name: "lowcost",
		newTracer: func(now time.Time) (tracer.Tracer[batch.LowCostTracingInfo, batch.LowCostBatch], error) {
			return lowcost.NewWithConfig(now, cfg)
		},
		buildBatch: func(infos []batch.LowCostTracingInfo, releaseTime int64) (batch.LowCostBatch, error) {
			return batch.NewLowCostBatch(infos, releaseTime)
		},
	}
}

func unlinkableDesign(t *testing.T) design[batch.UnlinkableTracingInfo, batch.UnlinkableBatch] {
	cfg := loadConfig(t)
	return design[batch.UnlinkableTracingInfo, batch.UnlinkableBatch]{
		name: "unlinkable",
		newTracer: func(now time.Time) (tracer.Tracer[batch.UnlinkableTracingInfo, batch.UnlinkableBatch], error) {
			return unlinkable.NewWithConfig(now, cfg)
		},
		buildBatch: func(infos []batch.UnlinkableTracingInfo, releaseTime int64) (batch.UnlinkableBatch, error) {
			itemCount := 0
			for _, info := range infos {
				itemCount += len(info.Seeds)
			}
			if itemCount < 1 {
				itemCount = 1
			}
			var rt *int64
			if releaseTime != 0 {
				rt = &releaseTime
			}
			return batch.NewUnlinkableBatch(infos, rt, cuckooadapter.New(itemCount), cfg.FilterHeadroom, cfg.FilterFPR)
		},
	}
}

// getTracingInfo requests an export from first through the last second of
// first's UTC day, a range every caller below still holds material for
// (lowcost ignores the end time entirely).
func getTracingInfo[TI any, B any](t *testing.T, tr tracer.Tracer[TI, B], first time.Time) TI {
	t.Helper()
	last := time.Unix(dayAlignedRelease(first, 1)-1, 0).UTC()
	info, err := tr.GetTracingInformation(first, &last)
	if err != nil {
		t.Fatalf("GetTracingInformation: %v", err)
	}
	return info
}

func advanceDays[TI any, B any](t *testing.T, tr tracer.Tracer[TI, B], n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := tr.NextDay(); err != nil {
			t.Fatalf("NextDay: %v", err)
		}
	}
}

func dayAlignedRelease(t time.Time, daysFromNow int) int64 {
	dayStart := t.Unix() / dp3tconst.SecondsPerDay * dp3tconst.SecondsPerDay
	return dayStart + int64(daysFromNow)*dp3tconst.SecondsPerDay
}

func runSingleObservation[TI any, B any](t *testing.T, d design[TI, B]) {
	alice, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(alice): %v", err)
	}
	bob, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(bob): %v", err)
	}

	interactionTime := startTime.Add(20 * time.Minute)
	ephidAlice, err := alice.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(alice): %v", err)
	}
	ephidBob, err := bob.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(bob): %v", err)
	}
	if err := alice.AddObservation(ephidBob, interactionTime); err != nil {
		t.Fatalf("AddObservation(alice): %v", err)
	}
	if err := bob.AddObservation(ephidAlice, interactionTime); err != nil {
		t.Fatalf("AddObservation(bob): %v", err)
	}

	advanceDays(t, alice, 4)
	advanceDays(t, bob, 4)

	tracingInfoBob := getTracingInfo(t, bob, startTime)
	releaseTime := dayAlignedRelease(startTime, 4)
	b, err := d.buildBatch([]TI{tracingInfoBob}, releaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}

	n, err := alice.MatchesWithBatch(b)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 1 {
		t.Errorf("[%s] matches = %d, want 1", d.name, n)
	}
}

func TestSingleObservation(t *testing.T) {
	t.Run("lowcost", func(t *testing.T) { runSingleObservation(t, lowCostDesign(t)) })
	t.Run("unlinkable", func(t *testing.T) { runSingleObservation(t, unlinkableDesign(t)) })
}

func runMultipleObservations[TI any, B any](t *testing.T, d design[TI, B]) {
	alice, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(alice): %v", err)
	}
	bob, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(bob): %v", err)
	}

	for _, mins := range []int{20, 100, 240} {
		it := startTime.Add(time.Duration(mins) * time.Minute)
		ephidAlice, err := alice.GetEphidForTime(it)
		if err != nil {
			t.Fatalf("GetEphidForTime(alice): %v", err)
		}
		ephidBob, err := bob.GetEphidForTime(it)
		if err != nil {
			t.Fatalf("GetEphidForTime(bob): %v", err)
		}
		if err := alice.AddObservation(ephidBob, it); err != nil {
			t.Fatalf("AddObservation(alice): %v", err)
		}
		if err := bob.AddObservation(ephidAlice, it); err != nil {
			t.Fatalf("AddObservation(bob): %v", err)
		}
	}

	advanceDays(t, alice, 4)
	advanceDays(t, bob, 4)

	tracingInfoBob := getTracingInfo(t, bob, startTime)
	releaseTime := dayAlignedRelease(startTime, 4)
	b, err := d.buildBatch([]TI{tracingInfoBob}, releaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}

	n, err := alice.MatchesWithBatch(b)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 3 {
		t.Errorf("[%s] matches = %d, want 3", d.name, n)
	}
}

func TestMultipleObservations(t *testing.T) {
	t.Run("lowcost", func(t *testing.T) { runMultipleObservations(t, lowCostDesign(t)) })
	t.Run("unlinkable", func(t *testing.T) { runMultipleObservations(t, unlinkableDesign(t)) })
}

func runContactBeforeContagious[TI any, B any](t *testing.T, d design[TI, B]) {
	alice, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(alice): %v", err)
	}
	bob, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(bob): %v", err)
	}

	interactionTime := startTime.Add(20 * time.Minute)
	ephidAlice, err := alice.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(alice): %v", err)
	}
	ephidBob, err := bob.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(bob): %v", err)
	}
	if err := alice.AddObservation(ephidBob, interactionTime); err != nil {
		t.Fatalf("AddObservation(alice): %v", err)
	}
	if err := bob.AddObservation(ephidAlice, interactionTime); err != nil {
		t.Fatalf("AddObservation(bob): %v", err)
	}

	advanceDays(t, alice, 4)
	advanceDays(t, bob, 4)

	startOfBeingContagious := startTime.Add(24 * time.Hour)
	tracingInfoBob := getTracingInfo(t, bob, startOfBeingContagious)
	releaseTime := dayAlignedRelease(startTime, 4)
	b, err := d.buildBatch([]TI{tracingInfoBob}, releaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}

	n, err := alice.MatchesWithBatch(b)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 0 {
		t.Errorf("[%s] matches = %d, want 0 (contact predates the contagious window)", d.name, n)
	}
}

func TestContactBeforeContagious(t *testing.T) {
	t.Run("lowcost", func(t *testing.T) { runContactBeforeContagious(t, lowCostDesign(t)) })
	t.Run("unlinkable", func(t *testing.T) { runContactBeforeContagious(t, unlinkableDesign(t)) })
}

func runNoReplayAfterRelease[TI any, B any](t *testing.T, d design[TI, B]) {
	alice, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(alice): %v", err)
	}
	bob, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(bob): %v", err)
	}

	transmitTime := startTime.Add(20 * time.Minute)
	ephidBob, err := bob.GetEphidForTime(transmitTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(bob): %v", err)
	}

	tracingInfoBob := getTracingInfo(t, bob, startTime)
	releaseTime := (transmitTime.Unix()/dp3tconst.SecondsPerBatch + 1) * dp3tconst.SecondsPerBatch
	b, err := d.buildBatch([]TI{tracingInfoBob}, releaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}

	receiveTime := time.Unix(releaseTime, 0).UTC().Add(7 * time.Minute)
	if err := alice.AddObservation(ephidBob, receiveTime); err != nil {
		t.Fatalf("AddObservation: %v", err)
	}

	n, err := alice.MatchesWithBatch(b)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 0 {
		t.Errorf("[%s] matches for a replayed ephid observed after release = %d, want 0", d.name, n)
	}
}

func TestNoReplayAfterRelease(t *testing.T) {
	t.Run("lowcost", func(t *testing.T) { runNoReplayAfterRelease(t, lowCostDesign(t)) })
	t.Run("unlinkable", func(t *testing.T) { runNoReplayAfterRelease(t, unlinkableDesign(t)) })
}

func runNoContactOutsideRetentionWindow[TI any, B any](t *testing.T, d design[TI, B]) {
	alice, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(alice): %v", err)
	}
	bob, err := d.newTracer(startTime)
	if err != nil {
		t.Fatalf("newTracer(bob): %v", err)
	}
	advanceDays(t, alice, 1)
	advanceDays(t, bob, 1)

	interactionTime := startTime.Add(24*time.Hour + 20*time.Minute)
	ephidAlice, err := alice.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(alice): %v", err)
	}
	ephidBob, err := bob.GetEphidForTime(interactionTime)
	if err != nil {
		t.Fatalf("GetEphidForTime(bob): %v", err)
	}
	if err := alice.AddObservation(ephidBob, interactionTime); err != nil {
		t.Fatalf("AddObservation(alice): %v", err)
	}
	if err := bob.AddObservation(ephidAlice, interactionTime); err != nil {
		t.Fatalf("AddObservation(bob): %v", err)
	}

	// Capture Bob's tracing info for today now, while it is still available.
	startOfToday := dayAlignedRelease(startTime, 1)
	tracingInfoBob := getTracingInfo(t, bob, time.Unix(startOfToday, 0).UTC())

	releaseTime := startOfToday + dp3tconst.SecondsPerDay
	b, err := d.buildBatch([]TI{tracingInfoBob}, releaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}
	n, err := alice.MatchesWithBatch(b)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("[%s] matches right after the interaction = %d, want 1", d.name, n)
	}

	// Advance well beyond the retention window; Alice's own observation
	// store ages the interaction out even though the batch below still
	// carries the same tracing info.
	advanceDays(t, alice, dp3tconst.RetentionPeriod+1)
	advanceDays(t, bob, dp3tconst.RetentionPeriod+1)

	lateReleaseTime := releaseTime + int64(dp3tconst.RetentionPeriod+1)*dp3tconst.SecondsPerDay
	lateBatch, err := d.buildBatch([]TI{tracingInfoBob}, lateReleaseTime)
	if err != nil {
		t.Fatalf("buildBatch: %v", err)
	}

	n, err = alice.MatchesWithBatch(lateBatch)
	if err != nil {
		t.Fatalf("MatchesWithBatch: %v", err)
	}
	if n != 0 {
		t.Errorf("[%s] matches after the retention window = %d, want 0", d.name, n)
	}
}

func TestNoContactOutsideRetentionWindow(t *testing.T) {
	t.Run("lowcost", func(t *testing.T) { runNoContactOutsideRetentionWindow(t, lowCostDesign(t)) })
	t.Run("unlinkable", func(t *testing.T) { runNoContactOutsideRetentionWindow(t, unlinkableDesign(t)) })
}
