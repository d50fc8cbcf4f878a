// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package dp3terr defines the sentinel errors surfaced by every DP-3T
// component. Callers should use errors.Is against these sentinels rather
// than string-matching error messages; an error reporting one of these
// conditions wraps the sentinel with additional context via
// fmt.Errorf("%w: ...", ...). Errors from configuration loading and from
// a MembershipFilter implementation do not wrap a sentinel.
package dp3terr

import "errors"

var (
	// ErrUnavailableEphID is returned when the requested time falls outside
	// the tracer's current day (or, for the unlinkable design, when no EphID
	// was generated for the requested epoch).
	ErrUnavailableEphID = errors.New("dp3t: ephid not available for requested time")

	// ErrOutOfDayObservation is returned when an observation's time does not
	// fall within the tracer's current day window.
	ErrOutOfDayObservation = errors.New("dp3t: observation time outside current day")

	// ErrUnavailableTracingKey is returned when a requested tracing range
	// crosses outside the keys/seeds the tracer still retains.
	ErrUnavailableTracingKey = errors.New("dp3t: requested tracing key/seed not available")

	// ErrInvalidRange is returned when a last-contagious time precedes the
	// first-contagious time (unlinkable design only).
	ErrInvalidRange = errors.New("dp3t: last contagious time precedes first contagious time")

	// ErrNotBatchAligned is returned when a low-cost batch is constructed
	// with a release time that is not a multiple of SecondsPerBatch.
	ErrNotBatchAligned = errors.New("dp3t: release time is not batch-aligned")

	// ErrCryptoUnavailable is returned when the OS CSPRNG or a crypto
	// primitive could not be used. Any tracer that observes this error
	// should be considered unusable.
	ErrCryptoUnavailable = errors.New("dp3t: cryptographic primitive unavailable")
)
