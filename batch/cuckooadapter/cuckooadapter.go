// SPDX-FileCopyrightText: (C) 2020 EPFL
// SPDX-License-Identifier: Apache-2.0

// Package cuckooadapter wraps github.com/seiflotfy/cuckoofilter behind the
// batch.MembershipFilter contract, giving tests and examples a concrete
// default without the module mandating a specific wire format.
package cuckooadapter

import (
	"fmt"

	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/DP-3T/reference-implementation/batch"
)

// Filter adapts a cuckoo.Filter to batch.MembershipFilter. The underlying
// library does not expose a configurable false-positive rate (its
// fingerprint width is fixed), so fpr is accepted for contract compliance
// and ignored; the achieved rate is whatever the library's fixed
// fingerprint width gives.
type Filter struct {
	filter *cuckoo.Filter
}

var _ batch.MembershipFilter = (*Filter)(nil)

// New returns a Filter sized for capacity items.
func New(capacity int) *Filter {
	return &Filter{filter: cuckoo.NewFilter(uint(capacity))}
}

// Reset discards the current contents and resizes to hold capacity items.
func (f *Filter) Reset(capacity int, _ float64) error {
	if capacity < 1 {
		return fmt.Errorf("cuckooadapter: capacity must be positive, got %d", capacity)
	}
	f.filter = cuckoo.NewFilter(uint(capacity))
	return nil
}

// Insert adds item to the filter. Returns an error if the filter is full.
func (f *Filter) Insert(item [32]byte) error {
	if !f.filter.InsertUnique(item[:]) {
		return fmt.Errorf("cuckooadapter: filter is at capacity (count=%d)", f.filter.Count())
	}
	return nil
}

// Lookup reports whether item may be a member.
func (f *Filter) Lookup(item [32]byte) bool {
	return f.filter.Lookup(item[:])
}
