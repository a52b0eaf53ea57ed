// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package x11

import "github.com/jezek/xgb"

// EventFilter inspects an X11 event and reports whether it consumed it.
type EventFilter interface {
	FilterEvent(event xgb.Event) bool
}

// EventFilterFunc adapts a function to EventFilter.
type EventFilterFunc func(event xgb.Event) bool

func (f EventFilterFunc) FilterEvent(event xgb.Event) bool { return f(event) }

// FilterChain dispatches events to installed filters, most recently
// installed first, stopping at the first filter that consumes the
// event. Loop-confined.
type FilterChain struct {
	filters []*filterEntry
}

type filterEntry struct {
	filter    EventFilter
	installed bool
}

// Install adds filter to the front of the chain and returns a function
// that removes it. Removing twice is harmless.
func (c *FilterChain) Install(filter EventFilter) (remove func()) {
	entry := &filterEntry{filter: filter, installed: true}
	c.filters = append([]*filterEntry{entry}, c.filters...)
	return func() {
		if !entry.installed {
			return
		}
		entry.installed = false
		remaining := c.filters[:0]
		for _, existing := range c.filters {
			if existing != entry {
				remaining = append(remaining, existing)
			}
		}
		c.filters = remaining
	}
}

// Dispatch offers event to the chain. Returns true if a filter
// consumed it.
func (c *FilterChain) Dispatch(event xgb.Event) bool {
	snapshot := make([]*filterEntry, len(c.filters))
	copy(snapshot, c.filters)
	for _, entry := range snapshot {
		if entry.installed && entry.filter.FilterEvent(event) {
			return true
		}
	}
	return false
}

// Len returns the number of installed filters.
func (c *FilterChain) Len() int { return len(c.filters) }
