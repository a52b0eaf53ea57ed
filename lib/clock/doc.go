// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that wait with a deadline (the helper-process termination
// wait, for instance) take a Clock instead of calling time.After
// directly. Tests use [Fake], whose time moves only when Advance is
// called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go supervisor.Stop()    // registers a 5s deadline
//	c.WaitForTimers(1)      // wait until the deadline is registered
//	c.Advance(5 * time.Second)
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing past it.
package clock
