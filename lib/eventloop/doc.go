// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventloop provides the single event-processing context that
// owns all compositor-side state.
//
// Every mutation of loop-owned state happens inside a task executed by
// [Loop.Run]. Work that must block (reading from a pipe, waiting for a
// child process) runs on its own goroutine and hands its result back
// with [Loop.Post]; the result is then applied on the loop, so no
// loop-owned structure is ever touched from two goroutines.
//
// Dispatch hooks ([Loop.AddDispatchHook]) run each time the loop wakes
// and again right before it blocks. They give protocol connections a
// chance to drain events that arrived without a readiness signal, for
// example replies read into a library's internal queue while a
// synchronous request was in flight.
//
// A [Notifier] turns readiness signals from any goroutine into a single
// coalesced callback on the loop.
package eventloop
