// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fd provides owned file descriptors with explicit transfer
// semantics.
//
// An [Owned] wraps one raw descriptor. Exactly one party is responsible
// for closing it at any time: the Owned itself until [Owned.File]
// transfers the descriptor into an *os.File, after which the Owned is
// empty and every further transfer fails with [ErrConsumed]. Close is
// idempotent, so cleanup paths can close unconditionally without
// tracking whether a handoff already happened.
//
// [Pipe] and [Socketpair] create close-on-exec pairs. Descriptors that
// must survive into a child process are passed through
// exec.Cmd.ExtraFiles ([ExtraFile] returns the number the child sees),
// which clears close-on-exec on the child's copy only.
package fd
