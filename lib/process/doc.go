// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error reporter.
//
// [Fatal] is the one place outside CLI output that writes directly to
// stderr: it runs after run() has returned, when the structured logger
// may never have been configured.
package process
