// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for xwl-bridge.
//
// Four variables are injected at build time via -ldflags -X, for
// example:
//
//	go build -ldflags "-X github.com/bureau-foundation/xwl/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// They default to "unknown" / "0.1.0-dev" in development builds and
// test runs.
package version
