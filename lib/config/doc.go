// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge configuration.
//
// Configuration comes from a single file named by the XWL_CONFIG
// environment variable ([Load]) or a --config flag ([LoadFile]). There
// is no ~/.config discovery and no per-field environment override;
// callers that run without a file use [Expanded] explicitly.
//
// YAML is the primary format. Files ending in .json or .jsonc are
// accepted too, with comments and trailing commas stripped first.
//
// ${VAR} and ${VAR:-default} are expanded in path fields after loading.
package config
