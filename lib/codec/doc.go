// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration for on-disk state.
//
// The session state file written by the supervisor and read by
// `xwl-bridge status` is CBOR. Types encoded here use `cbor` struct
// tags; they are never serialized as JSON.
//
//	data, err := codec.Marshal(state)
//	err = codec.Unmarshal(data, &state)
package codec
