// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package devserver is an in-memory stand-in for the chat backend.
//
// It serves every endpoint of the versioned REST API with the standard
// {data, meta, errors} envelope, streams live session events and recorded
// replays over Server-Sent Events, and terminates streams with "data: [DONE]".
// The store is seeded with catalog entries and a few recorded histories so the
// CLI can be exercised without a real backend.
//
// Middleware:
//   - Request ID propagation (X-Request-ID, generated when absent)
//   - Request logging through zerolog
//   - Panic recovery returning an error envelope
//   - Optional bearer token check
//   - Optional request rate limit
package devserver
