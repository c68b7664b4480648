// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sse consumes Server-Sent Event streams.
//
// The stream body is read in fixed-size chunks. A LineBuffer splits the
// chunks on newlines and keeps the trailing partial line until the next
// chunk completes it, so a JSON payload split across reads is decoded
// exactly once. Each "data:" line is decoded as JSON and handed to a
// Handler; lines that fail to decode are logged and skipped without
// ending the stream. A "data: [DONE]" line, the end of the body, a
// handler returning ErrStop, or cancellation of the context ends
// consumption.
package sse
