// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the client for the chat backend's versioned REST API.
//
// Every endpoint is one method on Client. Responses use the
// {data, meta, errors} envelope; the client unwraps data into the
// caller's type and routes every failure through ProcessError so that
// the returned *Error carries a short description of what the caller
// was doing plus the underlying cause.
//
// Live session events and replays are Server-Sent Event streams consumed
// with package sse.
//
// The client never retries and never caches.
package api
