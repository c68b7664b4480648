// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch is the full-screen view behind `session watch` and
// `replay follow`.
//
// The stream runs in its own goroutine and appends events to an eventBuffer.
// The Bubble Tea loop drains the buffer on a fixed tick, so a burst of deltas
// costs one re-render instead of one per event.
//
// Keys:
//
//	q        quit
//	e        toggle conversation / event log
//	up/down  select event (log) or scroll
//	c        copy the selected event JSON, or the last message
//	f        toggle follow mode
//	space    pause / resume a replay
//	[ ]      seek a replay 10 events back / forward
//	0        seek a replay to the start
//	+ -      double / halve replay speed
package watch
