// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"sync"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
)

// =============================================================================
// EVENT BUFFER
// =============================================================================

// eventBuffer collects events from the stream goroutine until the UI loop
// drains them. All operations hold the mutex.
type eventBuffer struct {
	mu     sync.Mutex
	events []model.SessionEvent
	done   bool
	stats  sse.Stats
	err    error
}

func (b *eventBuffer) push(ev model.SessionEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *eventBuffer) finish(stats sse.Stats, err error) {
	b.mu.Lock()
	b.done = true
	b.stats = stats
	b.err = err
	b.mu.Unlock()
}

// drained is one batch handed to the UI loop.
type drained struct {
	events []model.SessionEvent
	done   bool
	stats  sse.Stats
	err    error
}

func (b *eventBuffer) drain() drained {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := drained{events: b.events, done: b.done, stats: b.stats, err: b.err}
	b.events = nil
	return d
}
