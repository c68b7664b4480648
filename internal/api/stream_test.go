// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
)

func TestStreamSessionEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/s1/events", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		// Split one event across two writes to exercise partial-line handling.
		fmt.Fprint(w, `data: {"session_id":"s1","sequence":1,"type":"message_delta","payload":{"content":"Hel`)
		flusher.Flush()
		fmt.Fprint(w, `lo"}}`+"\n\n")
		fmt.Fprint(w, "data: {broken\n\n")
		fmt.Fprint(w, "event: status\nid: ev-2\n")
		fmt.Fprint(w, `data: {"session_id":"s1","sequence":2,"payload":{"status":"idle"}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	})

	var events []model.SessionEvent
	stats, err := c.StreamSessionEvents(context.Background(), "s1", func(ev model.SessionEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 2)

	d, ok := events[0].Delta()
	require.True(t, ok)
	assert.Equal(t, "Hello", d.Content)

	// The SSE event name fills a missing type, the SSE id a missing id.
	assert.Equal(t, model.EventStatus, events[1].Type)
	assert.Equal(t, "ev-2", events[1].ID)
	s, ok := events[1].Status()
	require.True(t, ok)
	assert.Equal(t, "idle", s.Status)

	assert.Equal(t, 1, stats.Skipped)
	assert.True(t, stats.Done)
}

func TestStream_MisshapenEventsCountAsSkipped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"session_id":"s1","sequence":1,"type":"status","payload":{"status":"idle"}}`+"\n\n")
		fmt.Fprint(w, `data: {"session_id":"s1","sequence":"two"}`+"\n\n")
		fmt.Fprint(w, "data: not json\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	delivered := 0
	stats, err := c.StreamSessionEvents(context.Background(), "s1", func(model.SessionEvent) error {
		delivered++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, stats.Events)
	assert.Equal(t, 2, stats.Skipped)
}

func TestStreamReplay_HandlerStop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/replay/h1/stream", r.URL.Path)
		for i := 1; i <= 5; i++ {
			fmt.Fprintf(w, `data: {"sequence":%d,"type":"message"}`+"\n\n", i)
		}
	})

	var seen []int64
	_, err := c.StreamReplay(context.Background(), "h1", func(ev model.SessionEvent) error {
		seen = append(seen, ev.Sequence)
		if ev.Sequence == 3 {
			return sse.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, seen)
}

func TestStream_CancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"sequence":1,"type":"message"}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	count := 0
	_, err := c.StreamSessionEvents(ctx, "s1", func(model.SessionEvent) error {
		count++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.Equal(t, 1, count)
}

func TestStream_NoTotalTimeout(t *testing.T) {
	server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"sequence":1}`+"\n\n")
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		fmt.Fprint(w, `data: {"sequence":2}`+"\n\n")
	})
	c := NewClientWithConfig(&ClientConfig{BaseURL: server.Config().BaseURL, Timeout: 50 * time.Millisecond})

	count := 0
	_, err := c.StreamReplay(context.Background(), "h1", func(model.SessionEvent) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
