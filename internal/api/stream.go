// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
)

// EventHandler receives each session event of a stream. Returning
// sse.ErrStop ends the stream cleanly.
type EventHandler func(model.SessionEvent) error

// StreamSessionEvents follows a live session until the backend closes the
// stream, handler stops it, or ctx is cancelled.
func (c *Client) StreamSessionEvents(ctx context.Context, id string, handler EventHandler) (sse.Stats, error) {
	seg, err := segment(id)
	if err != nil {
		return sse.Stats{}, ProcessError(err, "failed to open session stream")
	}
	return c.stream(ctx, "/sessions/"+seg+"/events", handler, "session stream "+id)
}

// StreamReplay follows the playback of a recorded session.
func (c *Client) StreamReplay(ctx context.Context, id string, handler EventHandler) (sse.Stats, error) {
	seg, err := segment(id)
	if err != nil {
		return sse.Stats{}, ProcessError(err, "failed to open replay stream")
	}
	return c.stream(ctx, "/replay/"+seg+"/stream", handler, "replay stream "+id)
}

func (c *Client) stream(ctx context.Context, path string, handler EventHandler, what string) (sse.Stats, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return sse.Stats{}, ProcessError(err, "failed to open "+what)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return sse.Stats{}, ProcessError(
			&Error{Kind: classify(err), RequestID: req.Header.Get(headerRequestID), Cause: err},
			"failed to open "+what)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, err := unwrap(resp, nil)
		return sse.Stats{}, ProcessError(err, "failed to open "+what)
	}

	logger := c.logger.With().Str("stream", path).Logger()
	logger.Debug().Str("request_id", req.Header.Get(headerRequestID)).Msg("stream opened")

	// sse counts every valid JSON line as delivered; events that do not
	// decode as a SessionEvent are moved to Skipped afterwards.
	misshapen := 0
	stats, err := sse.Consume(ctx, resp.Body, func(e sse.Event) error {
		var ev model.SessionEvent
		if err := e.Decode(&ev); err != nil {
			logger.Warn().Err(err).Int("line", e.Line).Msg("skipping event with unexpected shape")
			misshapen++
			return nil
		}
		if ev.Type == "" && e.Name != "" {
			ev.Type = model.EventType(e.Name)
		}
		if ev.ID == "" {
			ev.ID = e.ID
		}
		return handler(ev)
	}, sse.WithLogger(logger))
	stats.Events -= misshapen
	stats.Skipped += misshapen

	logger.Debug().
		Int("events", stats.Events).
		Int("skipped", stats.Skipped).
		Int64("bytes", stats.Bytes).
		Bool("done", stats.Done).
		Msg("stream closed")

	if err != nil {
		return stats, ProcessError(err, what+" interrupted")
	}
	return stats, nil
}
