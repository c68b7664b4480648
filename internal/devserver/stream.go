// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jeranaias/sessionscope/internal/model"
)

// sseWriter writes Server-Sent Events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func startSSE(w http.ResponseWriter, r *http.Request) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, &apiError{http.StatusInternalServerError, errorDetail{Code: "internal", Message: "streaming not supported"}})
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) event(ev model.SessionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\nid: %s\ndata: %s\n\n", ev.Type, ev.ID, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) raw(line string) {
	fmt.Fprint(s.w, line)
	s.flusher.Flush()
}

func (s *sseWriter) done() {
	s.raw("data: [DONE]\n\n")
}

// ============================================================================
// LIVE SESSION STREAM
// ============================================================================

// handleSessionStream sends the session's backlog, then follows new events
// until the client goes away or the session is deleted.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.session(id); !ok {
		writeError(w, r, errNotFound("session", id))
		return
	}

	out, ok := startSSE(w, r)
	if !ok {
		return
	}
	if s.opts.StreamNoise {
		out.raw("data: {malformed\n\n")
	}

	ctx := r.Context()
	next := 0
	for {
		events, changed, alive := s.store.sessionEvents(id, next)
		if !alive {
			out.done()
			return
		}
		for _, ev := range events {
			if err := out.event(ev); err != nil {
				return
			}
		}
		next += len(events)

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

// ============================================================================
// REPLAY STREAM
// ============================================================================

// handleReplayStream plays a recorded history. Gaps between events follow the
// original timestamps, capped at ReplayMaxGap and divided by the replay speed.
// The stream waits while the replay is idle or paused, follows seeks, and
// ends with a replay status event and [DONE] once the replay finishes or
// stops.
func (s *Server) handleReplayStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.replayStatus(id); !ok {
		writeError(w, r, errNotFound("history", id))
		return
	}

	out, ok := startSSE(w, r)
	if !ok {
		return
	}
	if s.opts.StreamNoise {
		out.raw("data: {malformed\n\n")
	}

	ctx := r.Context()
	for {
		step, alive := s.store.nextReplayStep(id)
		if !alive {
			out.done()
			return
		}

		switch step.status.State {
		case model.ReplayFinished, model.ReplayStopped:
			if s.sendReplayStatus(out, id, step.status) {
				out.done()
			}
			return
		case model.ReplayPlaying:
		default:
			select {
			case <-ctx.Done():
				return
			case <-step.changed:
			}
			continue
		}

		if !step.hasNext {
			// Position is at the end; mark finished.
			s.store.advanceReplay(id, step.status.Position)
			continue
		}

		if delay := s.replayDelay(step.gap, step.status.Speed); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-step.changed:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		if !s.store.advanceReplay(id, step.status.Position) {
			continue
		}
		if err := out.event(step.event); err != nil {
			return
		}
	}
}

func (s *Server) replayDelay(gap time.Duration, speed float64) time.Duration {
	if gap > s.opts.ReplayMaxGap {
		gap = s.opts.ReplayMaxGap
	}
	if speed <= 0 {
		speed = 1
	}
	return time.Duration(float64(gap) / speed)
}

// sendReplayStatus writes the final replay event and reports whether it
// reached the client.
func (s *Server) sendReplayStatus(out *sseWriter, id string, status model.ReplayStatus) bool {
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Error().Err(err).Str("history", id).Msg("failed to encode replay status")
		return false
	}
	err = out.event(model.SessionEvent{
		ID:        id + "-replay",
		SessionID: id,
		Sequence:  int64(status.Position),
		Type:      model.EventReplay,
		Timestamp: time.Now().UTC(),
		Payload:   data,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("history", id).Str("state", string(status.State)).
			Msg("failed to send replay status")
		return false
	}
	return true
}
