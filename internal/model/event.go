// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of a SessionEvent payload.
type EventType string

const (
	EventMessage      EventType = "message"
	EventMessageDelta EventType = "message_delta"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventStatus       EventType = "status"
	EventError        EventType = "error"
	EventReplay       EventType = "replay"
)

// SessionEvent is one entry of a session's event log. The same shape is
// delivered by the history events endpoint and by the live/replay streams.
type SessionEvent struct {
	ID        string          `json:"id,omitempty"`
	SessionID string          `json:"session_id"`
	Sequence  int64           `json:"sequence"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Delta is the payload of a message_delta event.
type Delta struct {
	MessageID string `json:"message_id"`
	Role      Role   `json:"role,omitempty"`
	Content   string `json:"content"`
}

// StatusPayload is the payload of status and error events.
type StatusPayload struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Message decodes the payload of a message event.
func (e *SessionEvent) Message() (Message, bool) {
	var m Message
	if e.Type != EventMessage || !decodePayload(e.Payload, &m) {
		return Message{}, false
	}
	return m, true
}

// Delta decodes the payload of a message_delta event.
func (e *SessionEvent) Delta() (Delta, bool) {
	var d Delta
	if e.Type != EventMessageDelta || !decodePayload(e.Payload, &d) {
		return Delta{}, false
	}
	return d, true
}

// ToolCall decodes the payload of a tool_call or tool_result event.
func (e *SessionEvent) ToolCall() (ToolCall, bool) {
	var tc ToolCall
	if e.Type != EventToolCall && e.Type != EventToolResult {
		return ToolCall{}, false
	}
	if !decodePayload(e.Payload, &tc) {
		return ToolCall{}, false
	}
	return tc, true
}

// Status decodes the payload of a status or error event.
func (e *SessionEvent) Status() (StatusPayload, bool) {
	var s StatusPayload
	if e.Type != EventStatus && e.Type != EventError {
		return StatusPayload{}, false
	}
	if !decodePayload(e.Payload, &s) {
		return StatusPayload{}, false
	}
	return s, true
}

// Replay decodes the payload of a replay event.
func (e *SessionEvent) Replay() (ReplayStatus, bool) {
	var r ReplayStatus
	if e.Type != EventReplay || !decodePayload(e.Payload, &r) {
		return ReplayStatus{}, false
	}
	return r, true
}

// IsTerminal reports whether the event ends a stream from the backend's
// point of view (error, or a replay that finished or stopped).
func (e *SessionEvent) IsTerminal() bool {
	if e.Type == EventError {
		return true
	}
	if r, ok := e.Replay(); ok {
		return r.State == ReplayFinished || r.State == ReplayStopped
	}
	return false
}

// Summary is a one-line description of the event, at most maxLen runes
// of payload text.
func (e *SessionEvent) Summary(maxLen int) string {
	if d, ok := e.Delta(); ok {
		return preview(d.Content, maxLen)
	}
	if m, ok := e.Message(); ok {
		return m.Role.DisplayName() + ": " + m.Preview(maxLen-10)
	}
	if tc, ok := e.ToolCall(); ok {
		if tc.Result != "" {
			return tc.Name + " -> " + preview(tc.Result, maxLen-20)
		}
		return tc.Name
	}
	if s, ok := e.Status(); ok {
		if s.Message != "" {
			return s.Status + ": " + s.Message
		}
		return s.Status
	}
	if r, ok := e.Replay(); ok {
		return fmt.Sprintf("%s %d/%d", r.State, r.Position, r.TotalEvents)
	}
	return preview(string(e.Payload), maxLen)
}

func decodePayload(raw json.RawMessage, out interface{}) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}
