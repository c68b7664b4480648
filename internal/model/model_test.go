// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "User", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "Unknown", Role("").DisplayName())
	assert.Equal(t, "moderator", Role("moderator").DisplayName())
	assert.False(t, Role("moderator").IsValid())
	assert.True(t, RoleTool.IsValid())
}

func TestMessage_Preview(t *testing.T) {
	m := &Message{Content: "hello\n\n  world   again"}
	assert.Equal(t, "hello world again", m.Preview(100))
	assert.Equal(t, "hello...", m.Preview(8))
	assert.Equal(t, "he", m.Preview(2))
	assert.Equal(t, "", m.Preview(0))

	// Truncation counts runes, not bytes.
	m = &Message{Content: "héllo wörld"}
	assert.Equal(t, "héllo...", m.Preview(8))
}

func TestMessage_DecodesToolCalls(t *testing.T) {
	raw := `{"id":"m1","role":"assistant","content":"ok","tool_calls":[
		{"id":"t1","name":"search","arguments":{"q":"go"},"status":"succeeded"}]}`

	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	require.True(t, m.HasToolCalls())
	assert.Equal(t, "search", m.ToolCalls[0].Name)
	assert.JSONEq(t, `{"q":"go"}`, string(m.ToolCalls[0].Arguments))
	assert.True(t, m.ToolCalls[0].IsDone())
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestModel_ContextString(t *testing.T) {
	tests := []struct {
		window int
		want   string
	}{
		{0, "-"},
		{512, "512"},
		{8192, "8K"},
		{128000, "128K"},
		{1000000, "1M"},
		{2000000, "2M"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Model{ContextWindow: tt.window}.ContextString(), "window %d", tt.window)
	}
}

func TestSystemConfig_Features(t *testing.T) {
	var nilCfg *SystemConfig
	assert.False(t, nilCfg.FeatureEnabled("replay"))
	assert.Nil(t, nilCfg.EnabledFeatures())

	cfg := &SystemConfig{Features: map[string]bool{"replay": true, "tools": true, "voice": false}}
	assert.True(t, cfg.FeatureEnabled("replay"))
	assert.False(t, cfg.FeatureEnabled("voice"))
	assert.Equal(t, []string{"replay", "tools"}, cfg.EnabledFeatures())
}

func TestPersonaLookup(t *testing.T) {
	personas := []Persona{
		{ID: "p1", Name: "Coder"},
		{ID: "p2", Name: "Writer", Default: true},
	}

	p, ok := FindPersona(personas, "coder")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)

	_, ok = FindPersona(personas, "nobody")
	assert.False(t, ok)

	p, ok = DefaultPersona(personas)
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	p, ok = DefaultPersona(personas[:1])
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)

	_, ok = DefaultPersona(nil)
	assert.False(t, ok)
}

func TestHealth_OK(t *testing.T) {
	assert.True(t, Health{Status: "ok"}.OK())
	assert.True(t, Health{Status: "Healthy"}.OK())
	assert.False(t, Health{Status: "degraded"}.OK())
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestHistorySummary_Duration(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	h := &HistorySummary{StartedAt: start, EndedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, h.Duration())

	h = &HistorySummary{StartedAt: start}
	assert.Zero(t, h.Duration())

	h = &HistorySummary{StartedAt: start, EndedAt: start.Add(-time.Minute)}
	assert.Zero(t, h.Duration())
}

func TestHistoryDetail_DecodesEmbeddedSummary(t *testing.T) {
	raw := `{"id":"h-123456789","title":"","message_count":2,"messages":[
		{"id":"m1","role":"system","content":"be brief"},
		{"id":"m2","role":"user","content":"hi"}]}`

	var d HistoryDetail
	require.NoError(t, json.Unmarshal([]byte(raw), &d))
	assert.Equal(t, "h-123456789", d.ID)
	assert.Equal(t, "History h-123456", d.DisplayTitle())

	first, ok := d.FirstUserMessage()
	require.True(t, ok)
	assert.Equal(t, "m2", first.ID)
}

func TestPage(t *testing.T) {
	assert.True(t, Page{Limit: 10, Offset: 0, Total: 25}.HasMore())
	assert.False(t, Page{Limit: 10, Offset: 20, Total: 25}.HasMore())
	assert.False(t, Page{Limit: 0, Offset: 0, Total: 25}.HasMore())
	assert.Equal(t, 30, Page{Limit: 10, Offset: 20}.NextOffset())
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestSessionEvent_Accessors(t *testing.T) {
	msg := SessionEvent{Type: EventMessage, Payload: json.RawMessage(`{"id":"m1","role":"user","content":"hi"}`)}
	m, ok := msg.Message()
	require.True(t, ok)
	assert.Equal(t, "hi", m.Content)

	_, ok = msg.ToolCall()
	assert.False(t, ok, "message event must not decode as tool call")

	delta := SessionEvent{Type: EventMessageDelta, Payload: json.RawMessage(`{"message_id":"m2","content":"wor"}`)}
	d, ok := delta.Delta()
	require.True(t, ok)
	assert.Equal(t, "wor", d.Content)

	result := SessionEvent{Type: EventToolResult, Payload: json.RawMessage(`{"id":"t1","name":"search","result":"3 hits","status":"succeeded"}`)}
	tc, ok := result.ToolCall()
	require.True(t, ok)
	assert.Equal(t, "3 hits", tc.Result)

	errEvent := SessionEvent{Type: EventError, Payload: json.RawMessage(`{"message":"model overloaded","code":"busy"}`)}
	s, ok := errEvent.Status()
	require.True(t, ok)
	assert.Equal(t, "busy", s.Code)
	assert.True(t, errEvent.IsTerminal())
}

func TestSessionEvent_BadPayload(t *testing.T) {
	e := SessionEvent{Type: EventMessage, Payload: json.RawMessage(`{not json`)}
	_, ok := e.Message()
	assert.False(t, ok)

	e = SessionEvent{Type: EventStatus}
	_, ok = e.Status()
	assert.False(t, ok)
}

func TestSessionEvent_ReplayTerminal(t *testing.T) {
	playing := SessionEvent{Type: EventReplay, Payload: json.RawMessage(`{"state":"playing","position":3,"total_events":10}`)}
	assert.False(t, playing.IsTerminal())

	done := SessionEvent{Type: EventReplay, Payload: json.RawMessage(`{"state":"finished","position":10,"total_events":10}`)}
	assert.True(t, done.IsTerminal())
}

func TestSessionEvent_Summary(t *testing.T) {
	tests := []struct {
		ev   SessionEvent
		want string
	}{
		{SessionEvent{Type: EventMessageDelta, Payload: json.RawMessage(`{"content":"Hel\nlo"}`)}, "Hel lo"},
		{SessionEvent{Type: EventMessage, Payload: json.RawMessage(`{"role":"assistant","content":"Sure."}`)}, "Assistant: Sure."},
		{SessionEvent{Type: EventToolResult, Payload: json.RawMessage(`{"name":"search","result":"3 hits"}`)}, "search -> 3 hits"},
		{SessionEvent{Type: EventStatus, Payload: json.RawMessage(`{"status":"idle"}`)}, "idle"},
		{SessionEvent{Type: EventError, Payload: json.RawMessage(`{"status":"error","message":"overloaded"}`)}, "error: overloaded"},
		{SessionEvent{Type: EventReplay, Payload: json.RawMessage(`{"state":"paused","position":2,"total_events":9}`)}, "paused 2/9"},
		{SessionEvent{Type: "custom", Payload: json.RawMessage(`{"x": 1}`)}, `{"x": 1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.ev.Summary(80), string(tt.ev.Type))
	}

	long := SessionEvent{Type: EventMessageDelta, Payload: json.RawMessage(`{"content":"abcdefghijkl"}`)}
	assert.Equal(t, "abcdefg...", long.Summary(10))
}

// =============================================================================
// REPLAY TESTS
// =============================================================================

func TestReplayStatus_Progress(t *testing.T) {
	assert.Equal(t, 0.0, ReplayStatus{}.Progress())
	assert.Equal(t, 0.5, ReplayStatus{Position: 5, TotalEvents: 10}.Progress())
	assert.Equal(t, 1.0, ReplayStatus{Position: 12, TotalEvents: 10}.Progress())
	assert.Equal(t, 0.0, ReplayStatus{Position: -1, TotalEvents: 10}.Progress())
}

func TestReplayAction_IsValid(t *testing.T) {
	for _, a := range []ReplayAction{ReplayStart, ReplayPause, ReplayResume, ReplayStop, ReplaySeek} {
		assert.True(t, a.IsValid(), string(a))
	}
	assert.False(t, ReplayAction("rewind").IsValid())
	assert.True(t, ReplayStatus{State: ReplayPaused}.IsActive())
	assert.False(t, ReplayStatus{State: ReplayFinished}.IsActive())
}
