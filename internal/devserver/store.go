// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/sessionscope/internal/model"
)

// ============================================================================
// STATE
// ============================================================================

type sessionState struct {
	session  model.Session
	messages []model.Message
	events   []model.SessionEvent
	changed  chan struct{} // closed and replaced on every append
}

type historyState struct {
	detail  model.HistoryDetail
	events  []model.SessionEvent
	replay  model.ReplayStatus
	changed chan struct{}
}

// Store holds everything the dev server serves.
type Store struct {
	mu sync.Mutex

	models   []model.Model
	personas []model.Persona
	tools    []model.Tool
	system   model.SystemConfig

	sessions     map[string]*sessionState
	sessionOrder []string

	histories    map[string]*historyState
	historyOrder []string

	now func() time.Time
}

// NewStore returns an empty store with the default catalog.
func NewStore() *Store {
	s := &Store{
		sessions:  make(map[string]*sessionState),
		histories: make(map[string]*historyState),
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.models = []model.Model{
		{ID: "qwen2.5-coder:14b", Name: "Qwen 2.5 Coder 14B", Provider: "ollama", ContextWindow: 32768, Default: true},
		{ID: "llama3.1:8b", Name: "Llama 3.1 8B", Provider: "ollama", ContextWindow: 131072},
		{ID: "claude-sonnet", Name: "Claude Sonnet", Provider: "openrouter", ContextWindow: 200000},
	}
	s.personas = []model.Persona{
		{ID: "assistant", Name: "Assistant", Description: "General purpose helper", Model: "qwen2.5-coder:14b", Default: true},
		{ID: "analyst", Name: "Analyst", Description: "Reads logs and explains failures", Model: "llama3.1:8b", Tools: []string{"search", "read_file"}},
	}
	s.tools = []model.Tool{
		{Name: "search", Description: "Full text search over the workspace", Parameters: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`), Enabled: true},
		{Name: "read_file", Description: "Read a file", Parameters: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`), Enabled: true},
		{Name: "bash", Description: "Run a shell command", Enabled: false},
	}
	s.system = model.SystemConfig{
		Version:        "dev",
		DefaultModel:   "qwen2.5-coder:14b",
		DefaultPersona: "assistant",
		Features:       map[string]bool{"replay": true, "tools": true, "streaming": true},
		Limits:         map[string]int{"max_message_chars": 32000, "max_page_size": maxPageSize},
	}
	return s
}

// ============================================================================
// SEED DATA
// ============================================================================

// Seed records a few finished conversations for history and replay.
func (s *Store) Seed() {
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	s.AddHistory("hist-logrotate", "Rotating service logs", "analyst", "llama3.1:8b", base, []string{
		"Our service logs fill the disk every week. What should I do?",
		"Rotate them. Cap each file at 10 MB, keep three backups, and compress old files.",
		"Can the app do that itself?",
		"Yes. Write through a rotating writer such as lumberjack instead of a plain file.",
	})
	s.AddHistory("hist-sse", "Parsing server-sent events", "assistant", "qwen2.5-coder:14b", base.Add(26*time.Hour), []string{
		"How do I parse an SSE stream in Go?",
		"Read chunks, split on newlines, keep the partial last line, and decode each `data:` line as JSON.",
	})
	s.AddHistory("hist-unicode", "Café naïve résumé", "assistant", "qwen2.5-coder:14b", base.Add(50*time.Hour), []string{
		"Why does my search miss café when I type it on macOS?",
		"The input is decomposed (NFD). Normalize both sides to NFC before matching.",
	})
}

// AddHistory records a finished conversation built from alternating user and
// assistant turns, with one message event per turn split into deltas.
func (s *Store) AddHistory(id, title, persona, modelID string, started time.Time, turns []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &historyState{changed: make(chan struct{})}
	h.detail.ID = id
	h.detail.Title = title
	h.detail.Persona = persona
	h.detail.Model = modelID
	h.detail.StartedAt = started

	at := started
	for i, text := range turns {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg := model.Message{
			ID:        id + "-m" + strconv.Itoa(i+1),
			SessionID: id,
			Role:      role,
			Content:   text,
			Persona:   persona,
			Model:     modelID,
			CreatedAt: at,
		}
		h.detail.Messages = append(h.detail.Messages, msg)

		if role == model.RoleAssistant {
			for _, chunk := range splitDeltas(text) {
				at = at.Add(150 * time.Millisecond)
				h.events = appendEvent(h.events, id, model.EventMessageDelta, at,
					model.Delta{MessageID: msg.ID, Role: role, Content: chunk})
			}
		}
		at = at.Add(time.Second)
		h.events = appendEvent(h.events, id, model.EventMessage, at, msg)
		at = at.Add(3 * time.Second)
	}
	h.events = appendEvent(h.events, id, model.EventStatus, at, model.StatusPayload{Status: string(model.SessionClosed)})

	h.detail.EndedAt = at
	h.detail.MessageCount = len(h.detail.Messages)
	h.detail.EventCount = len(h.events)
	h.replay = model.ReplayStatus{SessionID: id, State: model.ReplayIdle, Speed: 1, TotalEvents: len(h.events)}

	if _, exists := s.histories[id]; !exists {
		s.historyOrder = append(s.historyOrder, id)
	}
	s.histories[id] = h
}

// ============================================================================
// CATALOG
// ============================================================================

// Models returns the model catalog.
func (s *Store) Models() []model.Model { return s.models }

// Personas returns the persona catalog.
func (s *Store) Personas() []model.Persona { return s.personas }

// Tools returns the tool catalog.
func (s *Store) Tools() []model.Tool { return s.tools }

// System returns the public system configuration.
func (s *Store) System() model.SystemConfig { return s.system }

// ============================================================================
// SESSIONS
// ============================================================================

func (s *Store) listSessions(persona, search string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.Session{}
	for i := len(s.sessionOrder) - 1; i >= 0; i-- {
		st := s.sessions[s.sessionOrder[i]]
		if persona != "" && st.session.Persona != persona {
			continue
		}
		if search != "" && !matches(search, st.session.Title, st.messages) {
			continue
		}
		out = append(out, st.session)
	}
	return out
}

func (s *Store) createSession(title, persona, modelID string) (model.Session, error) {
	if persona == "" {
		persona = s.system.DefaultPersona
	}
	p, ok := model.FindPersona(s.personas, persona)
	if !ok {
		return model.Session{}, errUnknown("persona", persona)
	}
	if modelID == "" {
		modelID = p.Model
	}
	if !s.hasModel(modelID) {
		return model.Session{}, errUnknown("model", modelID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := model.Session{
		ID:        "sess-" + uuid.NewString(),
		Title:     title,
		Persona:   p.ID,
		Model:     modelID,
		Status:    model.SessionIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &sessionState{session: sess, changed: make(chan struct{})}
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	return sess, nil
}

func (s *Store) session(id string) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return model.Session{}, false
	}
	return st.session, true
}

func (s *Store) deleteSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return false
	}
	close(st.changed)
	delete(s.sessions, id)
	for i, sid := range s.sessionOrder {
		if sid == id {
			s.sessionOrder = append(s.sessionOrder[:i], s.sessionOrder[i+1:]...)
			break
		}
	}
	return true
}

// sendMessage stores the user message and produces an assistant reply. The
// reply is emitted as deltas followed by the complete message and an idle
// status event.
func (s *Store) sendMessage(id, content, modelID string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return model.Message{}, false
	}
	if modelID == "" {
		modelID = st.session.Model
	}

	now := s.now()
	user := model.Message{
		ID:        "msg-" + uuid.NewString(),
		SessionID: id,
		Role:      model.RoleUser,
		Content:   content,
		Persona:   st.session.Persona,
		Model:     modelID,
		CreatedAt: now,
	}
	reply := model.Message{
		ID:        "msg-" + uuid.NewString(),
		SessionID: id,
		Role:      model.RoleAssistant,
		Content:   replyTo(content),
		Persona:   st.session.Persona,
		Model:     modelID,
		CreatedAt: now,
	}

	st.messages = append(st.messages, user, reply)
	st.events = appendEvent(st.events, id, model.EventMessage, now, user)
	st.events = appendEvent(st.events, id, model.EventStatus, now, model.StatusPayload{Status: string(model.SessionActive)})
	for _, chunk := range splitDeltas(reply.Content) {
		st.events = appendEvent(st.events, id, model.EventMessageDelta, now,
			model.Delta{MessageID: reply.ID, Role: reply.Role, Content: chunk})
	}
	st.events = appendEvent(st.events, id, model.EventMessage, now, reply)
	st.events = appendEvent(st.events, id, model.EventStatus, now, model.StatusPayload{Status: string(model.SessionIdle)})

	st.session.MessageCount = len(st.messages)
	st.session.UpdatedAt = now
	if st.session.Title == "" {
		st.session.Title = firstWords(content, 6)
	}
	close(st.changed)
	st.changed = make(chan struct{})

	return user, true
}

// sessionEvents returns events after index from and a channel closed on the
// next change. ok is false once the session is gone.
func (s *Store) sessionEvents(id string, from int) (events []model.SessionEvent, changed <-chan struct{}, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.sessions[id]
	if !exists {
		return nil, nil, false
	}
	if from < len(st.events) {
		events = append(events, st.events[from:]...)
	}
	return events, st.changed, true
}

func (s *Store) hasModel(id string) bool {
	for _, m := range s.models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ============================================================================
// HISTORIES
// ============================================================================

func (s *Store) listHistories(persona, search string) []model.HistorySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []model.HistorySummary{}
	for _, id := range s.historyOrder {
		h := s.histories[id]
		if persona != "" && h.detail.Persona != persona {
			continue
		}
		if search != "" && !matches(search, h.detail.Title, h.detail.Messages) {
			continue
		}
		out = append(out, h.detail.HistorySummary)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (s *Store) history(id string) (model.HistoryDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return model.HistoryDetail{}, false
	}
	detail := h.detail
	detail.Messages = append([]model.Message(nil), h.detail.Messages...)
	return detail, true
}

func (s *Store) historyEvents(id string, types map[model.EventType]bool) ([]model.SessionEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return nil, false
	}
	out := []model.SessionEvent{}
	for _, ev := range h.events {
		if len(types) > 0 && !types[ev.Type] {
			continue
		}
		out = append(out, ev)
	}
	return out, true
}

func (s *Store) deleteHistory(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return false
	}
	h.replay.State = model.ReplayStopped
	close(h.changed)
	delete(s.histories, id)
	for i, hid := range s.historyOrder {
		if hid == id {
			s.historyOrder = append(s.historyOrder[:i], s.historyOrder[i+1:]...)
			break
		}
	}
	return true
}

// ============================================================================
// REPLAY
// ============================================================================

func (s *Store) replayStatus(id string) (model.ReplayStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.histories[id]
	if !ok {
		return model.ReplayStatus{}, false
	}
	return h.replay, true
}

// controlReplay applies a control command. Speed 0 keeps the current speed.
func (s *Store) controlReplay(id string, action model.ReplayAction, speed float64, position *int) (model.ReplayStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[id]
	if !ok {
		return model.ReplayStatus{}, errNotFound("history", id)
	}
	r := &h.replay
	if speed > 0 {
		r.Speed = speed
	}

	switch action {
	case model.ReplayStart:
		r.State = model.ReplayPlaying
		r.Position = 0
		r.StartedAt = s.now()
	case model.ReplayPause:
		if r.State != model.ReplayPlaying {
			return *r, errConflict("replay is not playing")
		}
		r.State = model.ReplayPaused
	case model.ReplayResume:
		if r.State != model.ReplayPaused && r.State != model.ReplayPlaying {
			return *r, errConflict("replay is not paused")
		}
		r.State = model.ReplayPlaying
	case model.ReplayStop:
		r.State = model.ReplayStopped
	case model.ReplaySeek:
		if position == nil {
			return *r, errInvalid("position", "seek requires a position")
		}
		if *position > r.TotalEvents {
			return *r, errInvalid("position", "position is past the last event")
		}
		r.Position = *position
		if r.State == model.ReplayFinished || r.State == model.ReplayIdle || r.State == model.ReplayStopped {
			r.State = model.ReplayPaused
		}
	}

	close(h.changed)
	h.changed = make(chan struct{})
	return *r, nil
}

// replayStep is a snapshot of a replay: its status, the event at the
// current position with the gap since the previous one, and a channel closed
// on the next change.
type replayStep struct {
	status  model.ReplayStatus
	event   model.SessionEvent
	gap     time.Duration
	hasNext bool
	changed <-chan struct{}
}

// nextReplayStep returns the current replay snapshot.
func (s *Store) nextReplayStep(id string) (replayStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[id]
	if !ok {
		return replayStep{}, false
	}
	step := replayStep{status: h.replay, changed: h.changed}
	pos := h.replay.Position
	if pos < len(h.events) {
		step.event = h.events[pos]
		step.hasNext = true
		if pos > 0 {
			step.gap = h.events[pos].Timestamp.Sub(h.events[pos-1].Timestamp)
		}
	}
	return step, true
}

// advanceReplay moves past the event at expected. It returns false when a
// control command moved the position in the meantime.
func (s *Store) advanceReplay(id string, expected int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.histories[id]
	if !ok || h.replay.Position != expected || h.replay.State != model.ReplayPlaying {
		return false
	}
	if h.replay.Position < len(h.events) {
		h.replay.Position++
	}
	if h.replay.Position >= len(h.events) {
		h.replay.State = model.ReplayFinished
		close(h.changed)
		h.changed = make(chan struct{})
	}
	return true
}

// ============================================================================
// HELPERS
// ============================================================================

func appendEvent(events []model.SessionEvent, sessionID string, typ model.EventType, at time.Time, payload interface{}) []model.SessionEvent {
	data, _ := json.Marshal(payload)
	seq := int64(len(events) + 1)
	return append(events, model.SessionEvent{
		ID:        sessionID + "-e" + strconv.Itoa(int(seq)),
		SessionID: sessionID,
		Sequence:  seq,
		Type:      typ,
		Timestamp: at,
		Payload:   data,
	})
}

// splitDeltas breaks text into word-sized chunks that concatenate back to it.
func splitDeltas(text string) []string {
	var chunks []string
	start := 0
	for i, r := range text {
		if r == ' ' && i > start {
			chunks = append(chunks, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		chunks = append(chunks, text[start:])
	}
	return chunks
}

func replyTo(content string) string {
	words := strings.Fields(content)
	return "You said " + strconv.Itoa(len(words)) + " words: \"" + firstWords(content, 12) + "\"."
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

func matches(search, title string, messages []model.Message) bool {
	q := strings.ToLower(search)
	if strings.Contains(strings.ToLower(title), q) {
		return true
	}
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Content), q) {
			return true
		}
	}
	return false
}
