// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"strings"

	"github.com/jeranaias/sessionscope/internal/model"
)

// entry is one block of the conversation view: a message being assembled
// from deltas, or a note such as a tool call or an error.
type entry struct {
	msg  *model.Message
	note string
	kind model.EventType
}

// transcript reassembles the conversation from stream events.
type transcript struct {
	entries []entry
	byID    map[string]int
}

func newTranscript() *transcript {
	return &transcript{byID: make(map[string]int)}
}

// add folds one event into the conversation. It reports whether anything
// visible changed.
func (t *transcript) add(ev model.SessionEvent) bool {
	if d, ok := ev.Delta(); ok {
		if i, found := t.byID[d.MessageID]; found && d.MessageID != "" {
			t.entries[i].msg.Content += d.Content
			return true
		}
		role := d.Role
		if role == "" {
			role = model.RoleAssistant
		}
		t.appendMessage(&model.Message{ID: d.MessageID, Role: role, Content: d.Content, CreatedAt: ev.Timestamp})
		return true
	}

	if m, ok := ev.Message(); ok {
		if i, found := t.byID[m.ID]; found && m.ID != "" {
			t.entries[i].msg = &m
			return true
		}
		t.appendMessage(&m)
		return true
	}

	if tc, ok := ev.ToolCall(); ok {
		note := "-> " + tc.Name
		if tc.Status != "" {
			note += " [" + string(tc.Status) + "]"
		}
		if tc.Result != "" {
			note += " = " + strings.Join(strings.Fields(tc.Result), " ")
		}
		t.entries = append(t.entries, entry{note: note, kind: ev.Type})
		return true
	}

	if s, ok := ev.Status(); ok {
		if ev.Type == model.EventStatus && s.Message == "" {
			return false
		}
		note := s.Status
		if s.Message != "" {
			if note != "" {
				note += ": "
			}
			note += s.Message
		}
		t.entries = append(t.entries, entry{note: note, kind: ev.Type})
		return true
	}
	return false
}

func (t *transcript) appendMessage(m *model.Message) {
	if m.ID != "" {
		t.byID[m.ID] = len(t.entries)
	}
	t.entries = append(t.entries, entry{msg: m, kind: model.EventMessage})
}

// lastMessage returns the most recent message, if any.
func (t *transcript) lastMessage() (*model.Message, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].msg != nil {
			return t.entries[i].msg, true
		}
	}
	return nil, false
}
