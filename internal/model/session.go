// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// SESSIONS
// =============================================================================

// SessionStatus is the lifecycle state reported by the backend.
type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionIdle     SessionStatus = "idle"
	SessionClosed   SessionStatus = "closed"
	SessionArchived SessionStatus = "archived"
)

// Session is a live chat session.
type Session struct {
	ID           string        `json:"id"`
	Title        string        `json:"title,omitempty"`
	Persona      string        `json:"persona,omitempty"`
	Model        string        `json:"model,omitempty"`
	Status       SessionStatus `json:"status,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	MessageCount int           `json:"message_count"`
}

// DisplayTitle returns the title or a placeholder derived from the ID.
func (s *Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return "Session " + shortID(s.ID)
}

// =============================================================================
// RECORDED HISTORY
// =============================================================================

// HistorySummary is one row of the history listing.
type HistorySummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	Persona      string    `json:"persona,omitempty"`
	Model        string    `json:"model,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"`
	MessageCount int       `json:"message_count"`
	EventCount   int       `json:"event_count"`
}

// Duration returns how long the recorded session lasted.
// Zero when the session has not ended.
func (h *HistorySummary) Duration() time.Duration {
	if h.EndedAt.IsZero() || h.StartedAt.IsZero() || h.EndedAt.Before(h.StartedAt) {
		return 0
	}
	return h.EndedAt.Sub(h.StartedAt)
}

// DisplayTitle returns the title or a placeholder derived from the ID.
func (h *HistorySummary) DisplayTitle() string {
	if h.Title != "" {
		return h.Title
	}
	return "History " + shortID(h.ID)
}

// HistoryDetail is a recorded session with its messages.
type HistoryDetail struct {
	HistorySummary
	Messages []Message `json:"messages"`
}

// FirstUserMessage returns the first message sent by the user, if any.
func (h *HistoryDetail) FirstUserMessage() (Message, bool) {
	for _, m := range h.Messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}

// =============================================================================
// PAGINATION
// =============================================================================

// Page describes one slice of a paginated listing.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`

	// Open marks a page whose total the server did not report. Paging
	// continues until an empty page arrives.
	Open bool `json:"-"`
}

// HasMore reports whether items remain after this page.
func (p Page) HasMore() bool {
	if p.Limit <= 0 {
		return false
	}
	if p.Open {
		return true
	}
	return p.Offset+p.Limit < p.Total
}

// NextOffset returns the offset of the following page.
func (p Page) NextOffset() int {
	return p.Offset + p.Limit
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
