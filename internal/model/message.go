// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/sessionscope/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		if r == "" {
			return "Unknown"
		}
		return string(r)
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single message of a session or recorded history.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id,omitempty"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Persona   string     `json:"persona,omitempty"`
	Model     string     `json:"model,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Preview returns a single-line, rune-truncated preview of the content.
func (m *Message) Preview(maxLen int) string {
	return preview(m.Content, maxLen)
}

func preview(s string, maxLen int) string {
	return util.TruncateRunes(strings.Join(strings.Fields(s), " "), maxLen)
}

// HasToolCalls returns true if the message carries tool invocations.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// =============================================================================
// TOOL CALL TYPE
// =============================================================================

// ToolCallStatus is the execution state of a tool call.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallSucceeded ToolCallStatus = "succeeded"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCall is a tool invocation made by the assistant.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`
	Status    ToolCallStatus  `json:"status,omitempty"`
}

// IsDone reports whether the call reached a terminal status.
func (tc *ToolCall) IsDone() bool {
	return tc.Status == ToolCallSucceeded || tc.Status == ToolCallFailed
}
