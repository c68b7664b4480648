// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Purple - assistant messages, selections
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan - user messages, headers
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - success, live streams
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Amber - warnings, tool calls, paused replays
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// Rose - errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

var (
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	SelectionBg   = lipgloss.AdaptiveColor{Light: "#BFDBFE", Dark: "#1E3A5F"}
	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
)

// RoleColor returns the accent used for a message role.
func RoleColor(role model.Role) lipgloss.AdaptiveColor {
	switch role {
	case model.RoleUser:
		return Cyan
	case model.RoleAssistant:
		return Purple
	case model.RoleTool:
		return Amber
	default:
		return TextSecondary
	}
}

// EventColor returns the accent used for an event type.
func EventColor(t model.EventType) lipgloss.AdaptiveColor {
	switch t {
	case model.EventMessage, model.EventMessageDelta:
		return Purple
	case model.EventToolCall, model.EventToolResult:
		return Amber
	case model.EventError:
		return Rose
	case model.EventReplay:
		return Cyan
	default:
		return TextSecondary
	}
}

// ReplayColor returns the accent used for a replay state.
func ReplayColor(s model.ReplayState) lipgloss.AdaptiveColor {
	switch s {
	case model.ReplayPlaying:
		return Emerald
	case model.ReplayPaused:
		return Amber
	case model.ReplayStopped:
		return Rose
	default:
		return TextSecondary
	}
}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet contains text indicators for status states.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Info    string
	Pending string
	Active  string
}

// StatusIndicators are ASCII-only so they survive NO_COLOR and dumb terminals.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Info:    "[i]",
	Pending: "[ ]",
	Active:  "[*]",
}
