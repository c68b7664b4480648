// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/sessionscope/internal/model"
)

// ColorMode mirrors the output.color setting.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Options configures NewTheme.
type Options struct {
	Color ColorMode
	// Background is "dark", "light" or "auto".
	Background string
	Width      int
	// Output is where styled text is written; defaults to os.Stdout.
	Output io.Writer
}

// Theme holds the styles for one output stream. Every style is created from
// the theme's renderer, so NO_COLOR or a pipe yields plain text everywhere.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	renderer *lipgloss.Renderer

	// ==========================================================================
	// TEXT STYLES
	// ==========================================================================

	Title     lipgloss.Style
	Header    lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Muted     lipgloss.Style
	Timestamp lipgloss.Style

	// ==========================================================================
	// TABLE STYLES
	// ==========================================================================

	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
	Selected    lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	MessageBody lipgloss.Style
	ToolCall    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	ProgressFill lipgloss.Style
	ProgressRest lipgloss.Style

	// ==========================================================================
	// STATUS STYLES
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme creates a theme for opts.Output.
func NewTheme(opts Options) *Theme {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	profile := DetectProfile(opts.Color, out)
	isDark := detectDark(opts.Background, profile, out)

	r := lipgloss.NewRenderer(out)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: profile,
		Width:        opts.Width,
		renderer:     r,
	}
	t.initStyles()
	return t
}

// DetectProfile picks the color profile for w. "never" and NO_COLOR win over
// everything; "always" and FORCE_COLOR win over TTY detection.
func DetectProfile(mode ColorMode, w io.Writer) termenv.Profile {
	if mode == ColorNever || os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	detected := termenv.NewOutput(w).ColorProfile()
	if mode == ColorAlways || os.Getenv("FORCE_COLOR") != "" {
		if detected != termenv.Ascii {
			return detected
		}
		return forcedProfile()
	}
	return detected
}

func forcedProfile() termenv.Profile {
	switch strings.ToLower(os.Getenv("COLORTERM")) {
	case "truecolor", "24bit":
		return termenv.TrueColor
	}
	return termenv.ANSI256
}

func detectDark(background string, profile termenv.Profile, w io.Writer) bool {
	switch strings.ToLower(background) {
	case "dark":
		return true
	case "light":
		return false
	}
	if profile == termenv.Ascii {
		return true
	}
	return termenv.NewOutput(w).HasDarkBackground()
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Title = s().Bold(true).Foreground(Cyan)
	t.Header = s().Bold(true).Foreground(TextPrimary)
	t.Label = s().Foreground(TextSecondary)
	t.Value = s().Foreground(TextPrimary)
	t.Muted = s().Foreground(TextMuted)
	t.Timestamp = s().Foreground(TextMuted)

	t.TableHeader = s().Bold(true).Foreground(TextSecondary)
	t.TableCell = s().Foreground(TextPrimary)
	t.Selected = s().Background(SelectionBg).Foreground(TextPrimary)

	t.MessageBody = s().Foreground(TextPrimary)
	t.ToolCall = s().Foreground(Amber)

	t.StatusBar = s().Background(SurfaceDim).Foreground(TextSecondary)
	t.ShortcutKey = s().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = s().Foreground(TextMuted)
	t.ProgressFill = s().Foreground(Emerald)
	t.ProgressRest = s().Foreground(Overlay)

	t.SuccessStyle = s().Bold(true).Foreground(Emerald)
	t.ErrorStyle = s().Bold(true).Foreground(Rose)
	t.WarningStyle = s().Bold(true).Foreground(Amber)
	t.InfoStyle = s().Bold(true).Foreground(Cyan)
}

// NewStyle returns an empty style bound to the theme's renderer.
func (t *Theme) NewStyle() lipgloss.Style {
	return t.renderer.NewStyle()
}

// Colorful reports whether the theme emits color at all.
func (t *Theme) Colorful() bool {
	return t.ColorProfile != termenv.Ascii
}

// RoleStyle styles a role badge.
func (t *Theme) RoleStyle(role model.Role) lipgloss.Style {
	return t.renderer.NewStyle().Bold(true).Foreground(RoleColor(role))
}

// EventStyle styles an event type label.
func (t *Theme) EventStyle(et model.EventType) lipgloss.Style {
	return t.renderer.NewStyle().Foreground(EventColor(et))
}

// ReplayStyle styles a replay state label.
func (t *Theme) ReplayStyle(state model.ReplayState) lipgloss.Style {
	return t.renderer.NewStyle().Bold(true).Foreground(ReplayColor(state))
}

// MarkdownStyle names the glamour standard style matching the theme.
func (t *Theme) MarkdownStyle() string {
	switch {
	case !t.Colorful():
		return "notty"
	case t.IsDark:
		return "dark"
	default:
		return "light"
	}
}

// SyntaxStyle names the chroma style matching the theme.
func (t *Theme) SyntaxStyle() string {
	if t.IsDark {
		return "monokai"
	}
	return "github"
}

// SyntaxFormatter names the chroma terminal formatter for the color profile,
// or "" when highlighting is off.
func (t *Theme) SyntaxFormatter() string {
	switch t.ColorProfile {
	case termenv.TrueColor:
		return "terminal16m"
	case termenv.ANSI256:
		return "terminal256"
	case termenv.ANSI:
		return "terminal16"
	default:
		return ""
	}
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// RenderSuccess renders a success message with its indicator.
func (t *Theme) RenderSuccess(message string) string {
	return t.SuccessStyle.Render(StatusIndicators.Success + " " + message)
}

// RenderError renders an error message with its indicator.
func (t *Theme) RenderError(message string) string {
	return t.ErrorStyle.Render(StatusIndicators.Error + " " + message)
}

// RenderWarning renders a warning message with its indicator.
func (t *Theme) RenderWarning(message string) string {
	return t.WarningStyle.Render(StatusIndicators.Warning + " " + message)
}

// RenderInfo renders an info message with its indicator.
func (t *Theme) RenderInfo(message string) string {
	return t.InfoStyle.Render(StatusIndicators.Info + " " + message)
}

// =============================================================================
// LAYOUT
// =============================================================================

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width > 0 && t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width > 0 && t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns, or unknown
)
