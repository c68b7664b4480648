// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SpinnerConfig describes a frame animation for the live view.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// LineSpinner is shown while a stream is connecting or reconnecting.
var LineSpinner = SpinnerConfig{Frames: []string{"|", "/", "-", "\\"}, FPS: 10}

// Duration is the time each frame stays on screen.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Bubble converts the configuration into a bubbles spinner.
func (s SpinnerConfig) Bubble() spinner.Spinner {
	return spinner.Spinner{Frames: s.Frames, FPS: s.Duration()}
}

const (
	barFull  = "#"
	barHalf  = "+"
	barEmpty = "-"
)

// ProgressBar draws fraction (clamped to 0..1) as an ASCII bar of width
// cells. A cell that is at least half covered is drawn as "+".
func ProgressBar(width int, fraction float64) string {
	if width <= 0 {
		return ""
	}
	fraction = min(max(fraction, 0), 1)

	cells := float64(width) * fraction
	full := int(cells)
	half := full < width && cells-float64(full) >= 0.5

	var sb strings.Builder
	sb.Grow(width)
	sb.WriteString(strings.Repeat(barFull, full))
	if half {
		sb.WriteString(barHalf)
		full++
	}
	sb.WriteString(strings.Repeat(barEmpty, width-full))
	return sb.String()
}
