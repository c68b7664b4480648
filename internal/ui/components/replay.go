// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

const (
	minBarWidth = 10
	maxBarWidth = 40
)

// ReplayBar renders a replay's state, position and speed:
//
//	[playing] ##########---------- 12/24  50%  x2.0
func ReplayBar(theme *styles.Theme, st model.ReplayStatus, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	state := st.State
	if state == "" {
		state = model.ReplayIdle
	}

	label := "[" + string(state) + "]"
	counts := fmt.Sprintf("%d/%d  %3.0f%%", st.Position, st.TotalEvents, st.Progress()*100)
	speed := ""
	if st.Speed > 0 {
		speed = fmt.Sprintf("  x%.1f", st.Speed)
	}

	barWidth := width - len(label) - len(counts) - len(speed) - 2
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	if barWidth > maxBarWidth {
		barWidth = maxBarWidth
	}
	bar := styles.ProgressBar(barWidth, st.Progress())

	return theme.ReplayStyle(state).Render(label) + " " +
		theme.ProgressFill.Render(bar) + " " +
		theme.Value.Render(counts) +
		theme.Muted.Render(speed)
}
