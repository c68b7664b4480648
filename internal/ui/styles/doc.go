// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the palette and theme used by every terminal view of
sessionscope.

# Color System (colors.go)

Colors are lipgloss AdaptiveColors, so each one carries a light and a dark
variant:

	Purple  - assistant messages, selections
	Cyan    - user messages, headers
	Emerald - success, live streams
	Amber   - warnings, tool calls, paused replays
	Rose    - errors

StatusIndicators pairs each state with an ASCII shape so output stays readable
without color.

# Theme System (theme.go)

A Theme binds the palette to one lipgloss renderer whose color profile is
chosen from the output.color setting, NO_COLOR, FORCE_COLOR and TTY detection:

	theme := styles.NewTheme(styles.Options{Color: styles.ColorAuto, Output: os.Stdout})
	fmt.Println(theme.Title.Render("Histories"))

# Progress (animations.go)

ProgressBar draws the replay position bar; the spinner configurations
feed the watch view's bubbles spinner.
*/
package styles
