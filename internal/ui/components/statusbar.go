// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/sessionscope/internal/ui/styles"
	"github.com/jeranaias/sessionscope/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar renders left-aligned status text and right-aligned shortcuts
// on one line of exactly width columns. Shortcuts are dropped from the
// right when they do not fit.
func StatusBar(theme *styles.Theme, width int, status string, shortcuts []Shortcut) string {
	if width <= 0 {
		width = DefaultWidth
	}
	status = util.TruncateWidth(" "+util.OneLine(status), width)

	var plain, styled []string
	used := util.StringWidth(status) + 1
	for _, sc := range shortcuts {
		p := sc.Key + " " + sc.Desc
		if used+util.StringWidth(p)+2 > width {
			break
		}
		used += util.StringWidth(p) + 2
		plain = append(plain, p)
		styled = append(styled, theme.ShortcutKey.Render(sc.Key)+" "+theme.ShortcutDesc.Render(sc.Desc))
	}

	gap := width - util.StringWidth(status)
	if len(plain) > 0 {
		gap -= util.StringWidth(strings.Join(plain, "  ")) + 1
	}
	if gap < 1 {
		gap = 1
	}
	line := theme.StatusBar.Render(status + strings.Repeat(" ", gap))
	if len(styled) > 0 {
		line += strings.Join(styled, "  ") + " "
	}
	return line
}
