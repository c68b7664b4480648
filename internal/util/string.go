// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const ellipsis = "..."

// TruncateRunes truncates s to at most maxRunes characters, appending
// "..." when something was cut.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= len(ellipsis) {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-len(ellipsis)]) + ellipsis
}

// TruncateWidth truncates s to maxWidth terminal columns. Wide (CJK) and
// zero-width characters are measured with go-runewidth.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= len(ellipsis) {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, ellipsis)
}

// PadWidth truncates or right-pads s to exactly width columns.
func PadWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}

// StringWidth returns the display width of s in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// OneLine collapses all whitespace runs, newlines included, to single spaces.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PadLeftWidth truncates or left-pads s to exactly width columns.
func PadLeftWidth(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillLeft(s, width)
}

// WrapWidth wraps text at word boundaries so no line exceeds maxWidth
// columns. Existing newlines are kept; a single word wider than maxWidth
// stays on its own line.
func WrapWidth(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		if runewidth.StringWidth(line) <= maxWidth {
			result.WriteString(line)
			continue
		}

		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}
		current := words[0]
		currentWidth := runewidth.StringWidth(current)
		for _, word := range words[1:] {
			w := runewidth.StringWidth(word)
			if currentWidth+1+w <= maxWidth {
				current += " " + word
				currentWidth += 1 + w
				continue
			}
			result.WriteString(current)
			result.WriteString("\n")
			current = word
			currentWidth = w
		}
		result.WriteString(current)
	}
	return result.String()
}

// Indent prefixes every non-empty line of s.
func Indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
