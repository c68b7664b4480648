// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strconv"
	"strings"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
	"github.com/jeranaias/sessionscope/internal/util"
)

// typeColumn fits the longest built-in event type.
const typeColumn = 13

// EventOptions controls RenderEvent.
type EventOptions struct {
	Width       int
	ShowPayload bool
}

// RenderEvent renders one event as a summary line:
//
//	#12   09:00:03.250 message_delta Hello wor
//
// With ShowPayload the highlighted JSON payload follows, indented.
func RenderEvent(theme *styles.Theme, ev model.SessionEvent, opts EventOptions) string {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}

	seq := util.PadWidth("#"+strconv.FormatInt(ev.Sequence, 10), 5)
	ts := fmtTime(ev.Timestamp, "15:04:05.000")
	if ts == "-" {
		ts = util.PadWidth(ts, 12)
	}
	prefix := seq + " " + ts + " " + util.PadWidth(string(ev.Type), typeColumn) + " "

	summary := ev.Summary(width)
	summary = util.TruncateWidth(summary, width-util.StringWidth(prefix))

	line := theme.Muted.Render(seq) + " " +
		theme.Timestamp.Render(ts) + " " +
		theme.EventStyle(ev.Type).Render(util.PadWidth(string(ev.Type), typeColumn)) + " " +
		theme.Value.Render(summary)
	line = strings.TrimRight(line, " ")

	if !opts.ShowPayload || len(ev.Payload) == 0 {
		return line
	}
	return line + "\n" + util.Indent(HighlightJSON(theme, ev.Payload), "      ")
}

// RenderEvents renders events one per line.
func RenderEvents(theme *styles.Theme, events []model.SessionEvent, opts EventOptions) string {
	if len(events) == 0 {
		return theme.Muted.Render("No events.")
	}
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = RenderEvent(theme, ev, opts)
	}
	return strings.Join(lines, "\n")
}
