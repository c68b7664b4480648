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

// =============================================================================
// TABLE COMPONENT
// =============================================================================

const (
	columnGap    = "  "
	minFlexWidth = 10
)

// Column describes one table column.
type Column struct {
	Title string
	// MaxWidth caps a fixed column; 0 means its natural width.
	MaxWidth int
	// Flex columns share whatever width the fixed columns leave.
	Flex       bool
	AlignRight bool
	// MinLayout hides the column on narrower terminals.
	MinLayout styles.LayoutMode
}

// Table is a plain column table whose cells are measured in terminal
// columns, so CJK titles line up.
type Table struct {
	Columns []Column
	Rows    [][]string
	// Empty is printed instead of a header-only table.
	Empty string
}

// Render lays the table out for theme.Width (natural widths when unknown).
func (tb *Table) Render(theme *styles.Theme) string {
	if len(tb.Rows) == 0 && tb.Empty != "" {
		return theme.Muted.Render(tb.Empty)
	}

	layout := theme.GetLayoutMode()
	var visible []int
	for i, c := range tb.Columns {
		if c.MinLayout <= layout {
			visible = append(visible, i)
		}
	}

	widths := tb.columnWidths(visible, theme.Width)

	var sb strings.Builder
	header := make([]string, len(visible))
	for j, i := range visible {
		header[j] = tb.Columns[i].Title
	}
	sb.WriteString(tb.renderRow(theme, visible, widths, header, true))
	for _, row := range tb.Rows {
		sb.WriteString("\n")
		cells := make([]string, len(visible))
		for j, i := range visible {
			if i < len(row) {
				cells[j] = row[i]
			}
		}
		sb.WriteString(tb.renderRow(theme, visible, widths, cells, false))
	}
	return sb.String()
}

func (tb *Table) columnWidths(visible []int, total int) []int {
	widths := make([]int, len(visible))
	for j, i := range visible {
		w := util.StringWidth(tb.Columns[i].Title)
		for _, row := range tb.Rows {
			if i < len(row) {
				if cw := util.StringWidth(util.OneLine(row[i])); cw > w {
					w = cw
				}
			}
		}
		if limit := tb.Columns[i].MaxWidth; limit > 0 && w > limit && !tb.Columns[i].Flex {
			w = limit
		}
		widths[j] = w
	}
	if total <= 0 {
		return widths
	}

	fixed := len(columnGap) * (len(visible) - 1)
	flex := 0
	for j, i := range visible {
		if tb.Columns[i].Flex {
			flex++
		} else {
			fixed += widths[j]
		}
	}
	if flex == 0 {
		return widths
	}
	share := (total - fixed) / flex
	if share < minFlexWidth {
		share = minFlexWidth
	}
	for j, i := range visible {
		if tb.Columns[i].Flex && widths[j] > share {
			widths[j] = share
		}
	}
	return widths
}

func (tb *Table) renderRow(theme *styles.Theme, visible, widths []int, cells []string, header bool) string {
	style := theme.TableCell
	if header {
		style = theme.TableHeader
	}

	parts := make([]string, len(visible))
	for j, i := range visible {
		cell := util.OneLine(cells[j])
		last := j == len(visible)-1
		switch {
		case tb.Columns[i].AlignRight:
			cell = util.PadLeftWidth(cell, widths[j])
		case last:
			cell = util.TruncateWidth(cell, widths[j])
		default:
			cell = util.PadWidth(cell, widths[j])
		}
		parts[j] = style.Render(cell)
	}
	return strings.Join(parts, columnGap)
}

// =============================================================================
// HISTORY AND SESSION TABLES
// =============================================================================

// HistoryTable renders recorded histories newest first as given.
func HistoryTable(theme *styles.Theme, histories []model.HistorySummary) string {
	tb := &Table{
		Columns: []Column{
			{Title: "ID", MaxWidth: 36},
			{Title: "TITLE", Flex: true},
			{Title: "PERSONA", MaxWidth: 16, MinLayout: styles.LayoutMedium},
			{Title: "MODEL", MaxWidth: 20, MinLayout: styles.LayoutWide},
			{Title: "STARTED"},
			{Title: "DURATION", AlignRight: true, MinLayout: styles.LayoutWide},
			{Title: "MSGS", AlignRight: true},
			{Title: "EVENTS", AlignRight: true, MinLayout: styles.LayoutMedium},
		},
		Empty: "No histories.",
	}
	for i := range histories {
		h := &histories[i]
		tb.Rows = append(tb.Rows, []string{
			h.ID,
			h.DisplayTitle(),
			h.Persona,
			h.Model,
			fmtTime(h.StartedAt, "2006-01-02 15:04"),
			fmtDuration(h.Duration()),
			fmtNumber(h.MessageCount),
			fmtNumber(h.EventCount),
		})
	}
	return tb.Render(theme)
}

// SessionTable renders live sessions.
func SessionTable(theme *styles.Theme, sessions []model.Session) string {
	tb := &Table{
		Columns: []Column{
			{Title: "ID", MaxWidth: 36},
			{Title: "TITLE", Flex: true},
			{Title: "STATUS"},
			{Title: "PERSONA", MaxWidth: 16, MinLayout: styles.LayoutMedium},
			{Title: "MODEL", MaxWidth: 20, MinLayout: styles.LayoutWide},
			{Title: "MSGS", AlignRight: true},
			{Title: "UPDATED"},
		},
		Empty: "No sessions.",
	}
	for i := range sessions {
		s := &sessions[i]
		tb.Rows = append(tb.Rows, []string{
			s.ID,
			s.DisplayTitle(),
			string(s.Status),
			s.Persona,
			s.Model,
			strconv.Itoa(s.MessageCount),
			fmtTime(s.UpdatedAt, "2006-01-02 15:04"),
		})
	}
	return tb.Render(theme)
}
