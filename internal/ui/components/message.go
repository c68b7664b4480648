// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
	"github.com/jeranaias/sessionscope/internal/util"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// =============================================================================
// MESSAGE COMPONENT
// =============================================================================

// MessageOptions controls RenderMessage.
type MessageOptions struct {
	Width         int
	Markdown      bool
	ShowTimestamp bool
	ShowMeta      bool
}

// RenderMessage renders a role header followed by the message body. User
// text is printed as written; other roles go through glamour when Markdown
// is set.
func RenderMessage(theme *styles.Theme, msg model.Message, opts MessageOptions) string {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}

	var sb strings.Builder
	sb.WriteString(messageHeader(theme, msg, opts))
	sb.WriteString("\n")

	body := strings.TrimSpace(msg.Content)
	if body != "" {
		sb.WriteString(renderBody(theme, msg.Role, body, width, opts.Markdown))
		sb.WriteString("\n")
	}

	for _, tc := range msg.ToolCalls {
		sb.WriteString(renderToolCall(theme, tc, width))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func messageHeader(theme *styles.Theme, msg model.Message, opts MessageOptions) string {
	parts := []string{theme.RoleStyle(msg.Role).Render("[" + msg.Role.DisplayName() + "]")}

	if opts.ShowMeta {
		var meta []string
		if msg.Persona != "" {
			meta = append(meta, msg.Persona)
		}
		if msg.Model != "" {
			meta = append(meta, msg.Model)
		}
		if len(meta) > 0 {
			parts = append(parts, theme.Label.Render("("+strings.Join(meta, ", ")+")"))
		}
	}
	if opts.ShowTimestamp && !msg.CreatedAt.IsZero() {
		parts = append(parts, theme.Timestamp.Render(fmtTime(msg.CreatedAt, "2006-01-02 15:04:05")))
	}
	return strings.Join(parts, " ")
}

func renderBody(theme *styles.Theme, role model.Role, body string, width int, markdown bool) string {
	if markdown && role != model.RoleUser {
		out, err := renderMarkdown(theme, body, width)
		if err == nil {
			return out
		}
		log.Debug().Err(err).Str("component", "ui").Msg("markdown render failed, using plain text")
	}
	return renderLines(theme.MessageBody, util.Indent(util.WrapWidth(body, width-2), "  "))
}

func renderToolCall(theme *styles.Theme, tc model.ToolCall, width int) string {
	line := "  -> " + tc.Name
	if len(tc.Arguments) > 0 {
		line += " " + util.OneLine(string(tc.Arguments))
	}
	if tc.Status != "" {
		line += " [" + string(tc.Status) + "]"
	}
	out := theme.ToolCall.Render(util.TruncateWidth(line, width))
	if tc.Result != "" {
		out += "\n" + theme.Muted.Render(util.TruncateWidth("     = "+util.OneLine(tc.Result), width))
	}
	return out
}

// =============================================================================
// MARKDOWN RENDERING (glamour)
// =============================================================================

type markdownKey struct {
	style string
	width int
}

var (
	markdownMu        sync.Mutex
	markdownRenderers = map[markdownKey]*glamour.TermRenderer{}
)

// renderMarkdown renders content with a glamour renderer cached per style
// and width.
func renderMarkdown(theme *styles.Theme, content string, width int) (string, error) {
	key := markdownKey{style: theme.MarkdownStyle(), width: width}

	markdownMu.Lock()
	defer markdownMu.Unlock()

	r, ok := markdownRenderers[key]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(key.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		markdownRenderers[key] = r
	}

	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.Trim(out, "\n"), nil
}
