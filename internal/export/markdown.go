// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports histories to Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontMatter is marshalled by yaml.v3, which quotes titles containing
// newlines or YAML syntax.
type frontMatter struct {
	Title     string `yaml:"title"`
	ID        string `yaml:"id"`
	Persona   string `yaml:"persona,omitempty"`
	Model     string `yaml:"model,omitempty"`
	Started   string `yaml:"started,omitempty"`
	Ended     string `yaml:"ended,omitempty"`
	Messages  int    `yaml:"messages"`
	Events    int    `yaml:"events,omitempty"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a history to Markdown.
func (e *MarkdownExporter) Export(detail *model.HistoryDetail, events []model.SessionEvent) ([]byte, error) {
	if err := validate(detail); err != nil {
		return nil, err
	}

	var sb strings.Builder
	title := titleOf(detail)

	if e.options.IncludeMetadata {
		fm := frontMatter{
			Title:     title,
			ID:        detail.ID,
			Persona:   detail.Persona,
			Model:     detail.Model,
			Messages:  len(detail.Messages),
			Events:    len(events),
			Exported:  e.options.now().Format(time.RFC3339),
			Generator: generator,
		}
		if !detail.StartedAt.IsZero() {
			fm.Started = detail.StartedAt.Format(time.RFC3339)
		}
		if !detail.EndedAt.IsZero() {
			fm.Ended = detail.EndedAt.Format(time.RFC3339)
		}
		data, err := yaml.Marshal(fm)
		if err != nil {
			return nil, errors.Wrap(err, "encode front matter")
		}
		sb.WriteString("---\n")
		sb.Write(data)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(title))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		if detail.Persona != "" {
			fmt.Fprintf(&sb, "- **Persona**: %s\n", detail.Persona)
		}
		if detail.Model != "" {
			fmt.Fprintf(&sb, "- **Model**: %s\n", detail.Model)
		}
		fmt.Fprintf(&sb, "- **Started**: %s\n", formatTimestamp(detail.StartedAt))
		if d := detail.Duration(); d > 0 {
			fmt.Fprintf(&sb, "- **Duration**: %s\n", d.Round(time.Second))
		}
		fmt.Fprintf(&sb, "- **Messages**: %d\n", len(detail.Messages))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, msg := range detail.Messages {
		label := roleLabel(msg.Role)
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if content := strings.TrimSpace(msg.Content); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n\n")
		}
		for _, tc := range msg.ToolCalls {
			sb.WriteString(formatToolCall(tc))
			sb.WriteString("\n")
		}

		if i < len(detail.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	if e.options.IncludeEvents && len(events) > 0 {
		sb.WriteString("\n## Events\n\n")
		sb.WriteString("| # | Type | Time | Summary |\n")
		sb.WriteString("|---|------|------|---------|\n")
		for _, ev := range events {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s |\n",
				ev.Sequence, ev.Type, formatShortTimestamp(ev.Timestamp), escapeTableCell(ev.Summary(80)))
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from %s on %s*\n", generator,
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatToolCall(tc model.ToolCall) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "**Tool**: `%s`", tc.Name)
	if tc.Status != "" {
		fmt.Fprintf(&sb, " (%s)", tc.Status)
	}
	sb.WriteString("\n\n")

	if len(tc.Arguments) > 0 {
		sb.WriteString("**Input**:\n```json\n")
		sb.Write(tc.Arguments)
		sb.WriteString("\n```\n\n")
	}
	if tc.Result != "" {
		sb.WriteString("**Result**:\n```\n")
		sb.WriteString(tc.Result)
		sb.WriteString("\n```\n")
	}
	return sb.String()
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "\n", " ")
	return r.Replace(s)
}

func escapeTableCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
