// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports histories to a self-contained HTML page.
type HTMLExporter struct {
	options  *Options
	markdown goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	// Raw HTML in message content is dropped by the default renderer.
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	return &HTMLExporter{options: opts, markdown: md}
}

type htmlMessage struct {
	Role    string
	Label   string
	Time    string
	Content template.HTML
	Tools   []model.ToolCall
}

type htmlEvent struct {
	Sequence int64
	Type     string
	Time     string
	Summary  string
}

type htmlPage struct {
	Title     string
	Theme     string
	Generator string
	Date      string
	Exported  string
	Metadata  bool
	Persona   string
	Model     string
	Started   string
	Duration  string
	Messages  []htmlMessage
	Events    []htmlEvent
}

// Export converts a history to HTML.
func (e *HTMLExporter) Export(detail *model.HistoryDetail, events []model.SessionEvent) ([]byte, error) {
	if err := validate(detail); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	page := htmlPage{
		Title:     titleOf(detail),
		Theme:     theme,
		Generator: generator,
		Exported:  e.options.now().Format("January 2, 2006 at 3:04 PM"),
		Metadata:  e.options.IncludeMetadata,
		Persona:   detail.Persona,
		Model:     detail.Model,
		Started:   formatTimestamp(detail.StartedAt),
	}
	if !detail.StartedAt.IsZero() {
		page.Date = detail.StartedAt.Format(time.RFC3339)
	}
	if d := detail.Duration(); d > 0 {
		page.Duration = d.Round(time.Second).String()
	}

	for _, msg := range detail.Messages {
		content, err := e.render(msg.Content)
		if err != nil {
			return nil, err
		}
		hm := htmlMessage{
			Role:    strings.ToLower(string(msg.Role)),
			Label:   roleLabel(msg.Role),
			Content: content,
			Tools:   msg.ToolCalls,
		}
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			hm.Time = formatShortTimestamp(msg.CreatedAt)
		}
		page.Messages = append(page.Messages, hm)
	}

	if e.options.IncludeEvents {
		for _, ev := range events {
			page.Events = append(page.Events, htmlEvent{
				Sequence: ev.Sequence,
				Type:     string(ev.Type),
				Time:     formatShortTimestamp(ev.Timestamp),
				Summary:  ev.Summary(80),
			})
		}
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, errors.Wrap(err, "render html")
	}
	return buf.Bytes(), nil
}

// render converts message Markdown to HTML.
func (e *HTMLExporter) render(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.markdown.Convert([]byte(strings.TrimSpace(content)), &buf); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}
	// goldmark escapes text and omits raw HTML, so the output is safe to embed.
	return template.HTML(buf.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// PAGE TEMPLATE
// =============================================================================

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<meta name="generator" content="{{.Generator}}">
{{- if .Date}}
<meta name="date" content="{{.Date}}">
{{- end}}
<title>{{.Title}}</title>
<style>
.dark-theme { --bg: #1a1b26; --fg: #c0caf5; --muted: #787c99; --card: #24283b; --user: #7aa2f7; --assistant: #9ece6a; --system: #e0af68; --tool: #bb9af7; --code: #16161e; }
.light-theme { --bg: #f5f5f7; --fg: #24292f; --muted: #6e7781; --card: #ffffff; --user: #0969da; --assistant: #1a7f37; --system: #9a6700; --tool: #8250df; --code: #f0f0f3; }
body { margin: 0; background: var(--bg); color: var(--fg); font: 15px/1.6 -apple-system, "Segoe UI", Roboto, sans-serif; }
.container { max-width: 860px; margin: 0 auto; padding: 24px; }
.header h1 { margin: 0 0 8px; }
.metadata { color: var(--muted); display: flex; flex-wrap: wrap; gap: 16px; align-items: center; }
.theme-toggle { margin-left: auto; background: var(--card); color: var(--fg); border: 1px solid var(--muted); border-radius: 4px; cursor: pointer; }
.message { background: var(--card); border-left: 4px solid var(--muted); border-radius: 6px; margin: 16px 0; padding: 12px 16px; }
.user-message { border-color: var(--user); }
.assistant-message { border-color: var(--assistant); }
.system-message { border-color: var(--system); }
.tool-message { border-color: var(--tool); }
.message-header { display: flex; justify-content: space-between; color: var(--muted); font-size: 13px; }
.role-label { font-weight: 600; }
pre { background: var(--code); padding: 12px; border-radius: 4px; overflow-x: auto; }
code { font-family: "JetBrains Mono", Consolas, monospace; font-size: 13px; }
.tool-call { border-top: 1px dashed var(--muted); margin-top: 8px; padding-top: 8px; }
table.events { width: 100%; border-collapse: collapse; font-size: 13px; }
table.events td, table.events th { border-bottom: 1px solid var(--muted); padding: 4px 8px; text-align: left; }
.footer { color: var(--muted); font-size: 12px; margin-top: 32px; text-align: center; }
</style>
</head>
<body class="{{.Theme}}-theme">
<div class="container">
{{- if .Metadata}}
<header class="header">
<h1>{{.Title}}</h1>
<div class="metadata">
{{- if .Persona}}<span class="meta-item"><strong>Persona:</strong> {{.Persona}}</span>{{end}}
{{- if .Model}}<span class="meta-item"><strong>Model:</strong> {{.Model}}</span>{{end}}
<span class="meta-item"><strong>Started:</strong> {{.Started}}</span>
{{- if .Duration}}<span class="meta-item"><strong>Duration:</strong> {{.Duration}}</span>{{end}}
<span class="meta-item"><strong>Messages:</strong> {{len .Messages}}</span>
<button class="theme-toggle" onclick="toggleTheme()" title="Toggle theme">[Theme]</button>
</div>
</header>
{{- else}}
<h1>{{.Title}}</h1>
{{- end}}
<main class="conversation">
{{- range .Messages}}
<div class="message {{.Role}}-message">
<div class="message-header"><span class="role-label">{{.Label}}</span>{{if .Time}}<span class="timestamp">{{.Time}}</span>{{end}}</div>
<div class="message-content">{{.Content}}</div>
{{- range .Tools}}
<div class="tool-call">
<p><strong>Tool:</strong> <code>{{.Name}}</code>{{if .Status}} ({{.Status}}){{end}}</p>
{{- if .Arguments}}
<pre><code>{{printf "%s" .Arguments}}</code></pre>
{{- end}}
{{- if .Result}}
<pre><code>{{.Result}}</code></pre>
{{- end}}
</div>
{{- end}}
</div>
{{- end}}
</main>
{{- if .Events}}
<section>
<h2>Events</h2>
<table class="events">
<tr><th>#</th><th>Type</th><th>Time</th><th>Summary</th></tr>
{{- range .Events}}
<tr><td>{{.Sequence}}</td><td>{{.Type}}</td><td>{{.Time}}</td><td>{{.Summary}}</td></tr>
{{- end}}
</table>
</section>
{{- end}}
<footer class="footer"><p>Exported from <strong>{{.Generator}}</strong> on {{.Exported}}</p></footer>
</div>
<script>
function toggleTheme() {
  const next = document.body.classList.contains('dark-theme') ? 'light' : 'dark';
  document.body.className = next + '-theme';
  localStorage.setItem('theme', next);
}
document.addEventListener('DOMContentLoaded', function () {
  const saved = localStorage.getItem('theme');
  if (saved) { document.body.className = saved + '-theme'; }
});
</script>
</body>
</html>
`))
