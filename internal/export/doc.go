// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes recorded chat histories to shareable files.
//
// # Supported Formats
//
//   - Markdown: YAML front matter plus the conversation as headings
//   - HTML: single self-contained page with embedded CSS and a theme toggle
//   - JSON: the history and its events as returned by the API
//
// # Usage
//
//	exporter, err := export.ForFormat("md", opts)
//	path, err := export.ExportToFile(detail, exporter, opts, events...)
package export
