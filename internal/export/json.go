// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the complete history and its events as JSON.
// Display options do not filter the output.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Document is the JSON export layout.
type Document struct {
	Generator string               `json:"generator"`
	Exported  time.Time            `json:"exported"`
	History   *model.HistoryDetail `json:"history"`
	Events    []model.SessionEvent `json:"events"`
}

// Export converts a history to indented JSON.
func (e *JSONExporter) Export(detail *model.HistoryDetail, events []model.SessionEvent) ([]byte, error) {
	if err := validate(detail); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.SessionEvent{}
	}
	doc := Document{
		Generator: generator,
		Exported:  e.options.now().UTC(),
		History:   detail,
		Events:    events,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
