// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/sessionscope/internal/api"
)

// JSONResponse is the envelope every command prints in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorKind classifies API failures ("network", "http", ...)
	ErrorKind string `json:"error_kind,omitempty"`

	// Status is the HTTP status of a failed API call
	Status int `json:"status,omitempty"`

	// RequestID correlates a failed call with backend logs
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command path that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response. API errors also carry
// their kind, status and request ID.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	resp := &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		resp.ErrorKind = apiErr.Kind.String()
		resp.Status = apiErr.Status
		resp.RequestID = apiErr.RequestID
	}
	return resp
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// HealthData is the data of the health command.
type HealthData struct {
	BaseURL   string `json:"base_url"`
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Healthy   bool   `json:"healthy"`
	LatencyMs int64  `json:"latency_ms"`
}

// ListData wraps one page of a listing.
type ListData struct {
	Items interface{} `json:"items"`
	Page  interface{} `json:"page,omitempty"`
}

// ExportData is the data of history export.
type ExportData struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Path   string `json:"path"`
	Events int    `json:"events"`
}

// SyncData summarizes an archive pull.
type SyncData struct {
	Pulled  int           `json:"pulled"`
	Failed  []SyncFailure `json:"failed,omitempty"`
	Results interface{}   `json:"results"`
}

// SyncFailure is one history that could not be pulled.
type SyncFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ConfigData is the data of config show.
type ConfigData struct {
	Path   string      `json:"config_path"`
	Config interface{} `json:"config"`
}
