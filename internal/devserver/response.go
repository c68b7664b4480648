// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// ENVELOPE
// ============================================================================

type envelope struct {
	Data   interface{}   `json:"data"`
	Meta   *meta         `json:"meta,omitempty"`
	Errors []errorDetail `json:"errors,omitempty"`
}

type meta struct {
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ============================================================================
// ERRORS
// ============================================================================

// apiError is a handler failure rendered as an error envelope.
type apiError struct {
	status int
	detail errorDetail
}

func (e *apiError) Error() string {
	return e.detail.Message
}

func errNotFound(kind, id string) *apiError {
	return &apiError{http.StatusNotFound, errorDetail{Code: "not_found", Message: fmt.Sprintf("%s %s not found", kind, id)}}
}

func errUnknown(field, value string) *apiError {
	return &apiError{http.StatusBadRequest, errorDetail{Code: "invalid_argument", Message: fmt.Sprintf("unknown %s %q", field, value), Field: field}}
}

func errInvalid(field, message string) *apiError {
	return &apiError{http.StatusBadRequest, errorDetail{Code: "invalid_argument", Message: message, Field: field}}
}

func errConflict(message string) *apiError {
	return &apiError{http.StatusConflict, errorDetail{Code: "conflict", Message: message}}
}

// ============================================================================
// WRITERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

// writeData writes a success envelope. page may be nil.
func writeData(w http.ResponseWriter, r *http.Request, status int, data interface{}, page *meta) {
	m := page
	if m == nil {
		m = &meta{}
	}
	m.RequestID = requestIDFrom(r.Context())
	writeJSON(w, status, envelope{Data: data, Meta: m})
}

// writeError writes an error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := err.(*apiError)
	if !ok {
		ae = &apiError{http.StatusInternalServerError, errorDetail{Code: "internal", Message: err.Error()}}
	}
	writeJSON(w, ae.status, envelope{
		Meta:   &meta{RequestID: requestIDFrom(r.Context())},
		Errors: []errorDetail{ae.detail},
	})
}
