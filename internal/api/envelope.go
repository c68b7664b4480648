// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jeranaias/sessionscope/internal/model"
)

// maxBodySize caps how much of a response body is read (10MB).
const maxBodySize = 10 * 1024 * 1024

// Envelope is the wrapper around every REST response.
type Envelope struct {
	Data   json.RawMessage `json:"data"`
	Meta   *Meta           `json:"meta,omitempty"`
	Errors []ErrorDetail   `json:"errors,omitempty"`
}

// Meta carries pagination and tracing data.
type Meta struct {
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	Total     int    `json:"total,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Page returns the pagination part of m. A nil Meta yields a zero Page.
func (m *Meta) Page() model.Page {
	if m == nil {
		return model.Page{}
	}
	return model.Page{Limit: m.Limit, Offset: m.Offset, Total: m.Total}
}

// ErrorDetail is one entry of the envelope's errors array.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (d ErrorDetail) String() string {
	msg := d.Message
	if msg == "" {
		msg = d.Code
	}
	if d.Field != "" {
		return d.Field + ": " + msg
	}
	return msg
}

// unwrap reads resp and decodes its data into out (which may be nil).
// The returned error is an *Error without a message; callers pass it to
// ProcessError.
func unwrap(resp *http.Response, out interface{}) (*Meta, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Cause: err}
	}

	requestID := resp.Header.Get(headerRequestID)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		if !ok {
			return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode, RequestID: requestID}
		}
		return nil, nil
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if !ok {
			return nil, &Error{
				Kind:      KindHTTP,
				Status:    resp.StatusCode,
				Details:   []ErrorDetail{{Message: excerpt(body)}},
				RequestID: requestID,
			}
		}
		return nil, &Error{Kind: KindDecode, Status: resp.StatusCode, RequestID: requestID, Cause: err}
	}

	if env.Meta != nil && env.Meta.RequestID != "" {
		requestID = env.Meta.RequestID
	}

	if !ok {
		return env.Meta, &Error{
			Kind:      KindHTTP,
			Status:    resp.StatusCode,
			Details:   env.Errors,
			RequestID: requestID,
		}
	}
	if len(env.Errors) > 0 {
		return env.Meta, &Error{
			Kind:      KindAPI,
			Status:    resp.StatusCode,
			Details:   env.Errors,
			RequestID: requestID,
		}
	}

	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Meta, &Error{Kind: KindDecode, Status: resp.StatusCode, RequestID: requestID, Cause: err}
		}
	}
	return env.Meta, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
