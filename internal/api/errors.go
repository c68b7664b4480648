// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes client errors for handling.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindCanceled
	KindHTTP
	KindAPI
	KindDecode
	KindInvalid
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindHTTP:
		return "http"
	case KindAPI:
		return "api"
	case KindDecode:
		return "decode"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by status code through errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrServer       = errors.New("server error")

	// ErrInvalidArgument marks a request rejected before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is the processed error returned by every Client method.
type Error struct {
	Kind      ErrorKind
	Message   string        // what the caller was doing
	Status    int           // HTTP status, 0 when no response arrived
	Details   []ErrorDetail // entries of the envelope's errors array
	RequestID string
	Cause     error
}

func (e *Error) Error() string {
	reason := e.reason()
	switch {
	case e.Message == "":
		return reason
	case reason == "":
		return e.Message
	default:
		return e.Message + ": " + reason
	}
}

func (e *Error) reason() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	if len(e.Details) > 0 {
		d := e.Details[0]
		if len(e.Details) > 1 {
			return fmt.Sprintf("%s (and %d more)", d.String(), len(e.Details)-1)
		}
		return d.String()
	}
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	return ""
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the status sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// Temporary reports whether repeating the same call might succeed.
// The client never retries on its own; callers decide.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTP:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return false
}

// =============================================================================
// ERROR PROCESSING
// =============================================================================

// ProcessError turns any failure of a client call into an *Error carrying
// msg as its message. It returns nil for a nil err.
//
// An *Error produced by response unwrapping keeps its kind, status and
// details and gains the context. Any other error is classified by cause.
func ProcessError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message == "" {
			out := *apiErr
			out.Message = msg
			return &out
		}
		return &Error{
			Kind:      apiErr.Kind,
			Message:   msg,
			Status:    apiErr.Status,
			Details:   apiErr.Details,
			RequestID: apiErr.RequestID,
			Cause:     err,
		}
	}

	return &Error{Kind: classify(err), Message: msg, Cause: err}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrInvalidArgument) {
		return KindInvalid
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindDecode
	}

	return KindNetwork
}

// KindOf returns the kind of err, or KindNetwork for foreign errors.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return classify(err)
}

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
