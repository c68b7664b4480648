// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError covers API failures and everything unclassified
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a command line the command cannot run with.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// ConfigError is a configuration that failed to load or validate.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// reportedError has already been printed by the command that returned it.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

func usageErrorf(format string, args ...interface{}) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitGeneralError
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError prints err for a human on w. API errors keep the message of
// the call that failed and gain a hint for the common failure causes.
func DisplayError(w io.Writer, theme *styles.Theme, err error, baseURL string) {
	if err == nil {
		return
	}
	if theme == nil {
		theme = styles.NewTheme(styles.Options{Color: styles.ColorNever, Output: w})
	}

	fmt.Fprintln(w, theme.RenderError("Error: "+err.Error()))

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		var usage *UsageError
		if errors.As(err, &usage) {
			fmt.Fprintln(w, theme.Muted.Render("Run with --help for usage."))
		}
		return
	}

	if apiErr.RequestID != "" {
		fmt.Fprintln(w, theme.Muted.Render("request id: "+apiErr.RequestID))
	}
	if hint := errorHint(apiErr, baseURL); hint != "" {
		fmt.Fprintln(w, theme.Muted.Render("hint: "+hint))
	}
}

func errorHint(err *api.Error, baseURL string) string {
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "store a token with `sessionscope login` or pass --token"
	case errors.Is(err, api.ErrNotFound):
		return "check the ID; `sessionscope history list` shows recorded sessions"
	case err.Kind == api.KindNetwork:
		if baseURL == "" {
			return "is the backend running?"
		}
		return fmt.Sprintf("is the backend running at %s?", baseURL)
	case err.Kind == api.KindTimeout:
		return "raise api.timeout_secs for slow backends"
	}
	return ""
}
