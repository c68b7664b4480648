// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Execute runs the command line of the current process.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, NewApp(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
}

// Run executes args against a. Errors are reported on a's streams before
// being returned, so callers only pick the exit code.
func Run(ctx context.Context, a *App, args []string) error {
	root := NewRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.Stdin)
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)

	cmd, err := root.ExecuteContextC(ctx)
	defer a.close()
	if err == nil {
		return nil
	}

	if isCobraUsageError(err) {
		err = &UsageError{Err: err}
	}
	if cmd == nil {
		cmd = root
	}
	var reported reportedError
	if errors.As(err, &reported) {
		return err
	}

	if a.jsonMode() {
		_ = NewJSONErrorResponse(cmd.CommandPath(), err).Print(a.Stdout)
	} else {
		baseURL := ""
		if a.cfg != nil {
			baseURL = a.cfg.API.BaseURL
		}
		DisplayError(a.Stderr, a.theme, err, baseURL)
	}
	return err
}

// isCobraUsageError recognizes the untyped errors cobra returns for
// unknown commands.
func isCobraUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown shorthand") ||
		strings.HasPrefix(msg, "required flag")
}

// NewRootCmd builds the command tree bound to a.
func NewRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "sessionscope",
		Short:         "Browse, replay and chat with a chat backend from the terminal",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.sessionscope/config.toml)")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "backend origin, e.g. http://127.0.0.1:8080")
	pf.StringVar(&a.flags.token, "token", "", "bearer token for the backend")
	pf.BoolVar(&a.flags.json, "json", false, "print machine-readable JSON")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.AddCommand(
		healthCmd(a),
		catalogCmd(a),
		historyCmd(a),
		archiveCmd(a),
		replayCmd(a),
		sessionCmd(a),
		chatCmd(a),
		configCmd(a),
		loginCmd(a),
		devserverCmd(a),
		versionCmd(a),
	)
	return root
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs reporting a usage error.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return &UsageError{Err: err}
		}
		return nil
	}
}
