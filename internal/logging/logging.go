// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zerolog logger.
//
// Diagnostics go to stderr so stdout stays clean for command output and
// JSON. An optional log file is rotated by lumberjack.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Setup.
type Options struct {
	// Level is a zerolog level name ("debug", "warn", ...). Empty means warn.
	Level string
	// File, when set, receives JSON logs in addition to the console.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console forces the human-readable console writer on or off.
	// Nil selects it when stderr is a terminal.
	Console *bool
	// NoColor disables ANSI colors in the console writer.
	NoColor bool
	// Output overrides stderr (tests).
	Output io.Writer
}

// ParseLevel maps a level name to a zerolog level. "off" and "none" are
// accepted for disabled.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.WarnLevel, nil
	case "off", "none":
		return zerolog.Disabled, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, errors.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// Setup builds the logger described by opts, installs it as log.Logger and
// returns it along with a closer for the log file (a no-op without one).
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	console := isTerminal(out)
	if opts.Console != nil {
		console = *opts.Console
	}
	if console {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.Kitchen,
		}
	}

	var closer io.Closer = nopCloser{}
	writers := []io.Writer{out}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		writers = append(writers, rotator)
		closer = rotator
	}

	// Filtering happens on the global level so SetLevel reaches every
	// logger derived from this one.
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	zerolog.SetGlobalLevel(lvl)
	return logger, closer, nil
}

// SetLevel changes the process-wide minimum level. Safe to call from the
// config watcher goroutine.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
