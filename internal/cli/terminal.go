// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for wrapping
	MinTerminalWidth = 40
)

// fdOf returns the descriptor behind r or w when it is an *os.File.
func fdOf(v interface{}) (int, bool) {
	f, ok := v.(*os.File)
	if !ok {
		return 0, false
	}
	return int(f.Fd()), true
}

// isTerminal reports whether v is an interactive terminal.
func isTerminal(v interface{}) bool {
	fd, ok := fdOf(v)
	return ok && term.IsTerminal(fd)
}

// terminalWidth returns the width of w, DefaultTerminalWidth when w is not
// a terminal.
func terminalWidth(w io.Writer) int {
	fd, ok := fdOf(w)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// =============================================================================
// INTERACTIVE INPUT
// =============================================================================

// lineReader reads answers from a non-terminal stdin. It is shared so that
// buffered input is not lost between prompts.
type lineReader struct {
	r *bufio.Reader
}

func (l *lineReader) readLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret prompts for a value without echo on a terminal. Piped input is
// read as a plain line.
func (a *App) readSecret(prompt string) (string, error) {
	fmt.Fprint(a.Stderr, prompt)
	if fd, ok := fdOf(a.Stdin); ok && term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(a.Stderr)
		if err != nil {
			return "", errors.Wrap(err, "failed to read input")
		}
		return strings.TrimSpace(string(secret)), nil
	}
	line, err := a.input().readLine()
	if err != nil {
		return "", errors.Wrap(err, "failed to read input")
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question. yes skips the prompt. JSON mode requires
// yes since there is nobody to answer.
func (a *App) confirm(yes bool, action string) (bool, error) {
	if yes {
		return true, nil
	}
	if a.jsonMode() {
		return false, usageErrorf("confirmation required: pass --yes to %s in JSON mode", action)
	}

	fmt.Fprintf(a.Stderr, "Are you sure you want to %s? [y/N]: ", action)
	line, err := a.input().readLine()
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to read confirmation")
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
