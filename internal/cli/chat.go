// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/config"
	"github.com/jeranaias/sessionscope/internal/model"
)

const chatHelp = `Commands:
  /help            Show this help
  /info            Show the current session
  /model <id>      Use another model for the next messages
  /new             Start a fresh session with the same persona
  /quit, /exit     Leave the chat (Ctrl+D works too)`

// =============================================================================
// LINE INPUT
// =============================================================================

// prompter reads one line of user input per call.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linerPrompter provides input history and line editing on a terminal.
type linerPrompter struct {
	line        *liner.State
	historyFile string
}

func newLinerPrompter() *linerPrompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	p := &linerPrompter{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		p.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(p.historyFile); err == nil {
			p.line.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if err == liner.ErrPromptAborted {
		return "", io.EOF
	}
	return input, err
}

func (p *linerPrompter) AppendHistory(line string) {
	p.line.AppendHistory(line)
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (p *linerPrompter) Close() error {
	if p.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.historyFile), 0700); err == nil {
			if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				p.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return p.line.Close()
}

// pipePrompter reads lines from a non-terminal stdin.
type pipePrompter struct {
	in  *lineReader
	out io.Writer
}

func (p *pipePrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.readLine()
	if err == nil {
		fmt.Fprintln(p.out)
	}
	return line, err
}

func (p *pipePrompter) AppendHistory(string) {}
func (p *pipePrompter) Close() error        { return nil }

func (a *App) newPrompter() prompter {
	if isTerminal(a.Stdin) && isTerminal(a.Stdout) {
		return newLinerPrompter()
	}
	return &pipePrompter{in: a.input(), out: a.Stdout}
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

// chatState is the REPL's view of the conversation.
type chatState struct {
	session *model.Session
	model   string
	reloads <-chan *config.Config
}

func chatCmd(a *App) *cobra.Command {
	var (
		sessionID string
		req       api.CreateSessionRequest
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the backend in an interactive prompt",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonMode() {
				return usageErrorf("chat is interactive; use `session send --json` for scripted use")
			}
			ctx := cmd.Context()

			var (
				s   *model.Session
				err error
			)
			if sessionID != "" {
				s, err = a.client.GetSession(ctx, sessionID)
			} else {
				s, err = a.client.CreateSession(ctx, req)
			}
			if err != nil {
				return err
			}

			reloads := a.watchConfig(ctx)
			in := a.newPrompter()
			defer in.Close()

			st := &chatState{session: s, model: req.Model, reloads: reloads}
			fmt.Fprintln(a.Stdout, a.theme.Title.Render("Chatting in "+s.DisplayTitle()))
			fmt.Fprintln(a.Stdout, a.theme.Muted.Render("session "+s.ID+"  /help for commands, Ctrl+D to leave"))
			return a.chatLoop(ctx, in, st)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sessionID, "session", "", "continue an existing session")
	f.StringVar(&req.Title, "title", "", "title of the new session")
	f.StringVar(&req.Persona, "persona", "", "persona of the new session")
	f.StringVar(&req.Model, "model", "", "model to chat with")
	return cmd
}

func (a *App) chatLoop(ctx context.Context, in prompter, st *chatState) error {
	for {
		a.applyReload(st.reloads)
		input, err := in.Prompt("you> ")
		if err == io.EOF {
			fmt.Fprintln(a.Stdout)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read input")
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := a.chatCommand(ctx, st, input)
			if err != nil {
				DisplayError(a.Stderr, a.theme, err, a.cfg.API.BaseURL)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := a.chatTurn(ctx, st, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			DisplayError(a.Stderr, a.theme, err, a.cfg.API.BaseURL)
		}
	}
}

// chatTurn sends one message and streams the reply to stdout.
func (a *App) chatTurn(ctx context.Context, st *chatState, content string) error {
	sent, err := a.client.SendMessage(ctx, st.session.ID, api.SendMessageRequest{Content: content, Model: st.model})
	if err != nil {
		return err
	}

	fmt.Fprint(a.Stdout, a.theme.RoleStyle(model.RoleAssistant).Render("assistant> "))
	streamed := false
	reply, err := a.awaitReply(ctx, st.session.ID, sent.ID, func(chunk string) {
		streamed = true
		fmt.Fprint(a.Stdout, chunk)
	})
	if err != nil {
		fmt.Fprintln(a.Stdout)
		return err
	}
	if !streamed {
		fmt.Fprint(a.Stdout, reply.Content)
	}
	fmt.Fprintln(a.Stdout)
	return nil
}

// chatCommand handles a slash command. It reports whether to leave.
func (a *App) chatCommand(ctx context.Context, st *chatState, input string) (bool, error) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		fmt.Fprintln(a.Stdout, chatHelp)

	case "/info":
		s, err := a.client.GetSession(ctx, st.session.ID)
		if err != nil {
			return false, err
		}
		st.session = s
		fmt.Fprint(a.Stdout, renderSession(a.theme, s))

	case "/model":
		if len(fields) != 2 {
			return false, usageErrorf("usage: /model <id>")
		}
		st.model = fields[1]
		fmt.Fprintln(a.Stdout, a.theme.RenderInfo("next messages use "+st.model))

	case "/new":
		s, err := a.client.CreateSession(ctx, api.CreateSessionRequest{Persona: st.session.Persona, Model: st.model})
		if err != nil {
			return false, err
		}
		st.session = s
		fmt.Fprintln(a.Stdout, a.theme.RenderSuccess("new session "+s.ID))

	default:
		return false, usageErrorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}
