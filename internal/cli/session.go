// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
	"github.com/jeranaias/sessionscope/internal/ui/watch"
)

func sessionCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage live chat sessions",
	}
	cmd.AddCommand(
		sessionListCmd(a),
		sessionCreateCmd(a),
		sessionShowCmd(a),
		sessionDeleteCmd(a),
		sessionSendCmd(a),
		sessionStreamCmd(a),
		sessionWatchCmd(a),
	)
	return cmd
}

func sessionListCmd(a *App) *cobra.Command {
	var opts api.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Limit < 0 || opts.Offset < 0 {
				return usageErrorf("--limit and --offset must not be negative")
			}
			sessions, page, err := a.client.ListSessions(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, ListData{Items: sessions, Page: page}, func(w io.Writer) error {
				fmt.Fprintln(w, components.SessionTable(a.theme, sessions))
				if footer := pageFooter(page, len(sessions), false); footer != "" {
					fmt.Fprintln(w, a.theme.Muted.Render(footer))
				}
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.Limit, "limit", 20, "page size")
	f.IntVar(&opts.Offset, "offset", 0, "number of sessions to skip")
	f.StringVar(&opts.Persona, "persona", "", "only sessions of this persona")
	f.StringVar(&opts.Search, "search", "", "only sessions whose title matches")
	return cmd
}

func sessionCreateCmd(a *App) *cobra.Command {
	var req api.CreateSessionRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new session",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.CreateSession(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.emit(cmd, s, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Created session "+s.ID))
				fmt.Fprint(w, renderSession(a.theme, s))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Title, "title", "", "session title")
	f.StringVar(&req.Persona, "persona", "", "persona ID (default: the backend's default)")
	f.StringVar(&req.Model, "model", "", "model ID (default: the persona's model)")
	return cmd
}

func sessionShowCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, s, func(w io.Writer) error {
				fmt.Fprint(w, renderSession(a.theme, s))
				return nil
			})
		},
	}
}

func renderSession(theme *styles.Theme, s *model.Session) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render(fmt.Sprintf("%-9s", label)), theme.Value.Render(value))
	}
	created := "-"
	if !s.CreatedAt.IsZero() {
		created = s.CreatedAt.Local().Format("2006-01-02 15:04:05")
	}
	row("ID", s.ID)
	row("Title", s.DisplayTitle())
	row("Persona", s.Persona)
	row("Model", s.Model)
	row("Status", string(s.Status))
	row("Created", created)
	row("Messages", strconv.Itoa(s.MessageCount))
	return b.String()
}

func sessionDeleteCmd(a *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "End and delete a session",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := a.confirm(yes, "delete session "+id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.Stderr, "Cancelled.")
				return nil
			}
			if err := a.client.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"deleted": id}, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Deleted session "+id))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// sendData is the JSON result of session send.
type sendData struct {
	Sent  *model.Message `json:"sent"`
	Reply *model.Message `json:"reply,omitempty"`
}

func sessionSendCmd(a *App) *cobra.Command {
	var (
		modelID string
		noWait  bool
	)

	cmd := &cobra.Command{
		Use:   "send <id> <message>...",
		Short: "Send a message and print the assistant's reply",
		Args:  minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			sent, err := a.client.SendMessage(ctx, id, api.SendMessageRequest{
				Content: strings.Join(args[1:], " "),
				Model:   modelID,
			})
			if err != nil {
				return err
			}
			if noWait {
				return a.emit(cmd, sendData{Sent: sent}, func(w io.Writer) error {
					fmt.Fprintln(w, a.theme.RenderSuccess("Sent "+sent.ID))
					return nil
				})
			}

			var onDelta func(string)
			streamed := false
			if !a.jsonMode() {
				onDelta = func(chunk string) {
					streamed = true
					fmt.Fprint(a.Stdout, chunk)
				}
			}
			reply, err := a.awaitReply(ctx, id, sent.ID, onDelta)
			if err != nil {
				return err
			}
			return a.emit(cmd, sendData{Sent: sent, Reply: reply}, func(w io.Writer) error {
				if !streamed {
					fmt.Fprint(w, reply.Content)
				}
				fmt.Fprintln(w)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&modelID, "model", "", "model for this message")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "return once the message is accepted")
	return cmd
}

func sessionStreamCmd(a *App) *cobra.Command {
	var (
		payload bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "stream <id>",
		Short: "Print a session's events as they happen",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			reloads := a.watchConfig(cmd.Context())
			return a.followPlain(cmd.Context(), func(ctx context.Context, h api.EventHandler) (sse.Stats, error) {
				return a.client.StreamSessionEvents(ctx, id, h)
			}, payload, limit, reloads)
		},
	}
	cmd.Flags().BoolVar(&payload, "payload", false, "print each event's JSON payload")
	cmd.Flags().IntVar(&limit, "max", 0, "stop after this many events")
	return cmd
}

func sessionWatchCmd(a *App) *cobra.Command {
	var plain, payload bool

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Follow a session in the live view",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.client.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			return a.follow(ctx, watch.Options{
				Title: s.DisplayTitle(),
				Stream: func(ctx context.Context, h api.EventHandler) (sse.Stats, error) {
					return a.client.StreamSessionEvents(ctx, s.ID, h)
				},
			}, plain, payload)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print events as lines instead of the live view")
	cmd.Flags().BoolVar(&payload, "payload", false, "with --plain, print each event's JSON payload")
	return cmd
}
