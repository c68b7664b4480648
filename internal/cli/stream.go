// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/config"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
	"github.com/jeranaias/sessionscope/internal/ui/watch"
)

// streamFunc runs one of the client's event streams.
type streamFunc func(ctx context.Context, handler api.EventHandler) (sse.Stats, error)

// eventPrinter writes stream events: one JSON object per line in JSON mode,
// otherwise one rendered line per event.
type eventPrinter struct {
	w       io.Writer
	theme   *styles.Theme
	enc     *json.Encoder
	payload bool
}

func (a *App) newEventPrinter(payload bool) *eventPrinter {
	p := &eventPrinter{w: a.Stdout, theme: a.theme, payload: payload}
	if a.jsonMode() {
		p.enc = json.NewEncoder(a.Stdout)
	}
	return p
}

func (p *eventPrinter) print(ev model.SessionEvent) error {
	if p.enc != nil {
		return p.enc.Encode(ev)
	}
	_, err := fmt.Fprintln(p.w, components.RenderEvent(p.theme, ev,
		components.EventOptions{Width: p.theme.Width, ShowPayload: p.payload}))
	return err
}

// followPlain prints events until the stream ends, a terminal event
// arrives, or limit events were printed (0 means no limit). Reloaded output
// settings apply from the next event on.
func (a *App) followPlain(ctx context.Context, stream streamFunc, payload bool, limit int, reloads <-chan *config.Config) error {
	printer := a.newEventPrinter(payload)
	count := 0
	stats, err := stream(ctx, func(ev model.SessionEvent) error {
		if a.applyReload(reloads) {
			printer.theme = a.theme
		}
		if err := printer.print(ev); err != nil {
			return err
		}
		count++
		if ev.IsTerminal() || (limit > 0 && count >= limit) {
			return sse.ErrStop
		}
		return nil
	})

	a.logger.Debug().Int("events", stats.Events).Int("skipped", stats.Skipped).
		Int64("bytes", stats.Bytes).Bool("done", stats.Done).Msg("stream closed")
	if stats.Skipped > 0 && !a.jsonMode() {
		fmt.Fprintln(a.Stderr, a.theme.Muted.Render(fmt.Sprintf("skipped %d malformed event(s)", stats.Skipped)))
	}
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// follow shows a stream in the watch view on a terminal and as plain lines
// otherwise.
func (a *App) follow(ctx context.Context, opts watch.Options, plain, payload bool) error {
	reloads := a.watchConfig(ctx)
	if plain || a.jsonMode() || !isTerminal(a.Stdout) {
		return a.followPlain(ctx, opts.Stream, payload, 0, reloads)
	}

	opts.Theme = a.theme
	opts.Markdown = a.cfg.Output.Markdown
	err := watch.Run(ctx, opts)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// awaitReply follows a session's stream until the assistant answers the
// message sentID. Deltas of the reply are passed to onDelta as they arrive.
// The stream starts with the session backlog, so everything before sentID
// is ignored.
func (a *App) awaitReply(ctx context.Context, sessionID, sentID string, onDelta func(string)) (*model.Message, error) {
	var (
		seen  bool
		reply *model.Message
	)
	_, err := a.client.StreamSessionEvents(ctx, sessionID, func(ev model.SessionEvent) error {
		switch ev.Type {
		case model.EventMessage:
			msg, ok := ev.Message()
			if !ok {
				return nil
			}
			if msg.ID == sentID {
				seen = true
				return nil
			}
			if seen && msg.Role == model.RoleAssistant {
				reply = &msg
				return sse.ErrStop
			}
		case model.EventMessageDelta:
			if d, ok := ev.Delta(); ok && seen && onDelta != nil {
				onDelta(d.Content)
			}
		case model.EventError:
			if seen {
				return errors.Errorf("backend error: %s", ev.Summary(200))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errors.New("stream ended before the reply arrived")
	}
	return reply, nil
}
