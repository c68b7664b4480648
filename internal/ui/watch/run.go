// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sessionscope/internal/model"
)

// Run shows the watch view until the user quits or ctx is canceled. The
// stream is canceled when the view closes.
func Run(ctx context.Context, opts Options) error {
	if opts.Stream == nil {
		return errors.New("watch: no stream to follow")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		stats, err := opts.Stream(ctx, func(ev model.SessionEvent) error {
			m.Push(ev)
			return nil
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug().Err(err).Str("component", "watch").Msg("stream ended with error")
		}
		m.buffer.finish(stats, err)
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrap(err, "watch view failed")
	}
	return nil
}
