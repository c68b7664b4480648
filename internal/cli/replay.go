// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/watch"
)

func replayCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Play back recorded sessions",
	}

	var speed float64
	start := replayControl(a, "start <id>", "Start (or restart) playback", 1,
		func(ctx context.Context, id string, _ []string) (*model.ReplayStatus, error) {
			if speed == 0 {
				speed = a.cfg.Replay.DefaultSpeed
			}
			return a.client.StartReplay(ctx, id, speed)
		})
	start.Flags().Float64Var(&speed, "speed", 0, "playback speed factor (default from config)")

	cmd.AddCommand(
		start,
		replayControl(a, "pause <id>", "Pause playback", 1,
			func(ctx context.Context, id string, _ []string) (*model.ReplayStatus, error) {
				return a.client.PauseReplay(ctx, id)
			}),
		replayControl(a, "resume <id>", "Resume paused playback", 1,
			func(ctx context.Context, id string, _ []string) (*model.ReplayStatus, error) {
				return a.client.ResumeReplay(ctx, id)
			}),
		replayControl(a, "stop <id>", "Stop playback", 1,
			func(ctx context.Context, id string, _ []string) (*model.ReplayStatus, error) {
				return a.client.StopReplay(ctx, id)
			}),
		replayControl(a, "seek <id> <position>", "Jump to an event position", 2,
			func(ctx context.Context, id string, rest []string) (*model.ReplayStatus, error) {
				pos, err := strconv.Atoi(rest[0])
				if err != nil || pos < 0 {
					return nil, usageErrorf("position must be a non-negative integer, got %q", rest[0])
				}
				return a.client.SeekReplay(ctx, id, pos)
			}),
		replayControl(a, "speed <id> <factor>", "Change the playback speed", 2,
			func(ctx context.Context, id string, rest []string) (*model.ReplayStatus, error) {
				factor, err := strconv.ParseFloat(rest[0], 64)
				if err != nil {
					return nil, usageErrorf("speed must be a number, got %q", rest[0])
				}
				return a.client.SetReplaySpeed(ctx, id, factor)
			}),
		replayControl(a, "status <id>", "Show playback state", 1,
			func(ctx context.Context, id string, _ []string) (*model.ReplayStatus, error) {
				return a.client.GetReplayStatus(ctx, id)
			}),
		replayFollowCmd(a),
	)
	return cmd
}

// replayControl builds a command that issues one control call and prints
// the resulting status.
func replayControl(a *App, use, short string, nargs int,
	call func(ctx context.Context, id string, rest []string) (*model.ReplayStatus, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := call(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return a.emit(cmd, st, func(w io.Writer) error {
				fmt.Fprintln(w, components.ReplayBar(a.theme, *st, a.theme.Width))
				return nil
			})
		},
	}
}

func replayFollowCmd(a *App) *cobra.Command {
	var (
		start          bool
		speed          float64
		plain, payload bool
	)

	cmd := &cobra.Command{
		Use:   "follow <id>",
		Short: "Watch a replay in the live view with playback controls",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			if start {
				if speed == 0 {
					speed = a.cfg.Replay.DefaultSpeed
				}
				if _, err := a.client.StartReplay(ctx, id, speed); err != nil {
					return err
				}
			}

			title := "Replay " + id
			if detail, err := a.client.GetHistory(ctx, id); err == nil {
				title = "Replay: " + detail.DisplayTitle()
			} else {
				a.logger.Debug().Err(err).Str("history", id).Msg("no title for replay")
			}

			return a.follow(ctx, watch.Options{
				Title:     title,
				HistoryID: id,
				Replayer:  a.client,
				Stream: func(ctx context.Context, h api.EventHandler) (sse.Stats, error) {
					return a.client.StreamReplay(ctx, id, h)
				},
			}, plain, payload)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&start, "start", false, "start playback before following")
	f.Float64Var(&speed, "speed", 0, "with --start, the playback speed (default from config)")
	f.BoolVar(&plain, "plain", false, "print events as lines instead of the live view")
	f.BoolVar(&payload, "payload", false, "with --plain, print each event's JSON payload")
	return cmd
}
