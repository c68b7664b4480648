// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/devserver"
)

func devserverCmd(a *App) *cobra.Command {
	var (
		addr   string
		noSeed bool
		opts   devserver.Options
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory backend with sample histories for local testing",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Seed = !noSeed
			opts.Logger = &a.logger
			srv := devserver.New(opts)

			ready := make(chan string, 1)
			go func() {
				bound, ok := <-ready
				if !ok {
					return
				}
				fmt.Fprintf(a.Stderr, "dev server listening on http://%s (Ctrl+C to stop)\n", bound)
				if opts.Token != "" {
					fmt.Fprintln(a.Stderr, a.theme.Muted.Render("bearer token required"))
				}
			}()
			err := srv.ListenAndServe(cmd.Context(), addr, ready)
			close(ready)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", devserver.DefaultAddr, "listen address")
	f.StringVar(&opts.Token, "require-token", "", "require this bearer token")
	f.Float64Var(&opts.RatePerSec, "rate", 0, "requests per second limit (0 = unlimited)")
	f.DurationVar(&opts.ReplayMaxGap, "max-gap", time.Second, "longest pause between replayed events at speed 1")
	f.BoolVar(&opts.StreamNoise, "noise", false, "start every stream with a malformed line")
	f.BoolVar(&noSeed, "empty", false, "start without sample histories")
	return cmd
}
