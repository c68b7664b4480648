// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := VersionData{
				Version:   Version,
				GitCommit: GitCommit,
				BuildDate: BuildDate,
				GoVersion: runtime.Version(),
			}
			return a.emit(cmd, data, func(w io.Writer) error {
				fmt.Fprintf(w, "sessionscope %s\n", data.Version)
				fmt.Fprintf(w, "  commit:  %s\n", data.GitCommit)
				fmt.Fprintf(w, "  built:   %s\n", data.BuildDate)
				fmt.Fprintf(w, "  go:      %s\n", data.GoVersion)
				return nil
			})
		},
	}
}
