// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/archive"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/util"
)

func archiveCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Work with the local copy of pulled histories",
	}
	cmd.AddCommand(
		archiveListCmd(a),
		archiveShowCmd(a),
		archiveSearchCmd(a),
		archiveDeleteCmd(a),
		archiveSyncCmd(a),
	)
	return cmd
}

func archiveListCmd(a *App) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived histories, most recent first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, page, err := store.ListHistories(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return a.emit(cmd, ListData{Items: entries, Page: page}, func(w io.Writer) error {
				summaries := make([]model.HistorySummary, len(entries))
				for i, e := range entries {
					summaries[i] = e.HistorySummary
				}
				fmt.Fprintln(w, components.HistoryTable(a.theme, summaries))
				if footer := pageFooter(page, len(entries), false); footer != "" {
					fmt.Fprintln(w, a.theme.Muted.Render(footer+"  archive: "+store.Path()))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of histories to skip")
	return cmd
}

func archiveShowCmd(a *App) *cobra.Command {
	var noMarkdown bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived transcript without contacting the backend",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			detail, err := store.GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.emit(cmd, detail, func(w io.Writer) error {
				fmt.Fprint(w, renderHistory(a.theme, detail, a.cfg.Output.Markdown && !noMarkdown))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noMarkdown, "no-markdown", false, "print message bodies as plain text")
	return cmd
}

func archiveSearchCmd(a *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Full-text search over archived messages",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			hits, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
			if errors.Is(err, archive.ErrEmptyQuery) {
				return &UsageError{Err: err}
			}
			if err != nil {
				return err
			}
			return a.emit(cmd, hits, func(w io.Writer) error {
				tb := components.Table{
					Columns: []components.Column{
						{Title: "HISTORY", MaxWidth: 12},
						{Title: "TITLE", MaxWidth: 24},
						{Title: "ROLE"},
						{Title: "#", AlignRight: true},
						{Title: "SNIPPET", Flex: true},
					},
					Empty: "No matches.",
				}
				for _, h := range hits {
					tb.Rows = append(tb.Rows, []string{
						h.HistoryID, h.Title, h.Role.DisplayName(), strconv.Itoa(h.Position), util.OneLine(h.Snippet),
					})
				}
				fmt.Fprintln(w, tb.Render(a.theme))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of hits")
	return cmd
}

func archiveDeleteCmd(a *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a history from the local archive",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := a.confirm(yes, "remove "+id+" from the archive")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.Stderr, "Cancelled.")
				return nil
			}

			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"deleted": id}, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Removed "+id+" from the archive"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func archiveSyncCmd(a *App) *cobra.Command {
	var (
		opts    api.ListOptions
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull every recorded session into the local archive",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			results, err := a.newSyncer(store).PullAll(ctx, opts)
			return a.reportSync(cmd, results, err)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Persona, "persona", "", "only sessions of this persona")
	f.StringVar(&opts.Search, "search", "", "only sessions matching this text")
	f.DurationVar(&timeout, "timeout", 0, "stop after this long, keeping what was pulled")
	return cmd
}

// reportSync prints pull results. Partial failures make the command fail
// after everything that could be pulled was saved.
func (a *App) reportSync(cmd *cobra.Command, results []archive.Result, runErr error) error {
	failed := archive.Failed(results)
	data := SyncData{Pulled: len(results) - len(failed), Results: results}
	for _, r := range failed {
		data.Failed = append(data.Failed, SyncFailure{ID: r.ID, Error: r.Err.Error()})
	}

	if runErr != nil && len(results) == 0 {
		return runErr
	}

	var failure error
	switch {
	case runErr != nil:
		failure = errors.Wrap(runErr, "sync interrupted")
	case len(failed) > 0:
		failure = errors.Errorf("%d of %d histories failed to pull", len(failed), len(results))
	}

	if a.jsonMode() {
		resp := NewJSONResponse(cmd.CommandPath(), data)
		if failure != nil {
			msg := failure.Error()
			resp.Success, resp.Error = false, &msg
		}
		if err := resp.Print(a.Stdout); err != nil {
			return err
		}
		if failure != nil {
			return reportedError{failure}
		}
		return nil
	}

	w := a.Stdout
	for _, r := range results {
		if r.OK() {
			fmt.Fprintln(w, a.theme.RenderSuccess(fmt.Sprintf("%s  %d messages, %d events (%s)",
				r.ID, r.Messages, r.Events, r.Elapsed.Round(time.Millisecond))))
		} else {
			fmt.Fprintln(w, a.theme.RenderError(r.ID+"  "+r.Err.Error()))
		}
	}
	fmt.Fprintln(w, a.theme.Muted.Render(fmt.Sprintf("pulled %d of %d", data.Pulled, len(results))))
	return failure
}
