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

	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/archive"
	"github.com/jeranaias/sessionscope/internal/export"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

// eventPageSize is the page size used when a command walks every event.
const eventPageSize = 200

func historyCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse recorded sessions",
	}
	cmd.AddCommand(
		historyListCmd(a),
		historyShowCmd(a),
		historyEventsCmd(a),
		historyDeleteCmd(a),
		historyExportCmd(a),
		historyPullCmd(a),
	)
	return cmd
}

// =============================================================================
// LIST
// =============================================================================

func historyListCmd(a *App) *cobra.Command {
	var opts api.ListOptions
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			histories, page, err := listHistories(cmd.Context(), a.client, opts, all)
			if err != nil {
				return err
			}
			return a.emit(cmd, ListData{Items: histories, Page: page}, func(w io.Writer) error {
				fmt.Fprintln(w, components.HistoryTable(a.theme, histories))
				if footer := pageFooter(page, len(histories), all); footer != "" {
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
	f.StringVar(&opts.Search, "search", "", "only sessions whose title or messages match")
	f.BoolVar(&all, "all", false, "fetch every page")
	return cmd
}

// listHistories returns one page, or every page when all is set.
func listHistories(ctx context.Context, client *api.Client, opts api.ListOptions, all bool) ([]model.HistorySummary, model.Page, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, model.Page{}, usageErrorf("--limit and --offset must not be negative")
	}
	histories, page, err := client.ListHistories(ctx, opts)
	if err != nil || !all {
		return histories, page, err
	}
	for page.HasMore() && len(histories) > 0 {
		opts.Offset = page.NextOffset()
		var batch []model.HistorySummary
		batch, page, err = client.ListHistories(ctx, opts)
		if err != nil {
			return nil, model.Page{}, err
		}
		if len(batch) == 0 {
			break
		}
		histories = append(histories, batch...)
	}
	return histories, model.Page{Total: page.Total}, nil
}

func pageFooter(page model.Page, shown int, all bool) string {
	if shown == 0 || page.Total == 0 {
		return ""
	}
	if all {
		return fmt.Sprintf("%d of %d", shown, page.Total)
	}
	footer := fmt.Sprintf("%d-%d of %d", page.Offset+1, page.Offset+shown, page.Total)
	if page.HasMore() {
		footer += fmt.Sprintf("  (--offset %d for more)", page.NextOffset())
	}
	return footer
}

// =============================================================================
// SHOW
// =============================================================================

func historyShowCmd(a *App) *cobra.Command {
	var noMarkdown bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded session's transcript",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := a.client.GetHistory(cmd.Context(), args[0])
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

// renderHistory prints the metadata block followed by every message.
func renderHistory(theme *styles.Theme, detail *model.HistoryDetail, markdown bool) string {
	var b strings.Builder
	fmt.Fprintln(&b, theme.Title.Render(detail.DisplayTitle()))

	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return theme.Label.Render(label+":") + " " + theme.Value.Render(value)
	}
	started := "-"
	if !detail.StartedAt.IsZero() {
		started = detail.StartedAt.Local().Format("2006-01-02 15:04")
	}
	duration := "-"
	if d := detail.Duration(); d > 0 {
		duration = d.Round(time.Second).String()
	}

	fmt.Fprintln(&b, strings.Join([]string{
		field("ID", detail.ID), field("Persona", detail.Persona), field("Model", detail.Model),
	}, "  "))
	fmt.Fprintln(&b, strings.Join([]string{
		field("Started", started), field("Duration", duration),
		field("Messages", strconv.Itoa(len(detail.Messages))), field("Events", strconv.Itoa(detail.EventCount)),
	}, "  "))

	opts := components.MessageOptions{Width: theme.Width, Markdown: markdown, ShowTimestamp: true}
	for _, msg := range detail.Messages {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, strings.TrimRight(components.RenderMessage(theme, msg, opts), "\n"))
	}
	return b.String()
}

// =============================================================================
// EVENTS
// =============================================================================

func historyEventsCmd(a *App) *cobra.Command {
	var (
		limit, offset int
		types         []string
		all           bool
		payload       bool
	)

	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "List the event log of a recorded session",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventTypes := make([]model.EventType, len(types))
			for i, t := range types {
				eventTypes[i] = model.EventType(strings.TrimSpace(t))
			}

			var (
				events []model.SessionEvent
				page   model.Page
				err    error
			)
			if all {
				events, err = a.client.AllHistoryEvents(cmd.Context(), args[0], eventPageSize, eventTypes...)
				page.Total = len(events)
			} else {
				events, page, err = a.client.GetHistoryEvents(cmd.Context(), args[0],
					api.EventOptions{Limit: limit, Offset: offset, Types: eventTypes})
			}
			if err != nil {
				return err
			}

			return a.emit(cmd, ListData{Items: events, Page: page}, func(w io.Writer) error {
				fmt.Fprintln(w, components.RenderEvents(a.theme, events,
					components.EventOptions{Width: a.theme.Width, ShowPayload: payload}))
				if footer := pageFooter(page, len(events), all); footer != "" {
					fmt.Fprintln(w, a.theme.Muted.Render(footer))
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&limit, "limit", 50, "page size")
	f.IntVar(&offset, "offset", 0, "number of events to skip")
	f.StringSliceVar(&types, "type", nil, "only these event types (repeatable)")
	f.BoolVar(&all, "all", false, "fetch every page")
	f.BoolVar(&payload, "payload", false, "print each event's JSON payload")
	return cmd
}

// =============================================================================
// DELETE
// =============================================================================

func historyDeleteCmd(a *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded session on the backend",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := a.confirm(yes, "delete history "+id)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.Stderr, "Cancelled.")
				return nil
			}
			if err := a.client.DeleteHistory(cmd.Context(), id); err != nil {
				return err
			}
			return a.emit(cmd, map[string]string{"deleted": id}, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Deleted history "+id))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// =============================================================================
// EXPORT
// =============================================================================

func historyExportCmd(a *App) *cobra.Command {
	opts := export.DefaultOptions()
	var (
		format      string
		fromArchive bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a recorded session to a Markdown, HTML or JSON file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return &UsageError{Err: err}
			}
			withEvents := opts.IncludeEvents || exporter.FileExtension() == ".json"

			detail, events, err := a.loadForExport(cmd.Context(), args[0], withEvents, fromArchive)
			if err != nil {
				return err
			}

			path, err := export.ExportToFile(detail, exporter, opts, events...)
			if err != nil {
				return err
			}
			data := ExportData{ID: detail.ID, Format: strings.TrimPrefix(exporter.FileExtension(), "."), Path: path, Events: len(events)}
			return a.emit(cmd, data, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Exported to "+path))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "markdown", "output format: "+strings.Join(export.Formats, ", "))
	f.StringVarP(&opts.OutputDir, "output-dir", "o", ".", "directory to write to")
	f.StringVar(&opts.Filename, "filename", "", "file name (default derived from the title)")
	f.BoolVar(&opts.IncludeEvents, "events", false, "append the event log")
	f.BoolVar(&opts.IncludeTimestamps, "timestamps", true, "include per-message timestamps")
	f.StringVar(&opts.Theme, "theme", "dark", "HTML theme: dark or light")
	f.BoolVar(&opts.OpenAfterExport, "open", false, "open the file when done")
	f.BoolVar(&fromArchive, "from-archive", false, "read the history from the local archive")
	return cmd
}

func (a *App) loadForExport(ctx context.Context, id string, withEvents, fromArchive bool) (*model.HistoryDetail, []model.SessionEvent, error) {
	if fromArchive {
		store, err := a.openArchive()
		if err != nil {
			return nil, nil, err
		}
		defer store.Close()

		detail, err := store.GetHistory(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !withEvents {
			return detail, nil, nil
		}
		events, err := store.Events(ctx, id)
		return detail, events, err
	}

	detail, err := a.client.GetHistory(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !withEvents {
		return detail, nil, nil
	}
	events, err := a.client.AllHistoryEvents(ctx, id, eventPageSize)
	return detail, events, err
}

// =============================================================================
// PULL
// =============================================================================

func historyPullCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <id>...",
		Short: "Copy recorded sessions into the local archive",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openArchive()
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := a.newSyncer(store).PullIDs(cmd.Context(), args)
			return a.reportSync(cmd, results, err)
		},
	}
}

func (a *App) newSyncer(store *archive.Store) *archive.Syncer {
	return archive.NewSyncer(a.client, store, archive.SyncOptions{
		RatePerSec: a.cfg.Archive.SyncRatePerSec,
		Burst:      a.cfg.Archive.SyncBurst,
		PageSize:   eventPageSize,
		Logger:     &a.logger,
	})
}
