// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/ui/components"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

// =============================================================================
// HEALTH
// =============================================================================

func healthCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable and healthy",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			h, err := a.client.Health(cmd.Context())
			if err != nil {
				return err
			}
			data := HealthData{
				BaseURL:   a.cfg.API.BaseURL,
				Status:    h.Status,
				Version:   h.Version,
				Healthy:   h.OK(),
				LatencyMs: time.Since(start).Milliseconds(),
			}

			err = a.emit(cmd, data, func(w io.Writer) error {
				line := fmt.Sprintf("%s %s (%dms)", data.BaseURL, data.Status, data.LatencyMs)
				if data.Version != "" {
					line += "  version " + data.Version
				}
				if data.Healthy {
					fmt.Fprintln(w, a.theme.RenderSuccess(line))
				} else {
					fmt.Fprintln(w, a.theme.RenderWarning(line))
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !data.Healthy {
				return errors.Errorf("backend reports status %q", h.Status)
			}
			return nil
		},
	}
}

// =============================================================================
// CATALOG
// =============================================================================

func catalogCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the models, personas, tools and configuration the backend offers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "models",
			Short: "List available models",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				models, err := a.client.GetModels(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, models, func(w io.Writer) error {
					fmt.Fprintln(w, modelTable(a.theme, models))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "personas",
			Short: "List assistant personas",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				personas, err := a.client.GetPersonas(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, personas, func(w io.Writer) error {
					fmt.Fprintln(w, personaTable(a.theme, personas))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "tools",
			Short: "List tools personas can call",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				tools, err := a.client.GetTools(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, tools, func(w io.Writer) error {
					fmt.Fprintln(w, toolTable(a.theme, tools))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "system",
			Short: "Show the backend's public configuration",
			Args:  exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				sys, err := a.client.GetSystemConfig(cmd.Context())
				if err != nil {
					return err
				}
				return a.emit(cmd, sys, func(w io.Writer) error {
					fmt.Fprint(w, renderSystem(a.theme, sys))
					return nil
				})
			},
		},
	)
	return cmd
}

func modelTable(theme *styles.Theme, models []model.Model) string {
	tb := components.Table{
		Columns: []components.Column{
			{Title: "ID", MaxWidth: 28},
			{Title: "NAME", MaxWidth: 24},
			{Title: "PROVIDER", MaxWidth: 12, MinLayout: styles.LayoutMedium},
			{Title: "CONTEXT", AlignRight: true},
			{Title: "DESCRIPTION", Flex: true, MinLayout: styles.LayoutWide},
		},
		Empty: "No models.",
	}
	for _, m := range models {
		id := m.ID
		if m.Default {
			id += " *"
		}
		tb.Rows = append(tb.Rows, []string{id, m.DisplayName(), m.Provider, m.ContextString(), m.Description})
	}
	return tb.Render(theme)
}

func personaTable(theme *styles.Theme, personas []model.Persona) string {
	tb := components.Table{
		Columns: []components.Column{
			{Title: "ID", MaxWidth: 20},
			{Title: "NAME", MaxWidth: 20},
			{Title: "MODEL", MaxWidth: 24, MinLayout: styles.LayoutMedium},
			{Title: "TOOLS", AlignRight: true},
			{Title: "DESCRIPTION", Flex: true},
		},
		Empty: "No personas.",
	}
	for _, p := range personas {
		id := p.ID
		if p.Default {
			id += " *"
		}
		tb.Rows = append(tb.Rows, []string{id, p.Name, p.Model, strconv.Itoa(len(p.Tools)), p.Description})
	}
	return tb.Render(theme)
}

func toolTable(theme *styles.Theme, tools []model.Tool) string {
	tb := components.Table{
		Columns: []components.Column{
			{Title: "NAME", MaxWidth: 24},
			{Title: "ENABLED"},
			{Title: "DESCRIPTION", Flex: true},
		},
		Empty: "No tools.",
	}
	for _, t := range tools {
		enabled := "no"
		if t.Enabled {
			enabled = "yes"
		}
		tb.Rows = append(tb.Rows, []string{t.Name, enabled, t.Description})
	}
	return tb.Render(theme)
}

func renderSystem(theme *styles.Theme, sys *model.SystemConfig) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render(fmt.Sprintf("%-16s", label)), theme.Value.Render(value))
	}

	row("Version", sys.Version)
	row("Default model", sys.DefaultModel)
	row("Default persona", sys.DefaultPersona)
	row("Features", strings.Join(sys.EnabledFeatures(), ", "))

	if len(sys.Limits) > 0 {
		names := make([]string, 0, len(sys.Limits))
		for name := range sys.Limits {
			names = append(names, name)
		}
		sort.Strings(names)
		limits := make([]string, len(names))
		for i, name := range names {
			limits[i] = fmt.Sprintf("%s=%d", name, sys.Limits[name])
		}
		row("Limits", strings.Join(limits, ", "))
	}
	return b.String()
}
