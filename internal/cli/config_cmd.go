// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/config"
)

func configCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the local configuration",
	}
	cmd.AddCommand(
		configShowCmd(a),
		configPathCmd(a),
		configInitCmd(a),
		configGetCmd(a),
		configSetCmd(a),
	)
	return cmd
}

// editablePath is the file config set and login write to: the loaded
// file, or the default TOML path when there is none yet.
func (a *App) editablePath() (string, error) {
	if a.cfgPath != "" {
		return a.cfgPath, nil
	}
	return config.ConfigPath(config.FormatTOML)
}

// loadEditable reads the file as written, without environment or flag
// overrides, so saving it back does not persist them.
func (a *App) loadEditable() (*config.Config, string, error) {
	path, err := a.editablePath()
	if err != nil {
		return nil, "", err
	}
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadFile(cfg, path); err != nil {
			return nil, "", &ConfigError{Err: err}
		}
	}
	return cfg, path, nil
}

func configShowCmd(a *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (token redacted)",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			redacted := a.cfg.Redacted()
			return a.emit(cmd, ConfigData{Path: a.cfgPath, Config: redacted}, func(w io.Writer) error {
				switch format {
				case config.FormatTOML, config.FormatYAML, config.FormatJSON:
				default:
					return usageErrorf("unknown format %q (want toml, yaml or json)", format)
				}
				data, err := config.Encode(redacted, format)
				if err != nil {
					return err
				}
				_, err = w.Write(data)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", config.FormatTOML, "toml, yaml or json")
	return cmd
}

func configPathCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.editablePath()
			if err != nil {
				return err
			}
			exists := a.cfgPath != ""
			data := map[string]interface{}{"path": path, "exists": exists}
			return a.emit(cmd, data, func(w io.Writer) error {
				if exists {
					fmt.Fprintln(w, path)
				} else {
					fmt.Fprintln(w, path+" "+a.theme.Muted.Render("(not created; run `sessionscope config init`)"))
				}
				return nil
			})
		},
	}
}

func configInitCmd(a *App) *cobra.Command {
	var (
		force  bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.flags.configPath
			if path == "" {
				var err error
				if path, err = config.ConfigPath(format); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if a.flags.baseURL != "" {
				cfg.API.BaseURL = a.cfg.API.BaseURL
			}
			if err := config.SaveTo(cfg, path); err != nil {
				return errors.Wrap(err, "failed to write config")
			}
			return a.emit(cmd, map[string]string{"path": path}, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess("Wrote "+path))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&format, "format", config.FormatTOML, "toml, yaml or json")
	return cmd
}

func configGetCmd(a *App) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective setting, e.g. api.base_url",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if !reveal {
				cfg = cfg.Redacted()
			}
			value, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Err: err}
			}
			return a.emit(cmd, map[string]interface{}{"key": args[0], "value": value}, func(w io.Writer) error {
				fmt.Fprintln(w, value)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets instead of [REDACTED]")
	return cmd
}

func configSetCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Long: "Change one setting in the config file. Keys are section.field, e.g.\n" +
			"api.base_url, output.color, log.level, replay.default_speed.",
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := a.loadEditable()
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Err: err}
			}
			if err := cfg.Validate(); err != nil {
				return &UsageError{Err: err}
			}
			if err := config.SaveTo(cfg, path); err != nil {
				return errors.Wrap(err, "failed to write config")
			}
			return a.emit(cmd, map[string]string{"key": args[0], "path": path}, func(w io.Writer) error {
				fmt.Fprintln(w, a.theme.RenderSuccess(fmt.Sprintf("Set %s in %s", args[0], path)))
				return nil
			})
		},
	}
}
