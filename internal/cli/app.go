// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/archive"
	"github.com/jeranaias/sessionscope/internal/config"
	"github.com/jeranaias/sessionscope/internal/logging"
	"github.com/jeranaias/sessionscope/internal/ui/styles"
)

// App carries the state shared by the commands of one invocation.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	flags rootFlags

	cfg     *config.Config
	cfgPath string // file the config came from, "" for defaults
	client  *api.Client
	theme   *styles.Theme
	logger  zerolog.Logger
	closer  io.Closer
	reader  *lineReader
}

type rootFlags struct {
	configPath string
	baseURL    string
	token      string
	json       bool
	logLevel   string
	noColor    bool
}

// NewApp creates an App bound to the given streams.
func NewApp(stdin io.Reader, stdout, stderr io.Writer) *App {
	return &App{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		logger: zerolog.Nop(),
	}
}

// setup loads the configuration and builds the logger, theme and client.
func (a *App) setup() error {
	cfg, path, err := a.loadConfig()
	if err != nil {
		return &ConfigError{Err: err}
	}
	a.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	a.cfg, a.cfgPath = cfg, path

	logger, closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		NoColor:    cfg.Output.Color == string(styles.ColorNever),
		Output:     a.Stderr,
	})
	if err != nil {
		return &ConfigError{Err: err}
	}
	a.logger, a.closer = logger, closer

	a.theme = a.newTheme(cfg, 0)

	a.client = api.NewClientWithConfig(&api.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		APIVersion: cfg.API.APIVersion,
		Token:      cfg.API.Token,
		Timeout:    cfg.API.Timeout(),
		UserAgent:  "sessionscope/" + Version,
		Logger:     &logger,
	})

	a.logger.Debug().Str("config", path).Str("base_url", cfg.API.BaseURL).Msg("cli ready")
	return nil
}

func (a *App) loadConfig() (*config.Config, string, error) {
	if a.flags.configPath != "" {
		cfg, err := config.LoadFromPath(a.flags.configPath)
		return cfg, a.flags.configPath, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	path, _ := config.FindConfigFile()
	return cfg, path, nil
}

// applyFlags lets the global flags win over the file and the environment.
func (a *App) applyFlags(cfg *config.Config) {
	f := a.flags
	if f.baseURL != "" {
		cfg.API.BaseURL = strings.TrimRight(f.baseURL, "/")
	}
	if f.token != "" {
		cfg.API.Token = f.token
	}
	if f.json {
		cfg.Output.Format = "json"
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.noColor {
		cfg.Output.Color = string(styles.ColorNever)
	}
}

// close releases the log file.
func (a *App) close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

func (a *App) jsonMode() bool {
	if a.cfg != nil {
		return a.cfg.Output.Format == "json"
	}
	return a.flags.json
}

func (a *App) input() *lineReader {
	if a.reader == nil {
		a.reader = &lineReader{r: bufio.NewReader(a.Stdin)}
	}
	return a.reader
}

// emit prints data as a JSONResponse in JSON mode and calls text otherwise.
func (a *App) emit(cmd *cobra.Command, data interface{}, text func(w io.Writer) error) error {
	if a.jsonMode() {
		return NewJSONResponse(cmd.CommandPath(), data).Print(a.Stdout)
	}
	return text(a.Stdout)
}

// openArchive opens the configured archive database.
func (a *App) openArchive() (*archive.Store, error) {
	path := a.cfg.Archive.Path
	if path == "" {
		var err error
		if path, err = config.DefaultArchivePath(); err != nil {
			return nil, err
		}
	}
	store, err := archive.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}
	return store, nil
}

// watchConfig follows the config file for the lifetime of ctx. Log level
// changes apply at once; the newest reloaded config waits on the returned
// channel until the caller picks it up with applyReload. A missing file is
// fine.
func (a *App) watchConfig(ctx context.Context) <-chan *config.Config {
	reloads := make(chan *config.Config, 1)
	if a.cfgPath == "" {
		return reloads
	}
	go func() {
		err := config.Watch(ctx, a.cfgPath, func(c *config.Config) {
			level := c.Log.Level
			if a.flags.logLevel != "" {
				level = a.flags.logLevel
			}
			if err := logging.SetLevel(level); err != nil {
				a.logger.Warn().Err(err).Msg("ignoring reloaded log level")
			}
			select {
			case <-reloads:
			default:
			}
			reloads <- c
			a.logger.Debug().Str("level", level).Msg("config reloaded")
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("config watch stopped")
		}
	}()
	return reloads
}

// applyReload applies a pending reloaded config, if any, and reports
// whether it did. A nil channel never has one.
func (a *App) applyReload(reloads <-chan *config.Config) bool {
	select {
	case c := <-reloads:
		a.applyOutput(c)
		return true
	default:
		return false
	}
}

// applyOutput takes the color, background and markdown settings from c and
// rebuilds the theme. --no-color still wins.
func (a *App) applyOutput(c *config.Config) {
	a.cfg.Output.Color = c.Output.Color
	a.cfg.Output.Theme = c.Output.Theme
	a.cfg.Output.Markdown = c.Output.Markdown
	if a.flags.noColor {
		a.cfg.Output.Color = string(styles.ColorNever)
	}
	width := 0
	if a.theme != nil {
		width = a.theme.Width
	}
	a.theme = a.newTheme(a.cfg, width)
}

func (a *App) newTheme(cfg *config.Config, width int) *styles.Theme {
	if width <= 0 {
		width = cfg.Output.Width
	}
	if width <= 0 {
		width = terminalWidth(a.Stdout)
	}
	return styles.NewTheme(styles.Options{
		Color:      styles.ColorMode(cfg.Output.Color),
		Background: cfg.Output.Theme,
		Width:      width,
		Output:     a.Stdout,
	})
}
