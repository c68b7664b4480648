// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WatchDebounce is how long Watch waits after the last change before
// reloading. Editors often write a file in several steps.
const WatchDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and calls fn with the new, fully
// validated config. Files that fail to load are logged and ignored, so fn
// only ever sees valid configurations. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	return watch(ctx, path, fn, WatchDebounce)
}

func watch(ctx context.Context, path string, fn func(*Config), debounce time.Duration) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolve config path")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create config watcher")
	}
	defer watcher.Close()

	// Watch the directory: atomic saves replace the file, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(abs))
	}

	logger := log.With().Str("component", "config").Str("path", abs).Logger()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("config watcher error")

		case <-timer.C:
			cfg, err := LoadFromPath(abs)
			if err != nil {
				logger.Warn().Err(err).Msg("ignoring config change")
				continue
			}
			logger.Info().Msg("config reloaded")
			fn(cfg)
		}
	}
}
