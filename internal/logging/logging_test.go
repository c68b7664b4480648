// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, lvl)

	lvl, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, lvl)

	lvl, err = ParseLevel("off")
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, lvl)

	_, err = ParseLevel("chatty")
	assert.EqualError(t, err, `unknown log level "chatty"`)
}

func TestSetup_JSONToWriter(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer

	logger, closer, err := Setup(Options{Level: "info", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	log.Info().Str("k", "v").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}

func TestSetup_Console(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	on := true

	_, closer, err := Setup(Options{Level: "info", Output: &buf, Console: &on, NoColor: true})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("hello console")
	assert.Contains(t, buf.String(), "INF hello console")
}

func TestSetLevel(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer

	_, closer, err := Setup(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("before")
	require.NoError(t, SetLevel("debug"))
	log.Info().Msg("after")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")
	assert.Error(t, SetLevel("nope"))
}

func TestSetup_File(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "logs", "sessionscope.log")

	_, closer, err := Setup(Options{Level: "info", Output: &bytes.Buffer{}, File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Warn().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}
