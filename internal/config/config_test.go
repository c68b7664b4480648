// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SESSIONSCOPE_HOME", dir)
	for _, key := range []string{
		"SESSIONSCOPE_BASE_URL", "SESSIONSCOPE_TOKEN", "SESSIONSCOPE_API_VERSION",
		"SESSIONSCOPE_LOG_LEVEL", "SESSIONSCOPE_OUTPUT", "NO_COLOR",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
}

func TestLoad_Formats(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"config.toml", "[api]\nbase_url = \"https://chat.example.com/\"\ntoken = \"t0k\"\n\n[replay]\ndefault_speed = 4.0\n"},
		{"config.yaml", "api:\n  base_url: https://chat.example.com/\n  token: t0k\nreplay:\n  default_speed: 4\n"},
		{"config.json", `{"api":{"base_url":"https://chat.example.com/","token":"t0k"},"replay":{"default_speed":4}}`},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, filepath.Join(dir, tt.file), tt.content)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, "https://chat.example.com", cfg.API.BaseURL, "trailing slash trimmed")
			assert.Equal(t, "t0k", cfg.API.Token)
			assert.Equal(t, 4.0, cfg.Replay.DefaultSpeed)
			// Keys absent from the file keep their defaults.
			assert.Equal(t, "v1", cfg.API.APIVersion)
			assert.Equal(t, "text", cfg.Output.Format)
			assert.True(t, cfg.Output.Markdown)
		})
	}
}

func TestLoad_TOMLWinsOverJSON(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[log]\nlevel = \"debug\"\n")
	writeFile(t, filepath.Join(dir, "config.json"), `{"log":{"level":"error"}}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[api\nbase_url = ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode TOML")
}

func TestLoad_FixesPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\ntoken = \"x\"\n"), 0644))

	_, err := Load()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("SESSIONSCOPE_BASE_URL", "http://10.0.0.5:9000")
	t.Setenv("SESSIONSCOPE_TOKEN", "env-token")
	t.Setenv("SESSIONSCOPE_API_VERSION", "v2")
	t.Setenv("SESSIONSCOPE_LOG_LEVEL", "debug")
	t.Setenv("SESSIONSCOPE_OUTPUT", "JSON")
	t.Setenv("NO_COLOR", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.API.BaseURL)
	assert.Equal(t, "env-token", cfg.API.Token)
	assert.Equal(t, "v2", cfg.API.APIVersion)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "never", cfg.Output.Color)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.API.BaseURL = "ftp://files.example.com"
	cfg.Output.Format = "xml"
	cfg.Output.Color = "sometimes"
	cfg.Log.Level = "loud"
	cfg.Replay.DefaultSpeed = 20

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{
		"api.base_url", "output.format", "output.color", "log.level", "replay.default_speed",
	}, fields)
	assert.Contains(t, err.Error(), "output.format: must be text or json")
}

func TestValidate_RejectsHostlessURL(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "localhost:8080"
	assert.Error(t, cfg.Validate())
}

// =============================================================================
// GET/SET TESTS
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.base_url", "https://x.example"))
	require.NoError(t, cfg.Set("api.timeout_secs", "45"))
	require.NoError(t, cfg.Set("output.markdown", "off"))
	require.NoError(t, cfg.Set("archive.sync_rate_per_sec", "2.5"))
	require.NoError(t, cfg.Set("log.max-size-mb", 64))

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, "https://x.example", v)
	assert.Equal(t, 45, cfg.API.TimeoutSecs)
	assert.False(t, cfg.Output.Markdown)
	assert.Equal(t, 2.5, cfg.Archive.SyncRatePerSec)
	assert.Equal(t, 64, cfg.Log.MaxSizeMB)

	_, err = cfg.Get("api.nope")
	assert.EqualError(t, err, "unknown field: api.nope")

	_, err = cfg.Get("api")
	assert.Error(t, err, "sections are not values")

	assert.Error(t, cfg.Set("api.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("output.markdown", "maybe"))
	assert.Error(t, cfg.Set("", "x"))
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

// =============================================================================
// SAVE TESTS
// =============================================================================

func TestSaveTo_RoundTripsEachFormat(t *testing.T) {
	dir := isolate(t)
	cfg := Default()
	cfg.API.Token = "secret"
	cfg.Output.Theme = "light"

	for _, name := range []string{"out.toml", "out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveTo(cfg, path), name)

		loaded, err := LoadFromPath(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, loaded, name)

		if runtime.GOOS != "windows" {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), name)
		}
	}
}

func TestSave_DefaultPath(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, Save(Default()))

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# sessionscope configuration file"))
}

func TestString_RedactsToken(t *testing.T) {
	cfg := Default()
	cfg.API.Token = "super-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "super-secret", cfg.API.Token, "original untouched")
}

// =============================================================================
// WATCH TESTS
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[log]\nlevel = \"warn\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, path, func(c *Config) { reloaded <- c }, 20*time.Millisecond)
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is ignored.
	writeFile(t, path, "[log]\nlevel = \"shouting\"\n")
	select {
	case c := <-reloaded:
		t.Fatalf("invalid config delivered: %+v", c.Log)
	case <-time.After(200 * time.Millisecond):
	}

	next := Default()
	next.Log.Level = "debug"
	require.NoError(t, SaveTo(next, path))

	select {
	case c := <-reloaded:
		assert.Equal(t, "debug", c.Log.Level)
	case <-time.After(3 * time.Second):
		t.Fatal("config change not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
