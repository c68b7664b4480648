// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/sessionscope/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sessionscope configuration.
type Config struct {
	API     APIConfig     `toml:"api" json:"api" yaml:"api"`
	Output  OutputConfig  `toml:"output" json:"output" yaml:"output"`
	Log     LogConfig     `toml:"log" json:"log" yaml:"log"`
	Archive ArchiveConfig `toml:"archive" json:"archive" yaml:"archive"`
	Replay  ReplayConfig  `toml:"replay" json:"replay" yaml:"replay"`
}

// APIConfig locates and authenticates against the backend.
type APIConfig struct {
	// BaseURL is the backend origin, without the /api/{version} suffix
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// APIVersion is the versioned path segment (default: v1)
	APIVersion string `toml:"api_version" json:"api_version" yaml:"api_version"`
	// Token is the bearer token; empty for unauthenticated backends
	Token string `toml:"token" json:"token" yaml:"token"`
	// TimeoutSecs bounds non-streaming requests
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" yaml:"timeout_secs"`
}

// Timeout returns TimeoutSecs as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	// Format is "text" or "json"
	Format string `toml:"format" json:"format" yaml:"format"`
	// Color is "auto", "always" or "never"
	Color string `toml:"color" json:"color" yaml:"color"`
	// Markdown renders message bodies through glamour
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme" yaml:"theme"`
	// Width overrides the detected terminal width (0 = detect)
	Width int `toml:"width" json:"width" yaml:"width"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level      string `toml:"level" json:"level" yaml:"level"`
	File       string `toml:"file" json:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// ArchiveConfig locates the local history archive.
type ArchiveConfig struct {
	// Path of the SQLite database (empty = ~/.sessionscope/archive.db)
	Path string `toml:"path" json:"path" yaml:"path"`
	// SyncRatePerSec limits requests during bulk pulls
	SyncRatePerSec float64 `toml:"sync_rate_per_sec" json:"sync_rate_per_sec" yaml:"sync_rate_per_sec"`
	// SyncBurst is the limiter burst size
	SyncBurst int `toml:"sync_burst" json:"sync_burst" yaml:"sync_burst"`
}

// ReplayConfig holds replay defaults.
type ReplayConfig struct {
	DefaultSpeed float64 `toml:"default_speed" json:"default_speed" yaml:"default_speed"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "http://127.0.0.1:8080",
			APIVersion:  "v1",
			TimeoutSecs: 30,
		},
		Output: OutputConfig{
			Format:   "text",
			Color:    "auto",
			Markdown: true,
			Theme:    "auto",
		},
		Log: LogConfig{
			Level:      "warn",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Archive: ArchiveConfig{
			SyncRatePerSec: 5,
			SyncBurst:      2,
		},
		Replay: ReplayConfig{
			DefaultSpeed: 1,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Format names accepted by LoadFile and Encode.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ConfigDir returns the sessionscope configuration directory.
// SESSIONSCOPE_HOME overrides the default ~/.sessionscope.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SESSIONSCOPE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".sessionscope"), nil
}

// ConfigPath returns the default path for the given format.
func ConfigPath(format string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config."+format), nil
}

// Candidates returns the config files Load tries, in order.
func Candidates() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
		filepath.Join(dir, "config.json"),
	}, nil
}

// FindConfigFile returns the first existing candidate, or "" if none exists.
func FindConfigFile() (string, error) {
	paths, err := Candidates()
	if err != nil {
		return "", err
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// DefaultArchivePath returns ~/.sessionscope/archive.db.
func DefaultArchivePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}

// FormatOf infers the file format from the extension. Unknown extensions
// are treated as TOML.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatTOML
	}
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold
// a bearer token.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		if err := os.Chmod(path, 0600); err != nil {
			return errors.Wrapf(err, "failed to fix insecure permissions (was %o)", mode)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the first config file found in the config directory, applies
// environment overrides, fills defaults and validates. With no file present
// it returns the defaults.
func Load() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid config")
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file with full
// validation. The format follows the file extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		return nil, errors.Wrapf(err, "failed to load config from %s", path)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// LoadFile decodes path into cfg without applying overrides or validation.
// Keys absent from the file keep the values already in cfg.
func LoadFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(errors.Cause(err)) {
		log.Warn().Err(err).Str("path", path).Msg("could not ensure secure permissions on config file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	return Decode(cfg, data, FormatOf(path))
}

// Decode parses data in the given format into cfg.
func Decode(cfg *Config, data []byte, format string) error {
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return errors.Wrap(err, "failed to decode YAML")
		}
	case FormatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return errors.Wrap(err, "failed to decode JSON")
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.Wrap(err, "failed to decode TOML")
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = "# sessionscope configuration file\n# Generated by sessionscope - edit with care\n\n"

// Encode serializes cfg in the given format.
func Encode(cfg *Config, format string) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(cfg)
		return data, errors.Wrap(err, "failed to encode YAML")
	case FormatJSON:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode JSON")
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		buf.WriteString(fileHeader)
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to encode TOML")
		}
		return buf.Bytes(), nil
	}
}

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPath(FormatTOML)
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg atomically to path with 0600 permissions, in the
// format of the file extension.
func SaveTo(cfg *Config, path string) error {
	data, err := Encode(cfg, FormatOf(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validFormats = map[string]bool{"text": true, "json": true}
	validColors  = map[string]bool{"auto": true, "always": true, "never": true}
	validThemes  = map[string]bool{"auto": true, "dark": true, "light": true}
	validLevels  = map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
)

// Validate returns ValidateErrors listing every invalid field, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.API.BaseURL == "" {
		add("api.base_url", "must not be empty")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		add("api.base_url", "invalid URL %q", c.API.BaseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if strings.Contains(c.API.APIVersion, "/") {
		add("api.api_version", "must be a single path segment, got %q", c.API.APIVersion)
	}
	if c.API.TimeoutSecs < 0 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 0 and 600, got %d", c.API.TimeoutSecs)
	}

	if !validFormats[c.Output.Format] {
		add("output.format", "must be text or json, got %q", c.Output.Format)
	}
	if !validColors[c.Output.Color] {
		add("output.color", "must be auto, always or never, got %q", c.Output.Color)
	}
	if !validThemes[c.Output.Theme] {
		add("output.theme", "must be auto, dark or light, got %q", c.Output.Theme)
	}
	if c.Output.Width < 0 {
		add("output.width", "must not be negative")
	}

	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 {
		add("log", "rotation limits must not be negative")
	}

	if c.Archive.SyncRatePerSec < 0 {
		add("archive.sync_rate_per_sec", "must not be negative")
	}
	if c.Archive.SyncBurst < 0 {
		add("archive.sync_burst", "must not be negative")
	}

	if c.Replay.DefaultSpeed <= 0 || c.Replay.DefaultSpeed > 16 {
		add("replay.default_speed", "must be in (0, 16], got %g", c.Replay.DefaultSpeed)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that would otherwise fail validation or
// disable a feature by accident.
func (c *Config) SetDefaults() {
	d := Default()

	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.APIVersion == "" {
		c.API.APIVersion = d.API.APIVersion
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}

	c.Output.Format = strings.ToLower(c.Output.Format)
	if c.Output.Format == "" {
		c.Output.Format = d.Output.Format
	}
	if c.Output.Color == "" {
		c.Output.Color = d.Output.Color
	}
	if c.Output.Theme == "" {
		c.Output.Theme = d.Output.Theme
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}

	if c.Archive.SyncRatePerSec == 0 {
		c.Archive.SyncRatePerSec = d.Archive.SyncRatePerSec
	}
	if c.Archive.SyncBurst == 0 {
		c.Archive.SyncBurst = d.Archive.SyncBurst
	}

	if c.Replay.DefaultSpeed == 0 {
		c.Replay.DefaultSpeed = d.Replay.DefaultSpeed
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SESSIONSCOPE_BASE_URL: overrides api.base_url
//   - SESSIONSCOPE_TOKEN: overrides api.token
//   - SESSIONSCOPE_API_VERSION: overrides api.api_version
//   - SESSIONSCOPE_LOG_LEVEL: overrides log.level
//   - SESSIONSCOPE_OUTPUT: overrides output.format
//   - NO_COLOR: any non-empty value forces output.color = never
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SESSIONSCOPE_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SESSIONSCOPE_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("SESSIONSCOPE_API_VERSION"); v != "" {
		c.API.APIVersion = v
	}
	if v := os.Getenv("SESSIONSCOPE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SESSIONSCOPE_OUTPUT"); v != "" {
		c.Output.Format = strings.ToLower(v)
	}
	if os.Getenv("NO_COLOR") != "" {
		c.Output.Color = "never"
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "api.base_url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return errors.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, errors.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, errors.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, errors.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, errors.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent ("base_url" -> "BaseUrl", matched case-insensitively).
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return errors.Errorf("invalid integer value %q", strVal)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return errors.Errorf("invalid number %q", strVal)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strVal)
			if err != nil {
				switch strings.ToLower(strVal) {
				case "yes", "on":
					b = true
				case "no", "off":
					b = false
				default:
					return errors.Errorf("invalid boolean %q", strVal)
				}
			}
			field.SetBool(b)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return errors.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"api.base_url",
		"api.api_version",
		"api.token",
		"api.timeout_secs",
		"output.format",
		"output.color",
		"output.markdown",
		"output.theme",
		"output.width",
		"log.level",
		"log.file",
		"log.max_size_mb",
		"log.max_backups",
		"archive.path",
		"archive.sync_rate_per_sec",
		"archive.sync_burst",
		"replay.default_speed",
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with the bearer token masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.API.Token != "" {
		safe.API.Token = "[REDACTED]"
	}
	return safe
}

// String returns the config as indented JSON with the token redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
