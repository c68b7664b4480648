// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sessionscope.
//
// TOML, YAML and JSON files are supported, with defaults, environment
// variable overrides, validation and hot reload.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command-line flags (applied by the cli package)
//   - Environment variables (SESSIONSCOPE_*, NO_COLOR)
//   - ~/.sessionscope/config.toml, config.yaml, config.yml or config.json,
//     whichever is found first
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClientWithConfig(&api.ClientConfig{
//	    BaseURL: cfg.API.BaseURL,
//	    Token:   cfg.API.Token,
//	})
package config
