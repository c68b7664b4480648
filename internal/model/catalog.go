// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CONFIGURATION CATALOG
// =============================================================================

// Model describes an LLM the backend can route a session to.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	ContextWindow int    `json:"context_window,omitempty"`
	Description   string `json:"description,omitempty"`
	Default       bool   `json:"default,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (m Model) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// ContextString formats the context window for display ("128K", "1M").
func (m Model) ContextString() string {
	switch {
	case m.ContextWindow <= 0:
		return "-"
	case m.ContextWindow >= 1_000_000 && m.ContextWindow%1_000_000 == 0:
		return fmt.Sprintf("%dM", m.ContextWindow/1_000_000)
	case m.ContextWindow >= 1000:
		return fmt.Sprintf("%dK", m.ContextWindow/1000)
	default:
		return fmt.Sprintf("%d", m.ContextWindow)
	}
}

// Persona is a named assistant configuration (system prompt, model, tools).
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Default      bool     `json:"default,omitempty"`
}

// Tool is a callable capability exposed to personas.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Enabled     bool            `json:"enabled"`
}

// SystemConfig is the backend's public configuration.
type SystemConfig struct {
	Version        string          `json:"version"`
	DefaultModel   string          `json:"default_model,omitempty"`
	DefaultPersona string          `json:"default_persona,omitempty"`
	Features       map[string]bool `json:"features,omitempty"`
	Limits         map[string]int  `json:"limits,omitempty"`
}

// FeatureEnabled reports whether a named feature flag is on.
func (c *SystemConfig) FeatureEnabled(name string) bool {
	if c == nil || c.Features == nil {
		return false
	}
	return c.Features[name]
}

// EnabledFeatures returns the sorted names of all enabled features.
func (c *SystemConfig) EnabledFeatures() []string {
	if c == nil {
		return nil
	}
	var names []string
	for name, on := range c.Features {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Health is the backend health probe result.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// OK reports whether the backend declared itself healthy.
func (h Health) OK() bool {
	return strings.EqualFold(h.Status, "ok") || strings.EqualFold(h.Status, "healthy")
}

// FindPersona returns the persona whose ID or name matches key.
func FindPersona(personas []Persona, key string) (Persona, bool) {
	for _, p := range personas {
		if p.ID == key || strings.EqualFold(p.Name, key) {
			return p, true
		}
	}
	return Persona{}, false
}

// DefaultPersona returns the persona flagged as default, or the first one.
func DefaultPersona(personas []Persona) (Persona, bool) {
	for _, p := range personas {
		if p.Default {
			return p, true
		}
	}
	if len(personas) > 0 {
		return personas[0], true
	}
	return Persona{}, false
}
