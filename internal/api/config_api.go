// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"

	"github.com/jeranaias/sessionscope/internal/model"
)

// GetModels lists the models the backend can route to.
func (c *Client) GetModels(ctx context.Context) ([]model.Model, error) {
	var models []model.Model
	if _, err := c.get(ctx, "/config/models", nil, &models); err != nil {
		return nil, ProcessError(err, "failed to load models")
	}
	return models, nil
}

// GetPersonas lists the configured personas.
func (c *Client) GetPersonas(ctx context.Context) ([]model.Persona, error) {
	var personas []model.Persona
	if _, err := c.get(ctx, "/config/personas", nil, &personas); err != nil {
		return nil, ProcessError(err, "failed to load personas")
	}
	return personas, nil
}

// GetTools lists the tools available to personas.
func (c *Client) GetTools(ctx context.Context) ([]model.Tool, error) {
	var tools []model.Tool
	if _, err := c.get(ctx, "/config/tools", nil, &tools); err != nil {
		return nil, ProcessError(err, "failed to load tools")
	}
	return tools, nil
}

// GetSystemConfig returns the backend's public configuration.
func (c *Client) GetSystemConfig(ctx context.Context) (*model.SystemConfig, error) {
	var cfg model.SystemConfig
	if _, err := c.get(ctx, "/config/system", nil, &cfg); err != nil {
		return nil, ProcessError(err, "failed to load system configuration")
	}
	return &cfg, nil
}

// Health probes the backend.
func (c *Client) Health(ctx context.Context) (*model.Health, error) {
	var h model.Health
	if _, err := c.get(ctx, "/health", nil, &h); err != nil {
		return nil, ProcessError(err, "health check failed")
	}
	return &h, nil
}
