// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"strings"

	"github.com/jeranaias/sessionscope/internal/model"
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Title   string `json:"title,omitempty"`
	Persona string `json:"persona,omitempty"`
	Model   string `json:"model,omitempty"`
}

// SendMessageRequest is the body of POST /sessions/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// ListSessions returns one page of live sessions.
func (c *Client) ListSessions(ctx context.Context, opts ListOptions) ([]model.Session, model.Page, error) {
	var sessions []model.Session
	meta, err := c.get(ctx, "/sessions", opts.Values(), &sessions)
	if err != nil {
		return nil, model.Page{}, ProcessError(err, "failed to list sessions")
	}
	return sessions, pageOf(meta, opts.Offset, len(sessions)), nil
}

// CreateSession starts a new chat session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*model.Session, error) {
	var s model.Session
	if _, err := c.post(ctx, "/sessions", req, &s); err != nil {
		return nil, ProcessError(err, "failed to create session")
	}
	return &s, nil
}

// GetSession returns a live session.
func (c *Client) GetSession(ctx context.Context, id string) (*model.Session, error) {
	seg, err := segment(id)
	if err != nil {
		return nil, ProcessError(err, "failed to load session")
	}
	var s model.Session
	if _, err := c.get(ctx, "/sessions/"+seg, nil, &s); err != nil {
		return nil, ProcessError(err, "failed to load session "+id)
	}
	return &s, nil
}

// DeleteSession closes and removes a live session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	seg, err := segment(id)
	if err != nil {
		return ProcessError(err, "failed to delete session")
	}
	if err := c.delete(ctx, "/sessions/"+seg); err != nil {
		return ProcessError(err, "failed to delete session "+id)
	}
	return nil
}

// SendMessage posts a user message. The assistant's reply arrives on the
// session's event stream.
func (c *Client) SendMessage(ctx context.Context, id string, req SendMessageRequest) (*model.Message, error) {
	seg, err := segment(id)
	if err != nil {
		return nil, ProcessError(err, "failed to send message")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ProcessError(invalidf("empty message"), "failed to send message")
	}
	var m model.Message
	if _, err := c.post(ctx, "/sessions/"+seg+"/messages", req, &m); err != nil {
		return nil, ProcessError(err, "failed to send message to session "+id)
	}
	return &m, nil
}
