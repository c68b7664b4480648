// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"

	"github.com/jeranaias/sessionscope/internal/model"
)

// MaxReplaySpeed is the fastest playback factor the backend accepts.
const MaxReplaySpeed = 16.0

// ReplayCommand is the body of POST /replay/{id}/control.
type ReplayCommand struct {
	Action   model.ReplayAction `json:"action"`
	Speed    float64            `json:"speed,omitempty"`
	Position *int               `json:"position,omitempty"`
}

// Validate checks the command without contacting the backend.
// A zero Speed leaves the speed unchanged.
func (cmd ReplayCommand) Validate() error {
	if !cmd.Action.IsValid() {
		return invalidf("unknown replay action %q", cmd.Action)
	}
	if !(cmd.Speed >= 0 && cmd.Speed <= MaxReplaySpeed) {
		return invalidf("replay speed %g out of range (0, %g]", cmd.Speed, MaxReplaySpeed)
	}
	if cmd.Action == model.ReplaySeek && cmd.Position == nil {
		return invalidf("seek requires a position")
	}
	if cmd.Position != nil && *cmd.Position < 0 {
		return invalidf("replay position %d is negative", *cmd.Position)
	}
	return nil
}

// ControlReplay sends a playback command and returns the new status.
func (c *Client) ControlReplay(ctx context.Context, id string, cmd ReplayCommand) (*model.ReplayStatus, error) {
	errMsg := "failed to " + string(cmd.Action) + " replay"
	if err := cmd.Validate(); err != nil {
		return nil, ProcessError(err, "invalid replay command")
	}
	seg, err := segment(id)
	if err != nil {
		return nil, ProcessError(err, errMsg)
	}
	var status model.ReplayStatus
	if _, err := c.post(ctx, "/replay/"+seg+"/control", cmd, &status); err != nil {
		return nil, ProcessError(err, errMsg+" "+id)
	}
	return &status, nil
}

// StartReplay begins playback at speed (0 for the backend default).
func (c *Client) StartReplay(ctx context.Context, id string, speed float64) (*model.ReplayStatus, error) {
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplayStart, Speed: speed})
}

// PauseReplay pauses playback.
func (c *Client) PauseReplay(ctx context.Context, id string) (*model.ReplayStatus, error) {
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplayPause})
}

// ResumeReplay resumes paused playback.
func (c *Client) ResumeReplay(ctx context.Context, id string) (*model.ReplayStatus, error) {
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplayResume})
}

// StopReplay ends playback.
func (c *Client) StopReplay(ctx context.Context, id string) (*model.ReplayStatus, error) {
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplayStop})
}

// SeekReplay moves playback to the event at position.
func (c *Client) SeekReplay(ctx context.Context, id string, position int) (*model.ReplayStatus, error) {
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplaySeek, Position: &position})
}

// SetReplaySpeed changes the playback factor. A paused replay resumes.
func (c *Client) SetReplaySpeed(ctx context.Context, id string, speed float64) (*model.ReplayStatus, error) {
	if speed == 0 {
		return nil, ProcessError(invalidf("replay speed must be positive"), "invalid replay command")
	}
	return c.ControlReplay(ctx, id, ReplayCommand{Action: model.ReplayResume, Speed: speed})
}

// GetReplayStatus returns the current playback status.
func (c *Client) GetReplayStatus(ctx context.Context, id string) (*model.ReplayStatus, error) {
	seg, err := segment(id)
	if err != nil {
		return nil, ProcessError(err, "failed to load replay status")
	}
	var status model.ReplayStatus
	if _, err := c.get(ctx, "/replay/"+seg, nil, &status); err != nil {
		return nil, ProcessError(err, "failed to load replay status for "+id)
	}
	return &status, nil
}
