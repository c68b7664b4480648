// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// ReplayState is the playback state of a recorded session.
type ReplayState string

const (
	ReplayIdle     ReplayState = "idle"
	ReplayPlaying  ReplayState = "playing"
	ReplayPaused   ReplayState = "paused"
	ReplayStopped  ReplayState = "stopped"
	ReplayFinished ReplayState = "finished"
)

// ReplayAction is a control verb accepted by the replay endpoint.
type ReplayAction string

const (
	ReplayStart  ReplayAction = "start"
	ReplayPause  ReplayAction = "pause"
	ReplayResume ReplayAction = "resume"
	ReplayStop   ReplayAction = "stop"
	ReplaySeek   ReplayAction = "seek"
)

// IsValid reports whether a is a known action.
func (a ReplayAction) IsValid() bool {
	switch a {
	case ReplayStart, ReplayPause, ReplayResume, ReplayStop, ReplaySeek:
		return true
	}
	return false
}

// ReplayStatus is the backend's view of a replay.
type ReplayStatus struct {
	SessionID   string      `json:"session_id"`
	State       ReplayState `json:"state"`
	Speed       float64     `json:"speed"`
	Position    int         `json:"position"`
	TotalEvents int         `json:"total_events"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
}

// Progress returns the fraction of events already replayed, in [0, 1].
func (r ReplayStatus) Progress() float64 {
	if r.TotalEvents <= 0 {
		return 0
	}
	p := float64(r.Position) / float64(r.TotalEvents)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// IsActive reports whether the replay is playing or paused.
func (r ReplayStatus) IsActive() bool {
	return r.State == ReplayPlaying || r.State == ReplayPaused
}
