// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the view-models returned by the chat backend.
//
// Every type here is decoded directly from the `data` member of an API
// envelope. They carry no lifecycle of their own: the backend owns the
// state, the client only displays it.
//
// # Key Types
//
//   - Model, Persona, Tool, SystemConfig: configuration catalog entries
//   - Session: a live chat session
//   - HistorySummary, HistoryDetail: recorded sessions
//   - Message, ToolCall: conversation content
//   - SessionEvent: one entry of a session's event log or live stream
//   - ReplayStatus: playback state of a recorded session
//
// # Usage
//
//	var ev model.SessionEvent
//	if err := json.Unmarshal(data, &ev); err != nil {
//	    return err
//	}
//	if msg, ok := ev.Message(); ok {
//	    fmt.Println(msg.Role.DisplayName(), msg.Content)
//	}
package model
