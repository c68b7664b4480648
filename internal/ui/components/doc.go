// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders sessionscope's view-models for the terminal:
// messages (glamour markdown), events (chroma-highlighted payloads), history
// and session tables, the replay progress bar and the watch status bar.
//
// Every renderer takes a *styles.Theme, so output degrades to plain text
// when color is off.
package components
