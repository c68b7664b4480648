// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sessionscope command line.
//
// Every command is a cobra command built by NewRootCmd. The root's
// PersistentPreRunE loads the configuration, applies the global flags,
// sets up logging and builds the API client and theme shared by all
// subcommands through an App.
//
// # Commands Overview
//
//   - health, catalog: backend probe and model/persona/tool/system listings
//   - history: recorded sessions (list, show, events, delete, export, pull)
//   - archive: the local SQLite copy of pulled histories
//   - replay: playback control and the live follow view
//   - session, chat: live sessions, one-shot sends and the chat REPL
//   - config, login: local configuration and the bearer token
//   - devserver, version
//
// All commands accept --json, which prints a JSONResponse instead of the
// human-readable rendering. Streaming commands print one JSON event per line.
package cli
