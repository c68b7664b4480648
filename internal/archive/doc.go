// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package archive keeps offline copies of chat histories in a local SQLite
// database. Histories enter the archive only through an explicit pull
// (Store.SaveHistory or a Syncer run); the archive is never consulted as a
// cache for API reads.
//
// Message content is indexed with FTS5 so archived conversations can be
// searched without a connection to the backend.
package archive
