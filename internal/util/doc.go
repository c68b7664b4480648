// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the exporters, the archive and
// the terminal renderers.
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: display-width aware truncation and padding
//   - OneLine: collapse whitespace for single-line previews
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
