// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
)

// =============================================================================
// LINE BUFFER
// =============================================================================

// DefaultMaxLineSize is the longest line a LineBuffer keeps (64KB).
const DefaultMaxLineSize = 64 * 1024

// LineBuffer reassembles newline-terminated lines from arbitrary chunks.
// It is not safe for concurrent use.
type LineBuffer struct {
	pending    []byte
	maxLine    int
	discarding bool
	dropped    int
}

// NewLineBuffer returns a buffer that drops lines longer than maxLine bytes.
// A maxLine <= 0 disables the limit.
func NewLineBuffer(maxLine int) *LineBuffer {
	return &LineBuffer{maxLine: maxLine}
}

// Feed appends chunk and returns every line it completes, without the
// terminating "\n" or "\r\n". The returned slices are owned by the caller.
// Bytes after the last newline are retained for the next call.
func (b *LineBuffer) Feed(chunk []byte) [][]byte {
	var lines [][]byte
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			b.hold(chunk)
			break
		}
		part := chunk[:i]
		chunk = chunk[i+1:]

		if b.discarding {
			b.discarding = false
			continue
		}

		var line []byte
		if len(b.pending) > 0 {
			line = append(b.pending, part...)
			b.pending = nil
		} else {
			line = append([]byte(nil), part...)
		}
		if b.maxLine > 0 && len(line) > b.maxLine {
			b.dropped++
			continue
		}
		lines = append(lines, trimCR(line))
	}
	return lines
}

// Flush returns the retained partial line and resets the buffer.
// It returns nil when nothing is pending.
func (b *LineBuffer) Flush() []byte {
	if b.discarding {
		b.discarding = false
		return nil
	}
	line := b.pending
	b.pending = nil
	if len(line) == 0 {
		return nil
	}
	return trimCR(line)
}

// Pending returns the number of bytes held for an incomplete line.
func (b *LineBuffer) Pending() int {
	return len(b.pending)
}

// Dropped returns how many overlong lines were discarded.
func (b *LineBuffer) Dropped() int {
	return b.dropped
}

func (b *LineBuffer) hold(p []byte) {
	if b.discarding {
		return
	}
	if b.maxLine > 0 && len(b.pending)+len(p) > b.maxLine {
		b.pending = nil
		b.discarding = true
		b.dropped++
		return
	}
	b.pending = append(b.pending, p...)
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
