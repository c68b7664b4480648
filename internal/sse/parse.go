// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"encoding/json"
)

// Field names recognized by the consumer.
const (
	FieldData  = "data"
	FieldEvent = "event"
	FieldID    = "id"
	FieldRetry = "retry"
)

// DoneSentinel is the data value that marks the end of a stream.
const DoneSentinel = "[DONE]"

// Event is one decoded data line.
type Event struct {
	// Name is the most recent "event:" field of the current block, if any.
	Name string
	// ID is the last "id:" field seen on the stream.
	ID string
	// Data is the JSON payload of the line.
	Data json.RawMessage
	// Line is the 1-based line number within the stream.
	Line int
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Parse splits an SSE line into its field name and value. A single space
// after the colon is removed. Comments (lines starting with ":") and blank
// lines return an empty field. A line without a colon is a field with an
// empty value.
func Parse(line []byte) (field string, value []byte) {
	if len(line) == 0 || line[0] == ':' {
		return "", nil
	}
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return string(line), nil
	}
	value = line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return string(line[:i]), value
}
