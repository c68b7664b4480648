// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// CONSUMER TYPES
// =============================================================================

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 4096

// sampleLen bounds the malformed-line excerpt written to the log.
const sampleLen = 120

// ErrStop may be returned by a Handler to end consumption without error.
var ErrStop = errors.New("sse: stop")

// Handler receives each decoded event. Returning ErrStop ends the stream
// cleanly; any other error aborts consumption and is returned by Consume.
type Handler func(Event) error

// Stats summarizes one call to Consume.
type Stats struct {
	Lines   int   // complete lines processed
	Events  int   // events delivered to the handler
	Skipped int   // data lines dropped as malformed or overlong
	Bytes   int64 // bytes read from the body
	Done    bool  // the stream ended with the done sentinel
}

// Options configures Consume.
type Options struct {
	ChunkSize   int
	MaxLineSize int
	Logger      *zerolog.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithChunkSize sets the number of bytes requested per read.
func WithChunkSize(n int) Option {
	return func(o *Options) {
		o.ChunkSize = n
	}
}

// WithMaxLineSize sets the longest accepted line. Zero disables the limit.
func WithMaxLineSize(n int) Option {
	return func(o *Options) {
		o.MaxLineSize = n
	}
}

// WithLogger routes malformed-line warnings to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = &l
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		ChunkSize:   DefaultChunkSize,
		MaxLineSize: DefaultMaxLineSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Logger == nil {
		l := log.Logger
		o.Logger = &l
	}
	return o
}

// =============================================================================
// CONSUME
// =============================================================================

// consumer holds per-stream parse state.
type consumer struct {
	handler Handler
	logger  zerolog.Logger
	stats   Stats
	name    string
	id      string
}

// errDone is returned internally when the done sentinel is seen.
var errDone = errors.New("sse: done")

// Consume reads r until it ends, handing each decoded data line to handler.
// It returns nil when the body ends, the done sentinel arrives, or handler
// returns ErrStop. Cancelling ctx returns ctx.Err(); the caller is expected
// to close r (an HTTP body bound to ctx does so itself).
func Consume(ctx context.Context, r io.Reader, handler Handler, opts ...Option) (Stats, error) {
	o := buildOptions(opts)
	c := &consumer{
		handler: handler,
		logger:  o.Logger.With().Str("component", "sse").Logger(),
	}
	lb := NewLineBuffer(o.MaxLineSize)
	buf := make([]byte, o.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return c.finish(lb), err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			c.stats.Bytes += int64(n)
			for _, line := range lb.Feed(buf[:n]) {
				if err := c.line(line); err != nil {
					return c.finish(lb), c.result(err)
				}
			}
		}

		if readErr == nil {
			continue
		}
		if readErr == io.EOF {
			if rest := lb.Flush(); rest != nil {
				if err := c.line(rest); err != nil {
					return c.finish(lb), c.result(err)
				}
			}
			return c.finish(lb), nil
		}
		if err := ctx.Err(); err != nil {
			return c.finish(lb), err
		}
		return c.finish(lb), errors.Wrap(readErr, "read event stream")
	}
}

// line processes one complete line.
func (c *consumer) line(line []byte) error {
	c.stats.Lines++

	if len(line) == 0 {
		c.name = ""
		return nil
	}

	field, value := Parse(line)
	switch field {
	case FieldEvent:
		c.name = string(value)
	case FieldID:
		c.id = string(value)
	case FieldData:
		return c.data(value)
	}
	return nil
}

func (c *consumer) data(value []byte) error {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil
	}
	if string(value) == DoneSentinel {
		c.stats.Done = true
		return errDone
	}
	if !json.Valid(value) {
		c.stats.Skipped++
		c.logger.Warn().
			Int("line", c.stats.Lines).
			Str("sample", sample(value)).
			Msg("skipping malformed event data")
		return nil
	}

	c.stats.Events++
	return c.handler(Event{
		Name: c.name,
		ID:   c.id,
		Data: json.RawMessage(value),
		Line: c.stats.Lines,
	})
}

func (c *consumer) finish(lb *LineBuffer) Stats {
	c.stats.Skipped += lb.Dropped()
	return c.stats
}

func (c *consumer) result(err error) error {
	if err == errDone || errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func sample(b []byte) string {
	if len(b) <= sampleLen {
		return string(b)
	}
	return string(b[:sampleLen]) + "..."
}
