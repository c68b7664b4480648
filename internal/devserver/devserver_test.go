// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/devserver"
	"github.com/jeranaias/sessionscope/internal/model"
	"github.com/jeranaias/sessionscope/internal/sse"
)

func startServer(t *testing.T, opts devserver.Options) (*devserver.Server, *api.Client) {
	t.Helper()
	nop := zerolog.Nop()
	opts.Logger = &nop
	if opts.ReplayMaxGap == 0 {
		opts.ReplayMaxGap = time.Millisecond
	}
	srv := devserver.New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: ts.URL, Token: opts.Token, Logger: &nop})
	return srv, client
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCatalogEndpoints(t *testing.T) {
	_, c := startServer(t, devserver.Options{})
	ctx := context.Background()

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.OK())

	models, err := c.GetModels(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, models)

	personas, err := c.GetPersonas(ctx)
	require.NoError(t, err)
	def, ok := model.DefaultPersona(personas)
	require.True(t, ok)
	assert.Equal(t, "assistant", def.ID)

	tools, err := c.GetTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 3)

	sys, err := c.GetSystemConfig(ctx)
	require.NoError(t, err)
	assert.True(t, sys.FeatureEnabled("replay"))
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := startServer(t, devserver.Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	_, c := startServer(t, devserver.Options{})
	ctx := context.Background()

	sess, err := c.CreateSession(ctx, api.CreateSessionRequest{Persona: "analyst"})
	require.NoError(t, err)
	assert.Equal(t, "analyst", sess.Persona)
	assert.Equal(t, "llama3.1:8b", sess.Model, "persona model is the default")

	msg, err := c.SendMessage(ctx, sess.ID, api.SendMessageRequest{Content: "hello there backend"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, msg.Role)

	got, err := c.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	assert.Equal(t, "hello there backend", got.Title)

	list, page, err := c.ListSessions(ctx, api.ListOptions{Search: "THERE"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, c.DeleteSession(ctx, sess.ID))
	_, err = c.GetSession(ctx, sess.ID)
	assert.True(t, errors.Is(err, api.ErrNotFound))
	assert.Contains(t, err.Error(), "failed to load session "+sess.ID)
}

func TestCreateSession_Validation(t *testing.T) {
	_, c := startServer(t, devserver.Options{})
	ctx := context.Background()

	_, err := c.CreateSession(ctx, api.CreateSessionRequest{Persona: "pirate"})
	require.Error(t, err)
	assert.Equal(t, api.KindHTTP, api.KindOf(err))
	assert.Equal(t, `failed to create session: persona: unknown persona "pirate"`, err.Error())

	sess, err := c.CreateSession(ctx, api.CreateSessionRequest{})
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, sess.ID, api.SendMessageRequest{Content: "hi", Model: "gpt-9"})
	assert.Error(t, err)
}

func TestSessionStream_DeltasReassemble(t *testing.T) {
	_, c := startServer(t, devserver.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := c.CreateSession(ctx, api.CreateSessionRequest{Title: "stream"})
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		content strings.Builder
		final   string
	)
	streamDone := make(chan error, 1)
	go func() {
		_, err := c.StreamSessionEvents(ctx, sess.ID, func(ev model.SessionEvent) error {
			mu.Lock()
			defer mu.Unlock()
			if d, ok := ev.Delta(); ok {
				content.WriteString(d.Content)
			}
			if m, ok := ev.Message(); ok && m.Role == model.RoleAssistant {
				final = m.Content
			}
			if st, ok := ev.Status(); ok && st.Status == string(model.SessionIdle) {
				return sse.ErrStop
			}
			return nil
		})
		streamDone <- err
	}()

	_, err = c.SendMessage(ctx, sess.ID, api.SendMessageRequest{Content: "one two three"})
	require.NoError(t, err)

	select {
	case err := <-streamDone:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("stream did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `You said 3 words: "one two three".`, final)
	assert.Equal(t, final, content.String())
}

func TestSessionStream_EndsWhenSessionDeleted(t *testing.T) {
	_, c := startServer(t, devserver.Options{StreamNoise: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := c.CreateSession(ctx, api.CreateSessionRequest{})
	require.NoError(t, err)

	type result struct {
		stats sse.Stats
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, err := c.StreamSessionEvents(ctx, sess.ID, func(model.SessionEvent) error { return nil })
		done <- result{stats, err}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.DeleteSession(ctx, sess.ID))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.True(t, res.stats.Done)
		assert.Equal(t, 1, res.stats.Skipped, "noise line skipped")
	case <-ctx.Done():
		t.Fatal("stream did not end")
	}
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistoryEndpoints(t *testing.T) {
	_, c := startServer(t, devserver.Options{Seed: true})
	ctx := context.Background()

	list, page, err := c.ListHistories(ctx, api.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore())
	assert.Equal(t, "hist-unicode", list[0].ID, "newest first")

	list, _, err = c.ListHistories(ctx, api.ListOptions{Persona: "analyst"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hist-logrotate", list[0].ID)

	detail, err := c.GetHistory(ctx, "hist-logrotate")
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 4)
	assert.Positive(t, detail.Duration())

	all, err := c.AllHistoryEvents(ctx, "hist-logrotate", 3)
	require.NoError(t, err)
	assert.Len(t, all, detail.EventCount)
	for i, ev := range all {
		assert.Equal(t, int64(i+1), ev.Sequence)
	}

	msgs, _, err := c.GetHistoryEvents(ctx, "hist-logrotate", api.EventOptions{Types: []model.EventType{model.EventMessage}})
	require.NoError(t, err)
	assert.Len(t, msgs, 4)

	require.NoError(t, c.DeleteHistory(ctx, "hist-logrotate"))
	err = c.DeleteHistory(ctx, "hist-logrotate")
	assert.True(t, errors.Is(err, api.ErrNotFound))
}

func TestListHistories_BadLimit(t *testing.T) {
	srv, _ := startServer(t, devserver.Options{Seed: true})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"limit"`)
}

// =============================================================================
// REPLAY
// =============================================================================

func TestReplay_PlaysToCompletion(t *testing.T) {
	_, c := startServer(t, devserver.Options{Seed: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := c.StartReplay(ctx, "hist-sse", 16)
	require.NoError(t, err)
	assert.Equal(t, model.ReplayPlaying, status.State)
	assert.Equal(t, 16.0, status.Speed)

	var events []model.SessionEvent
	stats, err := c.StreamReplay(ctx, "hist-sse", func(ev model.SessionEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, stats.Done)

	require.Len(t, events, status.TotalEvents+1)
	last := events[len(events)-1]
	assert.True(t, last.IsTerminal())
	rs, ok := last.Replay()
	require.True(t, ok)
	assert.Equal(t, model.ReplayFinished, rs.State)
	assert.Equal(t, 1.0, rs.Progress())

	final, err := c.GetReplayStatus(ctx, "hist-sse")
	require.NoError(t, err)
	assert.Equal(t, model.ReplayFinished, final.State)
}

func TestReplay_PauseSeekResume(t *testing.T) {
	_, c := startServer(t, devserver.Options{Seed: true, ReplayMaxGap: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := c.StartReplay(ctx, "hist-logrotate", 1)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seqs []int64
	)
	done := make(chan error, 1)
	go func() {
		_, err := c.StreamReplay(ctx, "hist-logrotate", func(ev model.SessionEvent) error {
			mu.Lock()
			seqs = append(seqs, ev.Sequence)
			mu.Unlock()
			return nil
		})
		done <- err
	}()

	time.Sleep(60 * time.Millisecond)
	paused, err := c.PauseReplay(ctx, "hist-logrotate")
	require.NoError(t, err)
	assert.Equal(t, model.ReplayPaused, paused.State)

	// Jump to the last two events.
	seek, err := c.SeekReplay(ctx, "hist-logrotate", paused.TotalEvents-2)
	require.NoError(t, err)
	assert.Equal(t, paused.TotalEvents-2, seek.Position)

	_, err = c.ResumeReplay(ctx, "hist-logrotate")
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("replay did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(seqs), 3)
	tail := seqs[len(seqs)-3:]
	assert.Equal(t, int64(paused.TotalEvents-1), tail[0])
	assert.Equal(t, int64(paused.TotalEvents), tail[1])
}

func TestReplay_ControlErrors(t *testing.T) {
	_, c := startServer(t, devserver.Options{Seed: true})
	ctx := context.Background()

	_, err := c.PauseReplay(ctx, "hist-sse")
	require.Error(t, err)
	assert.Equal(t, api.KindHTTP, api.KindOf(err))
	assert.Equal(t, "failed to pause replay hist-sse: replay is not playing", err.Error())

	_, err = c.StartReplay(ctx, "missing", 1)
	assert.True(t, errors.Is(err, api.ErrNotFound))

	_, err = c.SeekReplay(ctx, "hist-sse", 10_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "position is past the last event")
}

func TestReplay_StopEndsStream(t *testing.T) {
	_, c := startServer(t, devserver.Options{Seed: true})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		// Idle replay: the stream waits for a control command.
		_, err := c.StreamReplay(ctx, "hist-sse", func(model.SessionEvent) error { return nil })
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	_, err := c.StopReplay(ctx, "hist-sse")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("stop did not end the stream")
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestAuth(t *testing.T) {
	srv, c := startServer(t, devserver.Options{Token: "s3cret"})
	ctx := context.Background()

	_, err := c.GetModels(ctx)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	anon := api.NewClientWithConfig(&api.ClientConfig{BaseURL: ts.URL})

	_, err = anon.Health(ctx)
	assert.NoError(t, err, "health is open")

	_, err = anon.GetModels(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
	assert.Equal(t, "failed to load models: missing or invalid bearer token", err.Error())
}

func TestSetFault(t *testing.T) {
	srv, c := startServer(t, devserver.Options{Seed: true})
	ctx := context.Background()

	srv.SetFault("/api/v1/history", http.StatusServiceUnavailable, "database unavailable")
	_, _, err := c.ListHistories(ctx, api.ListOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrServer))
	assert.Equal(t, "failed to list histories: database unavailable", err.Error())

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.NotEmpty(t, apiErr.RequestID)

	srv.SetFault("/api/v1/history", 0, "")
	_, _, err = c.ListHistories(ctx, api.ListOptions{})
	assert.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	srv, _ := startServer(t, devserver.Options{RatePerSec: 1})
	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		codes[rec.Code]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestRecoveryMiddleware(t *testing.T) {
	h := devserver.Chain(
		devserver.RequestIDMiddleware(),
		devserver.RecoveryMiddleware(zerolog.Nop()),
	)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Errors []struct{ Message string } `json:"errors"`
		Meta   struct {
			RequestID string `json:"request_id"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "internal server error", body.Errors[0].Message)
	assert.Equal(t, "req-1", body.Meta.RequestID)
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, devserver.ValidateBearerToken("abc", "abc"))
	assert.False(t, devserver.ValidateBearerToken("abc", "abd"))
	assert.False(t, devserver.ValidateBearerToken("", ""))
}

func TestListenAndServe(t *testing.T) {
	nop := zerolog.Nop()
	srv := devserver.New(devserver.Options{Logger: &nop})
	ctx, cancel := context.WithCancel(context.Background())

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0", ready) }()

	addr := <-ready
	c := api.NewClientWithConfig(&api.ClientConfig{BaseURL: "http://" + addr})
	_, err := c.Health(context.Background())
	require.NoError(t, err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
