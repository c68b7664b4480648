// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	return NewClientWithConfig(&ClientConfig{
		BaseURL: server.URL,
		Token:   "secret-token",
		Timeout: 5 * time.Second,
		Logger:  &logger,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

// =============================================================================
// CONFIGURATION TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{BaseURL: "http://example.test/"})
	cfg := c.Config()
	assert.Equal(t, "http://example.test", cfg.BaseURL)
	assert.Equal(t, "v1", cfg.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "http://example.test/api/v1", c.APIRoot())

	c = NewClient()
	assert.Equal(t, "http://127.0.0.1:8080/api/v1", c.APIRoot())
}

func TestClient_RequestHeaders(t *testing.T) {
	var got http.Header
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		writeEnvelope(w, http.StatusOK, `{"data":[]}`)
	})

	_, err := c.GetModels(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/config/models", path)
	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "sessionscope", got.Get("User-Agent"))
	assert.Len(t, got.Get("X-Request-ID"), 36)
}

// =============================================================================
// ENVELOPE TESTS
// =============================================================================

func TestGetModels_UnwrapsData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{
			"data": [{"id":"m1","name":"Fast","provider":"local","context_window":8192,"default":true}],
			"meta": {"request_id":"req-1"},
			"errors": []
		}`)
	})

	models, err := c.GetModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Fast", models[0].Name)
	assert.Equal(t, "8K", models[0].ContextString())
}

func TestEnvelopeErrorsOn2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"data":null,"errors":[{"code":"bad","message":"persona disabled","field":"persona"}]}`)
	})

	_, err := c.GetPersonas(context.Background())
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindAPI, apiErr.Kind)
	assert.Equal(t, "failed to load personas", apiErr.Message)
	assert.Equal(t, "failed to load personas: persona: persona disabled", err.Error())
}

func TestNon2xxWithoutEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.GetTools(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed to load tools: upstream exploded", err.Error())
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, KindHTTP, KindOf(err))
}

func TestNon2xxEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.GetHistory(context.Background(), "h1")
	require.Error(t, err)
	assert.Equal(t, "failed to load history h1: HTTP 404 Not Found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrServer)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.NotEmpty(t, apiErr.RequestID, "request id of the outgoing request is kept")
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"data":{"status":42}}`)
	})

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "health check failed: "))
}

// TestAllEndpoints_Non2xxCarriesContext checks that every endpoint reports
// a failed response with its own contextual message.
func TestAllEndpoints_Non2xxCarriesContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError,
			`{"data":null,"errors":[{"code":"internal","message":"database unavailable"}]}`)
	})
	ctx := context.Background()

	tests := []struct {
		name    string
		context string
		call    func() error
	}{
		{"GetModels", "failed to load models", func() error { _, err := c.GetModels(ctx); return err }},
		{"GetPersonas", "failed to load personas", func() error { _, err := c.GetPersonas(ctx); return err }},
		{"GetTools", "failed to load tools", func() error { _, err := c.GetTools(ctx); return err }},
		{"GetSystemConfig", "failed to load system configuration", func() error { _, err := c.GetSystemConfig(ctx); return err }},
		{"Health", "health check failed", func() error { _, err := c.Health(ctx); return err }},
		{"ListHistories", "failed to list histories", func() error { _, _, err := c.ListHistories(ctx, ListOptions{}); return err }},
		{"GetHistory", "failed to load history h1", func() error { _, err := c.GetHistory(ctx, "h1"); return err }},
		{"GetHistoryEvents", "failed to load events for history h1", func() error {
			_, _, err := c.GetHistoryEvents(ctx, "h1", EventOptions{})
			return err
		}},
		{"DeleteHistory", "failed to delete history h1", func() error { return c.DeleteHistory(ctx, "h1") }},
		{"StartReplay", "failed to start replay h1", func() error { _, err := c.StartReplay(ctx, "h1", 2); return err }},
		{"PauseReplay", "failed to pause replay h1", func() error { _, err := c.PauseReplay(ctx, "h1"); return err }},
		{"ResumeReplay", "failed to resume replay h1", func() error { _, err := c.ResumeReplay(ctx, "h1"); return err }},
		{"StopReplay", "failed to stop replay h1", func() error { _, err := c.StopReplay(ctx, "h1"); return err }},
		{"SeekReplay", "failed to seek replay h1", func() error { _, err := c.SeekReplay(ctx, "h1", 3); return err }},
		{"GetReplayStatus", "failed to load replay status for h1", func() error { _, err := c.GetReplayStatus(ctx, "h1"); return err }},
		{"ListSessions", "failed to list sessions", func() error { _, _, err := c.ListSessions(ctx, ListOptions{}); return err }},
		{"CreateSession", "failed to create session", func() error { _, err := c.CreateSession(ctx, CreateSessionRequest{}); return err }},
		{"GetSession", "failed to load session s1", func() error { _, err := c.GetSession(ctx, "s1"); return err }},
		{"DeleteSession", "failed to delete session s1", func() error { return c.DeleteSession(ctx, "s1") }},
		{"SendMessage", "failed to send message to session s1", func() error {
			_, err := c.SendMessage(ctx, "s1", SendMessageRequest{Content: "hi"})
			return err
		}},
		{"StreamSessionEvents", "failed to open session stream s1", func() error {
			_, err := c.StreamSessionEvents(ctx, "s1", func(model.SessionEvent) error { return nil })
			return err
		}},
		{"StreamReplay", "failed to open replay stream h1", func() error {
			_, err := c.StreamReplay(ctx, "h1", func(model.SessionEvent) error { return nil })
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.context, apiErr.Message)
			assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
			assert.Equal(t, tt.context+": database unavailable", err.Error())
			assert.ErrorIs(t, err, ErrServer)
		})
	}
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestListHistories_Query(t *testing.T) {
	var query string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, `{"data":[{"id":"h1"},{"id":"h2"}],"meta":{"limit":2,"offset":4,"total":9}}`)
	})

	items, page, err := c.ListHistories(context.Background(), ListOptions{Limit: 2, Offset: 4, Search: "deploy plan"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "limit=2&offset=4&search=deploy+plan", query)
	assert.Equal(t, model.Page{Limit: 2, Offset: 4, Total: 9}, page)
	assert.True(t, page.HasMore())
}

func TestListOptions_OmitsZeroValues(t *testing.T) {
	assert.Empty(t, ListOptions{}.Values().Encode())
	assert.Equal(t, "persona=coder", ListOptions{Persona: "coder"}.Values().Encode())
	assert.Equal(t, "limit=5&types=message%2Ctool_call",
		EventOptions{Limit: 5, Types: []model.EventType{model.EventMessage, model.EventToolCall}}.Values().Encode())
}

func TestAllHistoryEvents_Pages(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("offset") {
		case "":
			writeEnvelope(w, http.StatusOK, `{"data":[{"sequence":1},{"sequence":2}],"meta":{"limit":2,"offset":0,"total":3}}`)
		case "2":
			writeEnvelope(w, http.StatusOK, `{"data":[{"sequence":3}],"meta":{"limit":2,"offset":2,"total":3}}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	events, err := c.AllHistoryEvents(context.Background(), "h1", 2)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[2].Sequence)
	assert.Equal(t, int32(2), calls.Load())
}

// eventServer serves n events, at most limitCap per page. withMeta controls
// whether the envelope reports only the total or no meta at all.
func eventServer(n, limitCap int, withMeta bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > limitCap {
			limit = limitCap
		}
		var items []string
		for i := offset; i < n && i < offset+limit; i++ {
			items = append(items, fmt.Sprintf(`{"sequence":%d}`, i+1))
		}
		body := `{"data":[` + strings.Join(items, ",") + `]`
		if withMeta {
			body += fmt.Sprintf(`,"meta":{"total":%d}`, n)
		}
		writeEnvelope(w, http.StatusOK, body+"}")
	}
}

func TestAllHistoryEvents_MetaWithoutLimit(t *testing.T) {
	c := newTestClient(t, eventServer(5, 100, true))

	events, err := c.AllHistoryEvents(context.Background(), "h1", 2)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Sequence)
	}
}

func TestAllHistoryEvents_NoMetaCappedPages(t *testing.T) {
	var calls atomic.Int32
	handler := eventServer(5, 2, false)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	})

	events, err := c.AllHistoryEvents(context.Background(), "h1", 3)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, int64(5), events[4].Sequence)
	// 2 + 2 + 1 and a final empty page.
	assert.Equal(t, int32(4), calls.Load())
}

func TestPageOf(t *testing.T) {
	tests := []struct {
		name      string
		meta      *Meta
		offset, n int
		want      model.Page
	}{
		{"full meta", &Meta{Limit: 2, Offset: 4, Total: 9}, 4, 2, model.Page{Limit: 2, Offset: 4, Total: 9}},
		{"total only", &Meta{Total: 9}, 4, 3, model.Page{Limit: 3, Offset: 4, Total: 9}},
		{"no meta", nil, 4, 3, model.Page{Limit: 3, Offset: 4, Total: 7, Open: true}},
		{"no meta empty", nil, 4, 0, model.Page{Limit: 0, Offset: 4, Total: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageOf(tt.meta, tt.offset, tt.n))
		})
	}
}

func TestPathEscaping(t *testing.T) {
	var rawPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		writeEnvelope(w, http.StatusOK, `{"data":{"id":"a/b"}}`)
	})

	_, err := c.GetSession(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/sessions/a%2Fb", rawPath)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestReplayValidation_NoRequest(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusOK, `{"data":{}}`)
	})
	ctx := context.Background()

	_, err := c.StartReplay(ctx, "h1", 32)
	assert.Equal(t, KindInvalid, KindOf(err))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.StartReplay(ctx, "h1", -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.SetReplaySpeed(ctx, "h1", math.NaN())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.SeekReplay(ctx, "h1", -5)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.ControlReplay(ctx, "h1", ReplayCommand{Action: "rewind"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.ControlReplay(ctx, "h1", ReplayCommand{Action: model.ReplaySeek})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.PauseReplay(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = c.SendMessage(ctx, "s1", SendMessageRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Zero(t, calls.Load())
}

func TestControlReplay_Body(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/replay/h1/control", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeEnvelope(w, http.StatusOK, `{"data":{"session_id":"h1","state":"paused","position":0,"total_events":4}}`)
	})

	status, err := c.SeekReplay(context.Background(), "h1", 0)
	require.NoError(t, err)
	assert.Equal(t, model.ReplayPaused, status.State)
	assert.Equal(t, map[string]interface{}{"action": "seek", "position": float64(0)}, body)
}

// =============================================================================
// TRANSPORT ERROR TESTS
// =============================================================================

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url})
	_, err := c.GetModels(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "failed to load models: "))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Temporary())
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, `{"data":[]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetModels(ctx)
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	_, err := c.GetModels(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

// =============================================================================
// PROCESS ERROR TESTS
// =============================================================================

func TestProcessError(t *testing.T) {
	assert.Nil(t, ProcessError(nil, "anything"))

	cause := fmt.Errorf("dial tcp: connection refused")
	err := ProcessError(cause, "failed to load models")
	assert.Equal(t, "failed to load models: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	// Re-processing keeps the status and layers the messages.
	inner := ProcessError(&Error{Kind: KindHTTP, Status: 401}, "failed to load session s1")
	outer := ProcessError(inner, "chat aborted")
	assert.Equal(t, "chat aborted: failed to load session s1: HTTP 401 Unauthorized", outer.Error())
	assert.ErrorIs(t, outer, ErrUnauthorized)
	assert.Equal(t, KindHTTP, KindOf(outer))
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "decode", KindDecode.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
