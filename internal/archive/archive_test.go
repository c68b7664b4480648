// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleHistory(id string, started time.Time, contents ...string) *model.HistoryDetail {
	d := &model.HistoryDetail{
		HistorySummary: model.HistorySummary{
			ID:        id,
			Title:     "Chat " + id,
			Persona:   "analyst",
			Model:     "qwen2.5-coder:14b",
			StartedAt: started,
			EndedAt:   started.Add(5 * time.Minute),
		},
	}
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		d.Messages = append(d.Messages, model.Message{
			ID:        fmt.Sprintf("%s-m%d", id, i),
			Role:      role,
			Content:   c,
			CreatedAt: started.Add(time.Duration(i) * time.Second),
		})
	}
	return d
}

func sampleEvents(n int) []model.SessionEvent {
	events := make([]model.SessionEvent, n)
	for i := range events {
		events[i] = model.SessionEvent{
			ID:        fmt.Sprintf("ev-%d", i+1),
			Sequence:  int64(i + 1),
			Type:      model.EventMessageDelta,
			Timestamp: time.UnixMilli(1700000000000 + int64(i)).UTC(),
			Payload:   json.RawMessage(fmt.Sprintf(`{"content":"chunk %d"}`, i+1)),
		}
	}
	return events
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	d := sampleHistory("h1", started, "How do I rotate logs?", "Use lumberjack.")
	d.Messages[1].ToolCalls = []model.ToolCall{{ID: "t1", Name: "search"}}
	require.NoError(t, s.SaveHistory(ctx, d, sampleEvents(3)))

	got, err := s.GetHistory(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Chat h1", got.Title)
	assert.True(t, got.StartedAt.Equal(started))
	assert.Equal(t, 2, got.MessageCount)
	assert.Equal(t, 3, got.EventCount)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "Use lumberjack.", got.Messages[1].Content)
	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.Equal(t, "search", got.Messages[1].ToolCalls[0].Name)

	events, err := s.Events(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(2), events[1].Sequence)
	assert.Equal(t, model.EventMessageDelta, events[1].Type)
	assert.JSONEq(t, `{"content":"chunk 2"}`, string(events[1].Payload))
}

func TestStore_SaveReplacesPreviousCopy(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h1", started, "old question", "old answer"), sampleEvents(5)))
	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h1", started, "new question"), sampleEvents(1)))

	got, err := s.GetHistory(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "new question", got.Messages[0].Content)

	events, err := s.Events(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// Replaced text is gone from the search index too.
	hits, err := s.Search(ctx, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetHistory(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Events(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(s.Delete(ctx, "missing"), ErrNotFound))
}

func TestStore_SaveRejectsMissingID(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.SaveHistory(context.Background(), &model.HistoryDetail{}, nil))
	assert.Error(t, s.SaveHistory(context.Background(), nil, nil))
}

func TestStore_ListHistories(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("h%d", i)
		require.NoError(t, s.SaveHistory(ctx, sampleHistory(id, base.Add(time.Duration(i)*time.Hour), "hi"), nil))
	}

	entries, page, err := s.ListHistories(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h4", entries[0].ID, "most recent first")
	assert.Equal(t, "h3", entries[1].ID)
	assert.False(t, entries[0].PulledAt.IsZero())
	assert.Equal(t, 5, page.Total)
	assert.True(t, page.HasMore())

	entries, page, err = s.ListHistories(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "h0", entries[0].ID)
	assert.False(t, page.HasMore())
}

func TestStore_DeleteCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h1", time.Now(), "unique marmalade"), sampleEvents(2)))
	require.NoError(t, s.Delete(ctx, "h1"))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n))
	assert.Zero(t, n)

	hits, err := s.Search(ctx, "marmalade", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

// =============================================================================
// SEARCH TESTS
// =============================================================================

func TestStore_Search(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h1", now,
		"How should I rotate the application logs?",
		"Rotating logs is handled by lumberjack."), nil))
	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h2", now,
		"Café opening hours", "The café opens at eight."), nil))

	hits, err := s.Search(ctx, "rotate logs", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2, "porter stemming matches rotate and rotating")
	for _, h := range hits {
		assert.Equal(t, "h1", h.HistoryID)
		assert.Equal(t, "Chat h1", h.Title)
		assert.Contains(t, h.Snippet, "[")
	}

	// Decomposed é (e + U+0301) matches the composed form in the index.
	hits, err = s.Search(ctx, "cafe\u0301", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.Search(ctx, "rotate", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestStore_SearchTreatsOperatorsAsText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveHistory(ctx, sampleHistory("h1", time.Now(), `say "hello" NOT (world)`), nil))

	for _, q := range []string{`"hello`, `hello*`, `NOT`, `(world)`, `col:hello`, `a - b ^ c`} {
		_, err := s.Search(ctx, q, 5)
		assert.NoError(t, err, q)
	}

	_, err := s.Search(ctx, "   ", 5)
	assert.Equal(t, ErrEmptyQuery, err)
}

func TestBuildMatch(t *testing.T) {
	assert.Equal(t, `"rotate" "logs"`, buildMatch("  rotate   logs "))
	assert.Equal(t, `"say" """hi"""`, buildMatch(`say "hi"`))
	assert.Equal(t, `"café"`, buildMatch("café"))
	assert.Equal(t, "", buildMatch(" \t"))
}

// =============================================================================
// SYNC TESTS
// =============================================================================

type fakeSource struct {
	mu        sync.Mutex
	histories map[string]*model.HistoryDetail
	events    map[string][]model.SessionEvent
	failOn    map[string]error
	calls     int
}

func (f *fakeSource) ListHistories(ctx context.Context, opts api.ListOptions) ([]model.HistorySummary, model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	ids := make([]string, 0, len(f.histories))
	for i := 0; i < len(f.histories); i++ {
		ids = append(ids, fmt.Sprintf("h%d", i))
	}
	end := opts.Offset + opts.Limit
	if end > len(ids) {
		end = len(ids)
	}
	var out []model.HistorySummary
	for _, id := range ids[opts.Offset:end] {
		out = append(out, f.histories[id].HistorySummary)
	}
	return out, model.Page{Limit: opts.Limit, Offset: opts.Offset, Total: len(ids)}, nil
}

func (f *fakeSource) GetHistory(ctx context.Context, id string) (*model.HistoryDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.failOn[id]; err != nil {
		return nil, err
	}
	d, ok := f.histories[id]
	if !ok {
		return nil, api.ProcessError(&api.Error{Kind: api.KindHTTP, Status: 404}, "failed to load history "+id)
	}
	return d, nil
}

func (f *fakeSource) GetHistoryEvents(ctx context.Context, id string, opts api.EventOptions) ([]model.SessionEvent, model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	all := f.events[id]
	end := opts.Offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}
	if opts.Offset > len(all) {
		return nil, model.Page{}, nil
	}
	return all[opts.Offset:end], model.Page{Limit: opts.Limit, Offset: opts.Offset, Total: len(all)}, nil
}

func newFakeSource(n, eventsEach int) *fakeSource {
	f := &fakeSource{
		histories: map[string]*model.HistoryDetail{},
		events:    map[string][]model.SessionEvent{},
		failOn:    map[string]error{},
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("h%d", i)
		f.histories[id] = sampleHistory(id, time.Now(), "question", "answer")
		f.events[id] = sampleEvents(eventsEach)
	}
	return f
}

func TestSyncer_PullPagesEvents(t *testing.T) {
	s := openTestStore(t)
	src := newFakeSource(1, 7)
	syncer := NewSyncer(src, s, SyncOptions{PageSize: 3})

	res := syncer.Pull(context.Background(), "h0")
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Messages)
	assert.Equal(t, 7, res.Events)

	events, err := s.Events(context.Background(), "h0")
	require.NoError(t, err)
	assert.Len(t, events, 7)
}

// totalOnlyBackend serves one history with n events and page meta that
// carries the total but no limit.
func totalOnlyBackend(t *testing.T, n int) *api.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/history/h1", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"id":"h1","title":"paged","messages":[]}}`)
	})
	mux.HandleFunc("GET /api/v1/history/h1/events", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var items []string
		for i := offset; i < n && i < offset+limit; i++ {
			items = append(items, fmt.Sprintf(`{"id":"e%d","sequence":%d,"type":"status"}`, i+1, i+1))
		}
		fmt.Fprintf(w, `{"data":[%s],"meta":{"total":%d}}`, strings.Join(items, ","), n)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return api.NewClientWithConfig(&api.ClientConfig{BaseURL: server.URL})
}

func TestSyncer_PullPagesWithoutLimitInMeta(t *testing.T) {
	s := openTestStore(t)
	syncer := NewSyncer(totalOnlyBackend(t, 5), s, SyncOptions{PageSize: 2})

	res := syncer.Pull(context.Background(), "h1")
	require.NoError(t, res.Err)
	assert.Equal(t, 5, res.Events)

	events, err := s.Events(context.Background(), "h1")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestSyncer_PullAllReportsPerHistory(t *testing.T) {
	s := openTestStore(t)
	src := newFakeSource(5, 2)
	src.failOn["h2"] = errors.New("database unavailable")
	syncer := NewSyncer(src, s, SyncOptions{PageSize: 2})

	results, err := syncer.PullAll(context.Background(), api.ListOptions{})
	require.NoError(t, err)
	require.Len(t, results, 5)

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "h2", failed[0].ID)
	assert.EqualError(t, failed[0].Err, "database unavailable")

	entries, page, err := s.ListHistories(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, 4, page.Total)
}

func TestSyncer_RateLimited(t *testing.T) {
	s := openTestStore(t)
	src := newFakeSource(2, 1)
	// Two histories at two requests each: the last three wait 50ms apiece.
	syncer := NewSyncer(src, s, SyncOptions{RatePerSec: 20, Burst: 1, PageSize: 10})

	start := time.Now()
	results, err := syncer.PullIDs(context.Background(), []string{"h0", "h1"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestSyncer_CancelStopsRun(t *testing.T) {
	s := openTestStore(t)
	src := newFakeSource(3, 1)
	syncer := NewSyncer(src, s, SyncOptions{RatePerSec: 1, Burst: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results, err := syncer.PullIDs(ctx, []string{"h0", "h1", "h2"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, len(results), 3)
}
