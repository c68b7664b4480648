// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/sessionscope/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a history is not in the archive.
	ErrNotFound = errors.New("history not found in archive")

	// ErrEmptyQuery is returned by Search for a query with no terms.
	ErrEmptyQuery = errors.New("empty search query")
)

// =============================================================================
// TYPES
// =============================================================================

// Entry is an archived history summary plus when it was pulled.
type Entry struct {
	model.HistorySummary
	PulledAt time.Time `json:"pulled_at"`
}

// SearchHit is one message matching a Search query.
type SearchHit struct {
	HistoryID string     `json:"history_id"`
	Title     string     `json:"title"`
	MessageID string     `json:"message_id,omitempty"`
	Role      model.Role `json:"role"`
	Position  int        `json:"position"`
	Snippet   string     `json:"snippet"`
	Rank      float64    `json:"rank"`
}

// Store is an open archive database.
type Store struct {
	db   *sql.DB
	path string
}

// =============================================================================
// OPEN / CLOSE
// =============================================================================

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("archive path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, errors.Wrap(err, "failed to create archive directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open archive")
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000", // 16MB cache
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA wal_autocheckpoint=1000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "failed to set pragma %q", pragma)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create archive schema")
	}
	if _, err := db.Exec(
		`INSERT INTO metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to record schema version")
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// =============================================================================
// WRITE
// =============================================================================

// SaveHistory stores detail and its events, replacing any previous copy.
// The whole write happens in one transaction.
func (s *Store) SaveHistory(ctx context.Context, detail *model.HistoryDetail, events []model.SessionEvent) error {
	if detail == nil || strings.TrimSpace(detail.ID) == "" {
		return errors.New("history has no id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	msgCount := detail.MessageCount
	if len(detail.Messages) > 0 {
		msgCount = len(detail.Messages)
	}
	eventCount := detail.EventCount
	if events != nil {
		eventCount = len(events)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO histories (id, title, persona, model, started_at, ended_at, message_count, event_count, pulled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			persona = excluded.persona,
			model = excluded.model,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			message_count = excluded.message_count,
			event_count = excluded.event_count,
			pulled_at = excluded.pulled_at`,
		detail.ID, detail.Title, detail.Persona, detail.Model,
		toMillis(detail.StartedAt), toMillis(detail.EndedAt),
		msgCount, eventCount, toMillis(time.Now()),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save history %s", detail.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE history_id = ?", detail.ID); err != nil {
		return errors.Wrap(err, "failed to clear messages")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE history_id = ?", detail.ID); err != nil {
		return errors.Wrap(err, "failed to clear events")
	}

	msgStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (history_id, position, message_id, role, content, persona, model, tool_calls, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare message insert")
	}
	defer msgStmt.Close()

	for i, m := range detail.Messages {
		calls := ""
		if len(m.ToolCalls) > 0 {
			data, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return errors.Wrap(err, "failed to encode tool calls")
			}
			calls = string(data)
		}
		if _, err := msgStmt.ExecContext(ctx,
			detail.ID, i, m.ID, string(m.Role), m.Content, m.Persona, m.Model, calls, toMillis(m.CreatedAt),
		); err != nil {
			return errors.Wrapf(err, "failed to save message %d", i)
		}
	}

	if len(events) > 0 {
		evStmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO events (history_id, sequence, event_id, type, timestamp, payload)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "failed to prepare event insert")
		}
		defer evStmt.Close()

		for _, ev := range events {
			if _, err := evStmt.ExecContext(ctx,
				detail.ID, ev.Sequence, ev.ID, string(ev.Type), toMillis(ev.Timestamp), string(ev.Payload),
			); err != nil {
				return errors.Wrapf(err, "failed to save event %d", ev.Sequence)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history")
	}
	return nil
}

// Delete removes a history with its messages and events.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM histories WHERE id = ?", id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete history %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrap(ErrNotFound, id)
	}
	return nil
}

// =============================================================================
// READ
// =============================================================================

// ListHistories returns archived histories, most recent first.
func (s *Store) ListHistories(ctx context.Context, limit, offset int) ([]Entry, model.Page, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM histories").Scan(&total); err != nil {
		return nil, model.Page{}, errors.Wrap(err, "failed to count histories")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, persona, model, started_at, ended_at, message_count, event_count, pulled_at
		FROM histories
		ORDER BY started_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, model.Page{}, errors.Wrap(err, "failed to list histories")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, model.Page{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Page{}, errors.Wrap(err, "failed to read histories")
	}
	return entries, model.Page{Limit: limit, Offset: offset, Total: total}, nil
}

// GetHistory returns an archived history with its messages in order.
func (s *Store) GetHistory(ctx context.Context, id string) (*model.HistoryDetail, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, persona, model, started_at, ended_at, message_count, event_count, pulled_at
		FROM histories WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil, errors.Wrap(ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, persona, model, tool_calls, created_at
		FROM messages WHERE history_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages")
	}
	defer rows.Close()

	detail := &model.HistoryDetail{HistorySummary: entry.HistorySummary, Messages: []model.Message{}}
	for rows.Next() {
		var (
			m       model.Message
			role    string
			calls   string
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.Persona, &m.Model, &calls, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		m.SessionID = id
		m.Role = model.Role(role)
		m.CreatedAt = fromMillis(created)
		if calls != "" {
			if err := json.Unmarshal([]byte(calls), &m.ToolCalls); err != nil {
				return nil, errors.Wrap(err, "failed to decode tool calls")
			}
		}
		detail.Messages = append(detail.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read messages")
	}
	return detail, nil
}

// Events returns the archived events of a history ordered by sequence.
func (s *Store) Events(ctx context.Context, id string) ([]model.SessionEvent, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM histories WHERE id = ?", id).Scan(&exists); err != nil {
		return nil, errors.Wrap(err, "failed to look up history")
	}
	if exists == 0 {
		return nil, errors.Wrap(ErrNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_id, type, timestamp, payload
		FROM events WHERE history_id = ? ORDER BY sequence`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load events")
	}
	defer rows.Close()

	events := []model.SessionEvent{}
	for rows.Next() {
		var (
			ev      model.SessionEvent
			typ     string
			ts      int64
			payload string
		)
		if err := rows.Scan(&ev.Sequence, &ev.ID, &typ, &ts, &payload); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		ev.SessionID = id
		ev.Type = model.EventType(typ)
		ev.Timestamp = fromMillis(ts)
		if payload != "" {
			ev.Payload = json.RawMessage(payload)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read events")
	}
	return events, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search finds archived messages matching query, best matches first.
// Every term must match; FTS5 operators in the query are treated as text.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	match := buildMatch(query)
	if match == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.history_id, h.title, m.message_id, m.role, m.position,
			snippet(messages_fts, 0, '[', ']', '...', 12), fts.rank
		FROM messages_fts fts
		JOIN messages m ON m.id = fts.rowid
		JOIN histories h ON h.id = m.history_id
		WHERE messages_fts MATCH ?
		ORDER BY fts.rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search failed")
	}
	defer rows.Close()

	hits := []SearchHit{}
	for rows.Next() {
		var (
			h    SearchHit
			role string
		)
		if err := rows.Scan(&h.HistoryID, &h.Title, &h.MessageID, &role, &h.Position, &h.Snippet, &h.Rank); err != nil {
			return nil, errors.Wrap(err, "failed to scan search hit")
		}
		h.Role = model.Role(role)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read search hits")
	}
	return hits, nil
}

// buildMatch turns free text into an FTS5 expression of quoted terms.
// Input is NFC-normalized so composed and decomposed accents match the
// indexed text.
func buildMatch(query string) string {
	terms := strings.Fields(norm.NFC.String(query))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                      Entry
		started, ended, pulled int64
	)
	err := row.Scan(&e.ID, &e.Title, &e.Persona, &e.Model, &started, &ended,
		&e.MessageCount, &e.EventCount, &pulled)
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to scan history")
	}
	e.StartedAt = fromMillis(started)
	e.EndedAt = fromMillis(ended)
	e.PulledAt = fromMillis(pulled)
	return e, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
