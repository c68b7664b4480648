// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package devserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sessionscope/internal/model"
)

const (
	// DefaultAddr is the listen address when none is given.
	DefaultAddr = "127.0.0.1:8080"

	// APIPrefix is the versioned route prefix.
	APIPrefix = "/api/v1"

	defaultPageSize = 20
	maxPageSize     = 100
	maxSpeed        = 16
)

// ============================================================================
// OPTIONS
// ============================================================================

// Options configures a Server.
type Options struct {
	// Token, when set, is required as a bearer token on every route but health.
	Token string

	// RatePerSec limits requests per second across all clients. 0 disables it.
	RatePerSec float64

	// ReplayMaxGap caps the pause between replayed events at speed 1.
	// Default: 1s
	ReplayMaxGap time.Duration

	// StreamNoise writes a malformed data line at the start of every stream.
	StreamNoise bool

	// Seed loads the sample histories.
	Seed bool

	Logger *zerolog.Logger
}

// ============================================================================
// SERVER
// ============================================================================

// Server serves the chat API from an in-memory Store.
type Server struct {
	opts    Options
	store   *Store
	mux     *http.ServeMux
	handler http.Handler
	logger  zerolog.Logger

	mu     sync.Mutex
	server *http.Server
	faults map[string]*apiError
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.ReplayMaxGap <= 0 {
		opts.ReplayMaxGap = time.Second
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "devserver").Logger()

	s := &Server{
		opts:   opts,
		store:  NewStore(),
		mux:    http.NewServeMux(),
		logger: logger,
		faults: make(map[string]*apiError),
	}
	if opts.Seed {
		s.store.Seed()
	}
	s.setupRoutes()

	middlewares := []Middleware{
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	}
	if opts.RatePerSec > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RatePerSec), int(opts.RatePerSec)+1)))
	}
	middlewares = append(middlewares, AuthMiddleware(opts.Token, logger), s.faultMiddleware)
	s.handler = Chain(middlewares...)(s.mux)
	return s
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetFault makes every request to path fail with status and message until
// cleared with status 0.
func (s *Server) SetFault(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.faults, path)
		return
	}
	s.faults[path] = &apiError{status, errorDetail{Code: "injected", Message: message}}
}

func (s *Server) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		fault := s.faults[r.URL.Path]
		s.mu.Unlock()
		if fault != nil {
			writeError(w, r, fault)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	p := APIPrefix
	s.mux.HandleFunc("GET "+p+"/health", s.handleHealth)

	s.mux.HandleFunc("GET "+p+"/config/models", s.handleModels)
	s.mux.HandleFunc("GET "+p+"/config/personas", s.handlePersonas)
	s.mux.HandleFunc("GET "+p+"/config/tools", s.handleTools)
	s.mux.HandleFunc("GET "+p+"/config/system", s.handleSystem)

	s.mux.HandleFunc("GET "+p+"/history", s.handleListHistories)
	s.mux.HandleFunc("GET "+p+"/history/{id}", s.handleGetHistory)
	s.mux.HandleFunc("GET "+p+"/history/{id}/events", s.handleHistoryEvents)
	s.mux.HandleFunc("DELETE "+p+"/history/{id}", s.handleDeleteHistory)

	s.mux.HandleFunc("GET "+p+"/replay/{id}", s.handleReplayStatus)
	s.mux.HandleFunc("POST "+p+"/replay/{id}/control", s.handleReplayControl)
	s.mux.HandleFunc("GET "+p+"/replay/{id}/stream", s.handleReplayStream)

	s.mux.HandleFunc("GET "+p+"/sessions", s.handleListSessions)
	s.mux.HandleFunc("POST "+p+"/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET "+p+"/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE "+p+"/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST "+p+"/sessions/{id}/messages", s.handleSendMessage)
	s.mux.HandleFunc("GET "+p+"/sessions/{id}/events", s.handleSessionStream)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &apiError{http.StatusNotFound, errorDetail{Code: "not_found", Message: "no route for " + r.Method + " " + r.URL.Path}})
	})
}

// ============================================================================
// CONFIG HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, model.Health{Status: "ok", Version: s.store.System().Version}, nil)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, s.store.Models(), nil)
}

func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, s.store.Personas(), nil)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, s.store.Tools(), nil)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	writeData(w, r, http.StatusOK, s.store.System(), nil)
}

// ============================================================================
// HISTORY HANDLERS
// ============================================================================

func (s *Server) handleListHistories(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	all := s.store.listHistories(q.Get("persona"), q.Get("search"))
	items, m := paginate(all, limit, offset)
	writeData(w, r, http.StatusOK, items, m)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail, ok := s.store.history(id)
	if !ok {
		writeError(w, r, errNotFound("history", id))
		return
	}
	writeData(w, r, http.StatusOK, detail, nil)
}

func (s *Server) handleHistoryEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var types map[model.EventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = make(map[model.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types[model.EventType(t)] = true
			}
		}
	}

	events, ok := s.store.historyEvents(id, types)
	if !ok {
		writeError(w, r, errNotFound("history", id))
		return
	}
	items, m := paginate(events, limit, offset)
	writeData(w, r, http.StatusOK, items, m)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.deleteHistory(id) {
		writeError(w, r, errNotFound("history", id))
		return
	}
	writeData(w, r, http.StatusOK, nil, nil)
}

// ============================================================================
// REPLAY HANDLERS
// ============================================================================

type replayCommand struct {
	Action   model.ReplayAction `json:"action"`
	Speed    float64            `json:"speed,omitempty"`
	Position *int               `json:"position,omitempty"`
}

func (s *Server) handleReplayStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := s.store.replayStatus(id)
	if !ok {
		writeError(w, r, errNotFound("history", id))
		return
	}
	writeData(w, r, http.StatusOK, status, nil)
}

func (s *Server) handleReplayControl(w http.ResponseWriter, r *http.Request) {
	var cmd replayCommand
	if err := decodeBody(r, &cmd); err != nil {
		writeError(w, r, err)
		return
	}
	if !cmd.Action.IsValid() {
		writeError(w, r, errInvalid("action", "unknown replay action "+strconv.Quote(string(cmd.Action))))
		return
	}
	if cmd.Speed < 0 || cmd.Speed > maxSpeed {
		writeError(w, r, errInvalid("speed", "speed must be between 0 and 16"))
		return
	}
	if cmd.Position != nil && *cmd.Position < 0 {
		writeError(w, r, errInvalid("position", "position must not be negative"))
		return
	}

	status, err := s.store.controlReplay(r.PathValue("id"), cmd.Action, cmd.Speed, cmd.Position)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, status, nil)
}

// ============================================================================
// SESSION HANDLERS
// ============================================================================

type createSessionRequest struct {
	Title   string `json:"title"`
	Persona string `json:"persona"`
	Model   string `json:"model"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	items, m := paginate(s.store.listSessions(q.Get("persona"), q.Get("search")), limit, offset)
	writeData(w, r, http.StatusOK, items, m)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.store.createSession(strings.TrimSpace(req.Title), req.Persona, req.Model)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, sess, nil)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.store.session(id)
	if !ok {
		writeError(w, r, errNotFound("session", id))
		return
	}
	writeData(w, r, http.StatusOK, sess, nil)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.store.deleteSession(id) {
		writeError(w, r, errNotFound("session", id))
		return
	}
	writeData(w, r, http.StatusOK, nil, nil)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, errInvalid("content", "content is required"))
		return
	}
	if req.Model != "" && !s.store.hasModel(req.Model) {
		writeError(w, r, errUnknown("model", req.Model))
		return
	}

	id := r.PathValue("id")
	msg, ok := s.store.sendMessage(id, req.Content, req.Model)
	if !ok {
		writeError(w, r, errNotFound("session", id))
		return
	}
	writeData(w, r, http.StatusCreated, msg, nil)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Bool("auth", s.opts.Token != "").Msg("dev server listening")
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("dev server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errInvalid("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			return 0, 0, errInvalid("limit", "limit must be a positive integer")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			return 0, 0, errInvalid("offset", "offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}

func paginate[T any](all []T, limit, offset int) ([]T, *meta) {
	m := &meta{Limit: limit, Offset: offset, Total: len(all)}
	if offset >= len(all) {
		return []T{}, m
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], m
}
