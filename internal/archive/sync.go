// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package archive

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sessionscope/internal/api"
	"github.com/jeranaias/sessionscope/internal/model"
)

// errOutOfTime is returned when the next request could not start before
// the context deadline.
var errOutOfTime = errors.New("sync deadline reached")

// Source is the part of the API client a Syncer pulls from.
type Source interface {
	ListHistories(ctx context.Context, opts api.ListOptions) ([]model.HistorySummary, model.Page, error)
	GetHistory(ctx context.Context, id string) (*model.HistoryDetail, error)
	GetHistoryEvents(ctx context.Context, id string, opts api.EventOptions) ([]model.SessionEvent, model.Page, error)
}

// SyncOptions configures a Syncer.
type SyncOptions struct {
	RatePerSec float64 // API requests per second; <= 0 means unlimited
	Burst      int
	PageSize   int // page size for event and history listings
	Logger     *zerolog.Logger
}

// Result is the outcome of pulling one history.
type Result struct {
	ID       string        `json:"id"`
	Messages int           `json:"messages"`
	Events   int           `json:"events"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      error         `json:"-"`
}

// OK reports whether the pull succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Syncer pulls histories from the API into a Store. Every API request
// waits on a shared rate limiter.
type Syncer struct {
	source   Source
	store    *Store
	limiter  *rate.Limiter
	pageSize int
	logger   zerolog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(source Source, store *Store, opts SyncOptions) *Syncer {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Syncer{
		source:   source,
		store:    store,
		limiter:  rate.NewLimiter(limit, burst),
		pageSize: pageSize,
		logger:   logger.With().Str("component", "archive").Logger(),
	}
}

// Pull fetches one history with all its events and saves it.
func (s *Syncer) Pull(ctx context.Context, id string) Result {
	start := time.Now()
	res := Result{ID: id}
	res.Err = s.pull(ctx, id, &res)
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		s.logger.Warn().Err(res.Err).Str("history", id).Msg("pull failed")
	} else {
		s.logger.Debug().Str("history", id).Int("messages", res.Messages).
			Int("events", res.Events).Dur("elapsed", res.Elapsed).Msg("history archived")
	}
	return res
}

func (s *Syncer) pull(ctx context.Context, id string, res *Result) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	detail, err := s.source.GetHistory(ctx, id)
	if err != nil {
		return err
	}

	events := []model.SessionEvent{}
	offset := 0
	for {
		if err := s.wait(ctx); err != nil {
			return err
		}
		batch, page, err := s.source.GetHistoryEvents(ctx, id, api.EventOptions{Limit: s.pageSize, Offset: offset})
		if err != nil {
			return err
		}
		events = append(events, batch...)
		if len(batch) == 0 || !page.HasMore() {
			break
		}
		offset = page.NextOffset()
	}

	if err := s.store.SaveHistory(ctx, detail, events); err != nil {
		return errors.Wrapf(err, "failed to archive history %s", id)
	}
	res.Messages = len(detail.Messages)
	res.Events = len(events)
	return nil
}

// wait blocks until the limiter allows another request.
func (s *Syncer) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errOutOfTime
	}
	return nil
}

// PullIDs pulls each id in order. A failed history does not stop the run;
// a cancelled context does, and its error is returned with the results so far.
func (s *Syncer) PullIDs(ctx context.Context, ids []string) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := s.Pull(ctx, id)
		if res.Err != nil {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			if res.Err == errOutOfTime {
				return results, context.DeadlineExceeded
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// PullAll lists every history matching opts and pulls each one.
func (s *Syncer) PullAll(ctx context.Context, opts api.ListOptions) ([]Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.pageSize
	}

	var ids []string
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		batch, page, err := s.source.ListHistories(ctx, opts)
		if err != nil {
			return nil, err
		}
		for _, h := range batch {
			ids = append(ids, h.ID)
		}
		if len(batch) == 0 || !page.HasMore() {
			break
		}
		opts.Offset = page.NextOffset()
	}

	s.logger.Info().Int("histories", len(ids)).Msg("starting archive sync")
	return s.PullIDs(ctx, ids)
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
