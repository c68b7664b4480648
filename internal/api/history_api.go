// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/url"
	"strings"

	"github.com/jeranaias/sessionscope/internal/model"
)

// EventOptions filters the history events listing.
type EventOptions struct {
	Limit  int
	Offset int
	Types  []model.EventType
}

// Values encodes the options as query parameters.
func (o EventOptions) Values() url.Values {
	v := url.Values{}
	setInt(v, "limit", o.Limit)
	setInt(v, "offset", o.Offset)
	if len(o.Types) > 0 {
		types := make([]string, len(o.Types))
		for i, t := range o.Types {
			types[i] = string(t)
		}
		v.Set("types", strings.Join(types, ","))
	}
	return v
}

// ListHistories returns one page of recorded sessions.
func (c *Client) ListHistories(ctx context.Context, opts ListOptions) ([]model.HistorySummary, model.Page, error) {
	var items []model.HistorySummary
	meta, err := c.get(ctx, "/history", opts.Values(), &items)
	if err != nil {
		return nil, model.Page{}, ProcessError(err, "failed to list histories")
	}
	return items, pageOf(meta, opts.Offset, len(items)), nil
}

// GetHistory returns a recorded session with its messages.
func (c *Client) GetHistory(ctx context.Context, id string) (*model.HistoryDetail, error) {
	seg, err := segment(id)
	if err != nil {
		return nil, ProcessError(err, "failed to load history")
	}
	var detail model.HistoryDetail
	if _, err := c.get(ctx, "/history/"+seg, nil, &detail); err != nil {
		return nil, ProcessError(err, "failed to load history "+id)
	}
	return &detail, nil
}

// GetHistoryEvents returns one page of a recorded session's events.
func (c *Client) GetHistoryEvents(ctx context.Context, id string, opts EventOptions) ([]model.SessionEvent, model.Page, error) {
	seg, err := segment(id)
	if err != nil {
		return nil, model.Page{}, ProcessError(err, "failed to load history events")
	}
	var events []model.SessionEvent
	meta, err := c.get(ctx, "/history/"+seg+"/events", opts.Values(), &events)
	if err != nil {
		return nil, model.Page{}, ProcessError(err, "failed to load events for history "+id)
	}
	return events, pageOf(meta, opts.Offset, len(events)), nil
}

// AllHistoryEvents pages through GetHistoryEvents until the listing is
// exhausted. pageSize <= 0 lets the backend pick.
func (c *Client) AllHistoryEvents(ctx context.Context, id string, pageSize int, types ...model.EventType) ([]model.SessionEvent, error) {
	var all []model.SessionEvent
	opts := EventOptions{Limit: pageSize, Types: types}
	for {
		events, page, err := c.GetHistoryEvents(ctx, id, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
		if len(events) == 0 || !page.HasMore() {
			return all, nil
		}
		opts.Offset = page.NextOffset()
		if opts.Limit <= 0 {
			opts.Limit = page.Limit
		}
	}
}

// DeleteHistory removes a recorded session.
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	seg, err := segment(id)
	if err != nil {
		return ProcessError(err, "failed to delete history")
	}
	if err := c.delete(ctx, "/history/"+seg); err != nil {
		return ProcessError(err, "failed to delete history "+id)
	}
	return nil
}

// pageOf prefers the server's meta. Missing fields are taken from the
// request and the n items received, since a server may cap the page below
// the requested limit.
func pageOf(meta *Meta, offset, n int) model.Page {
	if meta == nil || (meta.Limit <= 0 && meta.Total <= 0) {
		return model.Page{Limit: n, Offset: offset, Total: offset + n, Open: n > 0}
	}
	page := meta.Page()
	if page.Limit <= 0 {
		page.Limit = n
		page.Offset = offset
	}
	return page
}
