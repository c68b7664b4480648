// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	headerRequestID = "X-Request-ID"

	defaultBaseURL    = "http://127.0.0.1:8080"
	defaultAPIVersion = "v1"
	defaultTimeout    = 30 * time.Second
	defaultUserAgent  = "sessionscope"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the API client.
type ClientConfig struct {
	// BaseURL is the backend origin (default: http://127.0.0.1:8080)
	BaseURL string

	// APIVersion is the path segment after /api (default: v1)
	APIVersion string

	// Token is sent as a bearer token when set
	Token string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// UserAgent header value
	UserAgent string

	// HTTPClient overrides the transport; its Timeout is ignored for streams
	HTTPClient *http.Client

	// Logger receives request debug logs (default: the global zerolog logger)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:    defaultBaseURL,
		APIVersion: defaultAPIVersion,
		Timeout:    defaultTimeout,
		UserAgent:  defaultUserAgent,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. It is safe for concurrent use.
//
// Example:
//
//	client := api.NewClientWithConfig(&api.ClientConfig{BaseURL: "http://localhost:8080"})
//	models, err := client.GetModels(ctx)
//	if err != nil {
//	    return err // "failed to load models: HTTP 503 Service Unavailable"
//	}
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	logger       zerolog.Logger
}

// NewClient creates a client with the default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	cfg.APIVersion = strings.Trim(cfg.APIVersion, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	var transport http.RoundTripper
	if cfg.HTTPClient != nil {
		transport = cfg.HTTPClient.Transport
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		config:       &cfg,
		httpClient:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() ClientConfig {
	return *c.config
}

// APIRoot returns the URL prefix every endpoint path is appended to.
func (c *Client) APIRoot() string {
	return c.config.BaseURL + "/api/" + c.config.APIVersion
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u := c.APIRoot() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindInvalid, Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Kind: KindInvalid, Cause: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set(headerRequestID, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	return req, nil
}

// call performs one request and unwraps the envelope into out.
// Errors are unprocessed; endpoint methods attach their context.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*Meta, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("method", method).
			Str("path", path).
			Str("request_id", req.Header.Get(headerRequestID)).
			Msg("request failed")
		return nil, &Error{Kind: classify(err), RequestID: req.Header.Get(headerRequestID), Cause: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Str("request_id", req.Header.Get(headerRequestID)).
		Msg("request")

	meta, err := unwrap(resp, out)
	if apiErr, ok := err.(*Error); ok && apiErr.RequestID == "" {
		apiErr.RequestID = req.Header.Get(headerRequestID)
	}
	return meta, err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (*Meta, error) {
	return c.call(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) (*Meta, error) {
	return c.call(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	_, err := c.call(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

// =============================================================================
// QUERY OPTIONS
// =============================================================================

// ListOptions are the optional pagination and filter parameters of list
// endpoints. Zero values are omitted from the query.
type ListOptions struct {
	Limit   int
	Offset  int
	Persona string
	Search  string
}

// Values encodes the options as query parameters.
func (o ListOptions) Values() url.Values {
	v := url.Values{}
	setInt(v, "limit", o.Limit)
	setInt(v, "offset", o.Offset)
	if o.Persona != "" {
		v.Set("persona", o.Persona)
	}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	return v
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

// segment escapes one path element and rejects empty IDs.
func segment(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalidf("empty id")
	}
	return url.PathEscape(id), nil
}
