// Package sisu fetches client transaction records from the SISU CRM.
//
// Records are collected in two phases: a single list call returns the client
// identifiers, then the detail of every client is fetched in sequential
// batches whose members run concurrently.
package sisu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/logging"
	"sisu-notifier/internal/models"
	"sisu-notifier/pkg/utils"
)

const (
	// DefaultBaseURL is the production SISU API root.
	DefaultBaseURL = "https://api.sisu.co/api/v1"

	listPath   = "/client/list"
	detailPath = "/client/edit-client/%d"

	maxErrorBody = 4096
)

// Config holds the SISU client configuration.
type Config struct {
	BaseURL          string
	AuthHeader       string
	MarketID         int64
	Context          string // "team" or "agent"
	ContextID        int64
	ColumnFilter     string
	Limit            int
	AddReturnColumns []string
	BatchSize        int
	RequestTimeout   time.Duration
	RateLimit        float64 // requests per second, 0 disables limiting
	Retry            utils.RetryConfig
}

// DefaultConfig returns the default SISU client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Context:        "team",
		ColumnFilter:   "appt_set_dt",
		Limit:          1000,
		BatchSize:      10,
		RequestTimeout: 20 * time.Second,
		RateLimit:      5,
		Retry:          utils.DefaultRetryConfig(),
	}
}

// Client is a SISU API client. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new SISU client.
func NewClient(cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Context == "" {
		cfg.Context = defaults.Context
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = defaults.Retry
	}
	cfg.Retry.Retryable = isRetryable

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, cfg.BatchSize),
		logger:  zerolog.Nop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BatchSize)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "sisu")
	return c
}

// listRequest is the body of the phase-one list call.
type listRequest struct {
	MarketID         int64    `json:"market_id"`
	Context          string   `json:"context"`
	ContextID        int64    `json:"context_id"`
	ColumnFilter     string   `json:"column_filter,omitempty"`
	Limit            int      `json:"limit"`
	AddReturnColumns []string `json:"add_return_columns,omitempty"`
}

type listResponse struct {
	Clients []models.ClientRecord `json:"clients"`
	Status  string                `json:"status"`
}

// FetchActiveRecords returns every active client record. A failure of the list
// call is fatal and returned as a *errors.RemoteFetchError. Detail failures only
// drop the affected record.
func (c *Client) FetchActiveRecords(ctx context.Context) ([]models.ClientRecord, error) {
	listed, err := utils.RetryWithResult(ctx, c.cfg.Retry, func() ([]models.ClientRecord, error) {
		return c.listClients(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().Int("clients", len(listed)).Msg("Fetched client list")

	if len(c.cfg.AddReturnColumns) > 0 {
		return listed, nil
	}
	return c.fetchDetails(ctx, listed)
}

func (c *Client) listClients(ctx context.Context) ([]models.ClientRecord, error) {
	endpoint := c.cfg.BaseURL + listPath

	body, err := json.Marshal(listRequest{
		MarketID:         c.cfg.MarketID,
		Context:          c.cfg.Context,
		ContextID:        c.cfg.ContextID,
		ColumnFilter:     c.cfg.ColumnFilter,
		Limit:            c.cfg.Limit,
		AddReturnColumns: c.cfg.AddReturnColumns,
	})
	if err != nil {
		return nil, errors.NewRemoteFetchError(endpoint, 0, "", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.NewRemoteFetchError(endpoint, 0, "", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewRemoteFetchError(endpoint, 0, "", err)
	}
	req.Header.Set("Authorization", c.cfg.AuthHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logging.LogAPICall(c.logger, http.MethodPost, endpoint, 0, time.Since(start), err)
		return nil, errors.NewRemoteFetchError(endpoint, 0, "", err)
	}
	defer resp.Body.Close()
	logging.LogAPICall(c.logger, http.MethodPost, endpoint, resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", strings.TrimSpace(string(text))).
			Msg("SISU list error")
		return nil, errors.NewRemoteFetchError(endpoint, resp.StatusCode, string(text), nil)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.NewRemoteFetchError(endpoint, resp.StatusCode, "", fmt.Errorf("decoding list response: %w", err))
	}

	if out.Clients == nil {
		return []models.ClientRecord{}, nil
	}
	return out.Clients, nil
}

// isRetryable reports whether a list failure may succeed on another attempt:
// transport errors, 5xx and 429.
func isRetryable(err error) bool {
	var rfe *errors.RemoteFetchError
	if !errors.As(err, &rfe) {
		return false
	}
	switch {
	case rfe.StatusCode == 0:
		return true
	case rfe.StatusCode == http.StatusTooManyRequests:
		return true
	case rfe.StatusCode >= 500:
		return true
	}
	return false
}
