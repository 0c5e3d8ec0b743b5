// SPDX-License-Identifier: MIT

// Package client is a Go client for the ratewait HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrInsufficientCapacity mirrors the server's insufficient_capacity answer:
// the request asks for more cells than the limit's burst.
var ErrInsufficientCapacity = errors.New("client: request exceeds limiter capacity")

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
}

// AcquireRequest describes one acquire call. Key empty lets the server key
// on the caller's address.
type AcquireRequest struct {
	Key   string
	Class string
	Cells uint32
	// Wait asks the server to hold the request until the cells conform.
	Wait bool
	// Timeout bounds a server-side wait. The server caps it at its maxWait.
	Timeout time.Duration
}

// AcquireResult is a successful acquire.
type AcquireResult struct {
	Allowed  bool   `json:"allowed"`
	Key      string `json:"key"`
	WaitedMS int64  `json:"waited_ms"`
}

// Waited returns the server-side wait as a duration.
func (r AcquireResult) Waited() time.Duration {
	return time.Duration(r.WaitedMS) * time.Millisecond
}

// HealthResult is the liveness answer.
type HealthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type errorBody struct {
	Error        string `json:"error"`
	Detail       string `json:"detail"`
	Limiter      string `json:"limiter"`
	RetryAfterMS int64  `json:"retry_after_ms"`
}

// RateLimitedError is returned for 429 answers.
type RateLimitedError struct {
	RetryAfter time.Duration
	Limiter    string
	Code       string
}

func (e *RateLimitedError) Error() string {
	if e.Limiter != "" {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.Limiter, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// APIError is any other non-2xx answer.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	msg := e.Code
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, msg)
}

// Client talks to one ratewait server.
type Client struct {
	http    *resty.Client
	timeout time.Duration
}

// New builds a client. BaseURL defaults to http://localhost:8080.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		cli.SetHeader("User-Agent", cfg.UserAgent)
	}
	return &Client{http: cli, timeout: cfg.Timeout}
}

// Acquire asks the server for cells. Denials come back as *RateLimitedError.
// A waiting request gets req.Timeout on top of the client timeout.
func (c *Client) Acquire(ctx context.Context, req AcquireRequest) (AcquireResult, error) {
	budget := c.timeout
	if req.Wait {
		budget += req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var (
		result AcquireResult
		failed errorBody
	)

	r := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failed)
	if req.Class != "" {
		r.SetQueryParam("class", req.Class)
	}
	if req.Cells > 0 {
		r.SetQueryParam("n", strconv.FormatUint(uint64(req.Cells), 10))
	}
	if req.Wait {
		r.SetQueryParam("wait", "true")
		if req.Timeout > 0 {
			r.SetQueryParam("timeout", req.Timeout.String())
		}
	}

	path := "/v1/acquire"
	if req.Key != "" {
		path += "/" + url.PathEscape(req.Key)
	}

	resp, err := r.Post(path)
	if err != nil {
		return AcquireResult{}, fmt.Errorf("acquire request: %w", err)
	}
	if err := mapHTTPError(resp, &failed); err != nil {
		return AcquireResult{}, err
	}
	return result, nil
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (HealthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		result HealthResult
		failed errorBody
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failed).
		Get("/healthz")
	if err != nil {
		return HealthResult{}, fmt.Errorf("health request: %w", err)
	}
	if err := mapHTTPError(resp, &failed); err != nil {
		return HealthResult{}, err
	}
	return result, nil
}

func mapHTTPError(resp *resty.Response, body *errorBody) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	switch {
	case code == http.StatusTooManyRequests:
		return &RateLimitedError{
			RetryAfter: retryAfter(resp.Header().Get("Retry-After"), body.RetryAfterMS),
			Limiter:    body.Limiter,
			Code:       body.Error,
		}
	case code == http.StatusBadRequest && body.Error == "insufficient_capacity":
		return fmt.Errorf("%w: %s", ErrInsufficientCapacity, body.Detail)
	}

	apiErr := &APIError{StatusCode: code, Code: body.Error, Detail: body.Detail}
	if apiErr.Code == "" && apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(resp.Body()))
	}
	return apiErr
}

// retryAfter prefers the millisecond body value over the whole-second header.
func retryAfter(header string, ms int64) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
