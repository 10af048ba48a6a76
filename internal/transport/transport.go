// Package transport is the agent's HTTP client to the remote time-tracking
// service. It plays the role the teacher's internal/client/client.GRPCClient
// played for gRPC: a thin wrapper that injects auth and classifies failures
// into sentinel errors. Here the wire protocol is JSON over HTTPS instead
// of protobuf over gRPC, so the interceptor becomes a RoundTripper-style
// auth header and the unary call becomes Client.Get/Post. Unlike GRPCClient's
// interceptor, a single call here never retries: NewBackOff's schedule is
// driven by internal/dispatcher's worker loop instead, so a down server
// never blocks a caller holding the writer lock.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/loctrack/agent/internal/apperr"
	"github.com/loctrack/agent/internal/netx"
)

// Doer is the seam the teacher's GRPCClient filled with a *grpc.ClientConn:
// anything that can execute an *http.Request. *http.Client satisfies it,
// and tests inject a fake.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource returns the current API token. It is a function rather than
// a plain string because Session may rotate the token out from under a
// long-lived Client (e.g. after re-login).
type TokenSource func() string

// Client issues authenticated JSON requests against the remote service,
// one attempt per call; retrying is left to the caller (see NewBackOff).
type Client struct {
	baseURL string
	doer    Doer
	token   TokenSource
}

// New returns a Client for baseURL (e.g. "https://api.example.com"),
// using doer to execute requests and token to fetch the current API
// token for each one.
func New(baseURL string, doer Doer, token TokenSource) *Client {
	return &Client{baseURL: baseURL, doer: doer, token: token}
}

// DefaultHTTPClient returns an *http.Client configured with the 30s
// request timeout the agent uses for all calls to the remote service.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// NewBackOff returns the exponential backoff schedule spec'd for both
// push retry and websocket reconnect: 1s initial, doubling, capped at
// 60s, with no overall deadline (the caller decides when to give up).
func NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 60 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// Get performs an authenticated GET against path (relative to baseURL)
// and decodes the JSON response body into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST with a JSON-encoded body and
// decodes the JSON response into out (which may be nil).
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// PostBasicAuth performs an authenticated POST using HTTP basic auth with
// an explicit user/pass rather than the token source, for the one call
// that predates having a token: login.
func (c *Client) PostBasicAuth(ctx context.Context, path, user, pass string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(user, pass)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		if netx.IsNetworkingError(err) {
			return fmt.Errorf("%w: %v", apperr.ErrTransientNetwork, err)
		}
		return err
	}
	defer resp.Body.Close()

	if respErr := classify(resp); respErr != nil {
		if respErr == apperr.ErrValidation || respErr == apperr.ErrUnauthorized {
			return apperr.ErrUnauthorized // wrong credentials
		}
		return respErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// do issues one request and returns. It does not retry: spec.md §4.5b
// places push/pull retry at the dispatcher's worker-tick level (schedule
// a retry on the next tick, reset on success), not in an unbounded
// in-call loop here — a down server must never block a caller holding
// the writer lock.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.token(), "api_token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		if netx.IsNetworkingError(err) {
			return fmt.Errorf("%w: %v", apperr.ErrTransientNetwork, err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if respErr := classify(resp); respErr != nil {
		return respErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// classify maps an HTTP status to a sentinel error, or nil for 2xx.
func classify(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return apperr.ErrValidation
	default: // 5xx
		return apperr.ErrTransientNetwork
	}
}
