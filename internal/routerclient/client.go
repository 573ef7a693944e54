// Package routerclient is the single HTTP client, with injected deadlines
// and structured error types, that every adapter uses to call back into
// the router or another peer: one *http.Client per service, explicit
// deadlines per call kind, and expected failure modes surfaced as a typed
// Outcome rather than a bare error.
package routerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outcome is the result of a call against a peer, distinguishing expected
// peer-unreachable failure modes from genuine Go errors that indicate a
// bug in this process.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomePeerUnavailable Outcome = "peer_unavailable"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeRejected       Outcome = "rejected"
	OutcomeSuppressed     Outcome = "suppressed"
)

// Default deadlines per call kind.
const (
	CommandDeadline  = 2 * time.Second
	MetadataDeadline = 5 * time.Second
	BulkDeadline     = 30 * time.Second
)

// Client wraps one *http.Client for all outbound calls a service makes.
type Client struct {
	hc *http.Client
}

// New creates a Client. The *http.Client has no default Timeout — every
// call supplies its own deadline via context, since different call kinds
// need different budgets (commands vs. bulk playlist loads).
func New() *Client {
	return &Client{hc: &http.Client{}}
}

// Result is the outcome of one call, plus the HTTP status and raw response
// body whenever a response was received (OK or rejected).
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
}

// PostJSON POSTs body as JSON to url with the given deadline. A connection
// failure or deadline overrun yields OutcomePeerUnavailable/OutcomeTimeout
// rather than a returned error; a
// non-2xx status yields OutcomeRejected with the body attached so callers
// can inspect a structured error payload. A genuine error return means the
// request itself could not be constructed (the body failed to encode or
// the URL is invalid) — a programming error, not a peer failure. A caller
// context that is already done yields OutcomeTimeout or
// OutcomePeerUnavailable, not an error.
func (c *Client) PostJSON(ctx context.Context, url string, deadline time.Duration, body any) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return Result{}, fmt.Errorf("routerclient: encode request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return Result{}, fmt.Errorf("routerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// GetJSON issues a GET with the given deadline.
func (c *Client) GetJSON(ctx context.Context, url string, deadline time.Duration) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("routerclient: build request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (Result, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(req.Context().Err(), context.DeadlineExceeded) {
			return Result{Outcome: OutcomeTimeout}, nil
		}
		return Result{Outcome: OutcomePeerUnavailable}, nil
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return Result{Outcome: OutcomePeerUnavailable}, nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{Outcome: OutcomeOK, StatusCode: resp.StatusCode, Body: data}, nil
	}
	return Result{Outcome: OutcomeRejected, StatusCode: resp.StatusCode, Body: data}, nil
}

// Probe checks that url is reachable within deadline, used by the router
// to verify a source's command_url on registration, refusing the
// registration when the probe fails.
func (c *Client) Probe(ctx context.Context, url string, deadline time.Duration) bool {
	res, err := c.GetJSON(ctx, url, deadline)
	if err != nil {
		return false
	}
	return res.Outcome == OutcomeOK
}
