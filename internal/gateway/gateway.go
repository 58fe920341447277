// Package gateway sends outbound HTTP requests with an optional per-request
// timeout and turns non-2xx responses into classified errors.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fastertools/atmo/internal/errs"
)

// maxErrorBody bounds how much of a failed response body is kept for reporting
const maxErrorBody = 4 << 10

// HTTPClient is the subset of *http.Client the gateway needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is a fully read 2xx response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Gateway wraps an HTTP client. It never retries.
type Gateway struct {
	client HTTPClient
}

// New creates a gateway around client. A nil client uses a plain http.Client
// without a global timeout.
func New(client HTTPClient) *Gateway {
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{client: client}
}

// Send performs req. If timeout is positive it bounds the whole exchange,
// including reading the body. Statuses outside 200-299 fail with a
// RequestFailed error carrying the status and, best effort, the body text.
func (g *Gateway) Send(req *http.Request, timeout time.Duration) (*Response, error) {
	op := Op(req)

	ctx := req.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.Transport, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		text := ""
		if readErr == nil {
			text = strings.TrimSpace(string(body))
		}
		return nil, errs.Failed(op, resp.StatusCode, text)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.Transport, op, fmt.Errorf("failed to read response: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Op names a request for error reporting, e.g. "GET /api/getstationsdata"
func Op(req *http.Request) string {
	if req.URL == nil {
		return req.Method
	}
	return req.Method + " " + req.URL.Path
}
