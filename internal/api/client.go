// Package api reads weather-station and home-coach data from the provider
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fastertools/atmo/internal/auth"
	"github.com/fastertools/atmo/internal/errs"
	"github.com/fastertools/atmo/internal/gateway"
)

const (
	stationsPath   = "/api/getstationsdata"
	homeCoachsPath = "/api/gethomecoachsdata"

	// DefaultTimeout bounds each data request
	DefaultTimeout = time.Second
)

// Client fetches sensor data with a caller-supplied token
type Client struct {
	gateway *gateway.Gateway
	baseURL string
	timeout time.Duration
}

// NewClient creates a data client. Empty baseURL and zero timeout use the
// defaults.
func NewClient(gw *gateway.Gateway, baseURL string, timeout time.Duration) (*Client, error) {
	if gw == nil {
		gw = gateway.New(nil)
	}
	if baseURL == "" {
		baseURL = auth.DefaultBaseURL
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.InvalidConfig, "parse base url", fmt.Errorf("invalid base URL %q", baseURL))
	}

	return &Client{
		gateway: gw,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
	}, nil
}

// GetStationsData returns the account's weather stations
func (c *Client) GetStationsData(ctx context.Context, token auth.Token) (*StationsData, error) {
	var data StationsData
	if err := c.get(ctx, token, stationsPath, false, &data); err != nil {
		return nil, err
	}
	if data.Body == nil {
		return nil, errs.New(errs.Decode, "GET "+stationsPath, fmt.Errorf("response has no body"))
	}
	return &data, nil
}

// GetHomeCoachsData returns the account's home coaches
func (c *Client) GetHomeCoachsData(ctx context.Context, token auth.Token) (*HomeCoachsData, error) {
	var data HomeCoachsData
	if err := c.get(ctx, token, homeCoachsPath, true, &data); err != nil {
		return nil, err
	}
	if data.Body == nil {
		return nil, errs.New(errs.Decode, "GET "+homeCoachsPath, fmt.Errorf("response has no body"))
	}
	return &data, nil
}

// get sends an authenticated GET and decodes the JSON reply into out
func (c *Client) get(ctx context.Context, token auth.Token, path string, acceptJSON bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return errs.New(errs.InvalidConfig, "GET "+path, err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.AccessToken()))
	if acceptJSON {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.gateway.Send(req, c.timeout)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errs.New(errs.Decode, gateway.Op(req), err)
	}
	return nil
}
