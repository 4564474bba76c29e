package api

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

// ErrDaemonUnavailable indicates the daemon could not be reached.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client queries a running daemon.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the daemon at baseURL. A bare host:port is
// treated as http. token is sent as a bearer token when non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{http: client}
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.get(ctx, "/api/status", nil, &out)
	return out, err
}

// Runs fetches saved run history, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	var out RunsResponse
	params := map[string]string{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if err := c.get(ctx, "/api/runs", params, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// Run fetches one saved run with its records.
func (c *Client) Run(ctx context.Context, id string) (RunDetailResponse, error) {
	var out RunDetailResponse
	err := c.get(ctx, "/api/runs/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	var apiErr ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	if resp.IsError() {
		message := strings.TrimSpace(apiErr.Error)
		if message == "" {
			message = http.StatusText(resp.StatusCode())
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode(), message)
	}
	return nil
}
