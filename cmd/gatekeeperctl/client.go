package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	httphandler "github.com/ericfisherdev/gatekeeper/internal/adapter/driving/http"
)

// apiClient talks to the gatekeeper admin API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(addr string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: "http://" + addr + "/api/v1",
		http: &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx response from the admin API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("admin api returned %d: %s", e.Status, e.Message)
}

func (c *apiClient) health(ctx context.Context) (httphandler.HealthResponse, error) {
	var resp httphandler.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

func (c *apiClient) credentials(ctx context.Context) ([]httphandler.CredentialResponse, error) {
	var resp []httphandler.CredentialResponse
	err := c.do(ctx, http.MethodGet, "/credentials", nil, &resp)
	return resp, err
}

func (c *apiClient) events(ctx context.Context, limit int) ([]httphandler.EventResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp []httphandler.EventResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *apiClient) command(ctx context.Context, command string) (httphandler.CommandResponse, error) {
	var resp httphandler.CommandResponse
	err := c.do(ctx, http.MethodPost, "/commands", httphandler.CommandRequest{Command: command}, &resp)
	return resp, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
