package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sift/internal/queue"
)

// Client provides HTTP access to a running daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient constructs a client for the daemon API at baseURL. The token is
// sent as a bearer credential when non-empty.
func NewClient(baseURL, token string) *Client {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed != "" && !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	return &Client{
		baseURL: trimmed,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit enqueues a media file for processing.
func (c *Client) Submit(ctx context.Context, sourcePath string) (*Job, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodPost, "/api/jobs", SubmitRequest{SourcePath: sourcePath}, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Job fetches a single job by id.
func (c *Client) Job(ctx context.Context, id int64) (*Job, error) {
	var resp JobResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/jobs/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Job, nil
}

// Jobs lists jobs, optionally filtered by status.
func (c *Client) Jobs(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	path := "/api/jobs"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", string(status))
		}
		path += "?" + values.Encode()
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Clear removes jobs in bulk. Scope is "all", "completed", or "failed"; an
// empty scope clears everything.
func (c *Client) Clear(ctx context.Context, scope string) (int64, error) {
	path := "/api/jobs"
	if scope != "" {
		path += "?scope=" + url.QueryEscape(scope)
	}
	var resp ClearResponse
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

// Pause requests a cooperative pause for a job.
func (c *Client) Pause(ctx context.Context, id int64) (*ControlResponse, error) {
	return c.control(ctx, id, "pause")
}

// Resume clears a job's pause flag so the workflow can claim it again.
func (c *Client) Resume(ctx context.Context, id int64) (*ControlResponse, error) {
	return c.control(ctx, id, "resume")
}

// Cancel requests a cooperative cancel for a job.
func (c *Client) Cancel(ctx context.Context, id int64) (*ControlResponse, error) {
	return c.control(ctx, id, "cancel")
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var resp DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health retrieves per-stage readiness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) control(ctx context.Context, id int64, action string) (*ControlResponse, error) {
	var resp ControlResponse
	path := fmt.Sprintf("/api/jobs/%d/%s", id, action)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("daemon address not configured")
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
