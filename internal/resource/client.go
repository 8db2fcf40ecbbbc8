package resource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/errors"
	"github.com/KOFI-GYIMAH/stl-devs-web/pkg/logger"
	"github.com/docker/go-units"
)

// * Client is the HTTP transport shared by every Resource bound to one backend
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	rl := NewRateLimiter()

	client := &http.Client{
		Timeout:   timeout,
		Transport: rl.Middleware(http.DefaultTransport),
	}

	return &Client{
		httpClient: client,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) makeRequest(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	return resp, nil
}

// * Do performs one request and returns the body of a 2xx response
func (c *Client) Do(ctx context.Context, method, path string) ([]byte, error) {
	resp, err := c.makeRequest(ctx, method, path)
	if err != nil {
		return nil, errors.New(
			"BACKEND_UNREACHABLE",
			"Failed to reach the backend",
			fmt.Sprintf("Could not complete %s %s", method, path),
			err,
			errors.LevelError,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.New(
			"RESOURCE_NOT_FOUND",
			"Resource not found",
			fmt.Sprintf("The backend has nothing at %s", path),
			nil,
			errors.LevelInfo,
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(
			"BACKEND_STATUS",
			"Unexpected response from the backend",
			fmt.Sprintf("Backend returned status %d for %s %s", resp.StatusCode, method, path),
			nil,
			errors.LevelError,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(
			"BACKEND_READ_ERROR",
			"Failed to read backend response",
			fmt.Sprintf("Could not read the response body of %s %s", method, path),
			err,
			errors.LevelError,
		)
	}

	logger.Debug("%s %s -> %d (%s)", method, path, resp.StatusCode, units.HumanSize(float64(len(body))))
	return body, nil
}
