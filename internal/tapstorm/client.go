package tapstorm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// userHeader carries the caller identity the gateway would normally set.
const userHeader = "X-User-ID"

// HTTPClient wraps http.Client with a timeout and the identity header.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request as the given user.
func (c *HTTPClient) Get(ctx context.Context, url, userID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body as the given user.
func (c *HTTPClient) Post(ctx context.Context, url, userID string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	return c.client.Do(req)
}

// decodeResponse reads, closes, and unmarshals a response body.
func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}
