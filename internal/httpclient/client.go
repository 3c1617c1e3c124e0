// Package httpclient provides the HTTP client used by upstream source
// variants to fetch map imagery.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps the size of a fetched image (50MB). Anything
	// larger than this is not a tile.
	MaxResponseSize = 50 * 1024 * 1024

	// UserAgent is the user agent string for upstream requests.
	UserAgent = "tilecached/1.0"
)

// Client is an interface for fetching imagery from an upstream server.
type Client interface {
	// Get performs an HTTP GET against the base URL with the given query
	// parameters and returns the response body and its content type.
	Get(ctx context.Context, baseURL string, params url.Values) ([]byte, string, error)
}

// DefaultClient is the default HTTP client implementation.
type DefaultClient struct {
	client *http.Client
}

// NewDefaultClient creates a client with the specified timeout. A zero
// timeout selects DefaultTimeout.
func NewDefaultClient(timeout time.Duration) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &DefaultClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs an HTTP GET request.
func (c *DefaultClient) Get(ctx context.Context, baseURL string, params url.Values) ([]byte, string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid upstream url %q: %w", baseURL, err)
	}

	// Merge the request parameters into any query already present on the
	// configured URL.
	q := u.Query()
	for key, vals := range params {
		for _, v := range vals {
			q.Set(key, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, u.Redacted())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, "", fmt.Errorf("response exceeds maximum size of %d bytes", MaxResponseSize)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
