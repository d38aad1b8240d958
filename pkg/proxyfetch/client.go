// Package proxyfetch provides the raw HTTP client for the scrape-proxy
// API. Retry, pacing, and billing decisions live above it in
// internal/fetch; this client performs exactly one physical request per
// Fetch call.
package proxyfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client fetches one page through the scrape proxy.
type Client interface {
	// Fetch retrieves the raw body of targetURL routed through the proxy.
	Fetch(ctx context.Context, targetURL string) (string, error)
}

// StatusError reports a non-2xx proxy response. The fetch layer maps its
// code onto the retryable/fatal taxonomy.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxyfetch: status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Option configures the proxy client.
type Option func(*httpClient)

// WithBaseURL sets a custom proxy base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithCountry pins proxy exit nodes to a country code.
func WithCountry(country string) Option {
	return func(c *httpClient) {
		c.country = country
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	token   string
	baseURL string
	country string
	http    *http.Client
}

// NewClient creates a scrape-proxy client authenticated by token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.scraperapi.com",
		country: "us",
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Fetch(ctx context.Context, targetURL string) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.token)
	q.Set("url", targetURL)
	if c.country != "" {
		q.Set("country_code", c.country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "proxyfetch: build request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "proxyfetch: do request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "proxyfetch: read body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return string(body), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
