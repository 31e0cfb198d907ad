// Package fetch downloads remote map data, optionally through a caching
// proxy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 50 << 20
	userAgent       = "mapimport/1.0"

	defaultMaxRetries  = 3
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2
)

// ErrTooLarge is returned when a response body exceeds the configured limit.
var ErrTooLarge = errors.New("remote payload too large")

// ErrProxyNotConfigured is returned for proxied fetches without a proxy
// template.
var ErrProxyNotConfigured = errors.New("remote proxy not configured")

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

type Options struct {
	Proxied bool
	// TTL is passed to the proxy as the cache lifetime.
	TTL time.Duration
}

type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	// ProxyURL is a template containing {url} and optionally {ttl}, for
	// example "https://proxy.example/?url={url}&ttl={ttl}".
	ProxyURL string
	// MaxRetries bounds the attempts for rate limited and 5xx responses.
	// Default: 3
	MaxRetries int
	// RetryDelay is the delay before the first retry, doubled for every
	// further attempt. Default: 1s
	RetryDelay time.Duration
}

// Client fetches remote payloads over HTTP.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
	proxyURL   string
	maxRetries int
	retryDelay time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = initialRetryDelay
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
		proxyURL:   cfg.ProxyURL,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Get downloads rawURL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) ([]byte, error) {
	target, err := c.resolve(rawURL, opts)
	if err != nil {
		return nil, err
	}

	var body []byte
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateRetryDelay(attempt)):
			}
		}

		body, lastErr = c.get(ctx, rawURL, target)
		if lastErr == nil {
			return body, nil
		}

		// Only retry on rate limits or server errors
		if !isRetryableError(lastErr) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) get(ctx context.Context, rawURL, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > c.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.maxBytes)
	}
	return body, nil
}

func (c *Client) calculateRetryDelay(attempt int) time.Duration {
	delay := c.retryDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(retryBackoffFactor)
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func isRetryableError(err error) bool {
	var status *StatusError
	if !errors.As(err, &status) {
		return false
	}
	return status.StatusCode == http.StatusTooManyRequests || status.StatusCode >= 500
}

func (c *Client) resolve(rawURL string, opts Options) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: only http and https are supported", rawURL)
	}
	if !opts.Proxied {
		return rawURL, nil
	}
	if c.proxyURL == "" {
		return "", ErrProxyNotConfigured
	}
	return ProxyURL(c.proxyURL, rawURL, opts.TTL), nil
}

// ProxyURL expands a proxy template for the given target URL.
func ProxyURL(template, target string, ttl time.Duration) string {
	return strings.NewReplacer(
		"{url}", url.QueryEscape(target),
		"{ttl}", strconv.Itoa(int(ttl/time.Second)),
	).Replace(template)
}
