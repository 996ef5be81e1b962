// Package scraper fetches watched pages, either with a plain HTTP client or
// through a headless browser for pages that need JavaScript or a login.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/net/html/charset"

	"github.com/pauljones0/aki-watcher/internal/util"
)

const (
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "ja,en-US;q=0.9,en;q=0.8"

	defaultMaxBody    = 5 << 20
	defaultMaxRetries = 2
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsHTTPStatus reports whether err is an HTTPError with the given status.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}

// Client is the plain HTTP fetcher.
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration
	maxBody    int64
}

type Option func(*Client)

// WithRetry sets how many times a failed fetch is retried and the first backoff.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(maxRetries, 0)
		c.retryBase = base
	}
}

// WithMaxBody caps the response size in bytes.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		c.maxBody = n
	}
}

func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: defaultMaxRetries,
		retryBase:  time.Second,
		maxBody:    defaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch GETs rawURL and returns the body decoded to UTF-8. headers are added
// to (and override) the default browser-like headers. Client errors other
// than 429 are not retried.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	if !util.IsHTTPURL(rawURL) {
		return "", fmt.Errorf("invalid URL %q: only absolute http and https URLs allowed", rawURL)
	}

	var body string
	err := retry.Do(
		func() error {
			var err error
			body, err = c.fetchOnce(ctx, rawURL, headers)
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryBase),
		retry.MaxJitter(c.retryBase),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Fetch attempt failed, retrying", "url", rawURL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	return body, nil
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	slog.Debug("HTTP request completed",
		"url", rawURL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return "", &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return "", retry.Unrecoverable(fmt.Errorf("response body exceeds %d bytes", c.maxBody))
	}

	return decodeBody(data, resp.Header.Get("Content-Type")), nil
}

// decodeBody converts data to UTF-8 using the Content-Type charset, the
// page's meta tags, or content sniffing, in that order.
func decodeBody(data []byte, contentType string) string {
	enc, name, certain := charset.DetermineEncoding(data, contentType)
	// Sniffing only looks at the first 1KB and falls back to windows-1252,
	// which would mangle UTF-8 text further down an ASCII-headed page.
	if name == "utf-8" || (name == "windows-1252" && !certain && utf8.Valid(data)) {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if utf8.Valid(data) {
			return string(data)
		}
		slog.Warn("Failed to decode response body", "charset", name, "error", err)
		return string(bytes.ToValidUTF8(data, []byte("�")))
	}
	return string(decoded)
}
