package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultMaxBytes caps the size of a single fetched payload
const DefaultMaxBytes = 32 << 20

// HTTPFetcher downloads source images over HTTP(S)
type HTTPFetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewHTTPFetcher creates a fetcher whose requests give up after timeout. A
// zero timeout leaves the deadline to the caller's context.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		maxBytes:   DefaultMaxBytes,
	}
}

// WithClient replaces the underlying HTTP client
func (f *HTTPFetcher) WithClient(c *http.Client) *HTTPFetcher {
	f.httpClient = c
	return f
}

// Fetch returns the response body for u. Any status other than 200 is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Redacted())
	default:
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, u.Redacted())
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, u.Redacted())
	}
	return data, nil
}
