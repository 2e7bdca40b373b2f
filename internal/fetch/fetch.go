// Package fetch retrieves remote documents over HTTP with a bounded retry
// budget and computes content fingerprints for change detection.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (compatible; TariffMonitor/1.0)"

// DefaultMaxBodyBytes caps the size of a downloaded document. Tariff PDFs are
// typically well under 10 MB; anything larger is treated as a fetch failure.
const DefaultMaxBodyBytes int64 = 50 << 20

// DefaultAttempts is the fixed retry budget for transient failures.
const DefaultAttempts = 3

// DefaultRetryDelay is the pause between retry attempts.
const DefaultRetryDelay = 2 * time.Second

// Error represents a failure while fetching a URL.
type Error struct {
	URL        string
	Message    string
	StatusCode int  // non-zero when the server responded
	Retryable  bool // whether another attempt could plausibly succeed
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures fetch behavior.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
	Attempts     int
	RetryDelay   time.Duration
	Headers      map[string]string
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Attempts:     DefaultAttempts,
		RetryDelay:   DefaultRetryDelay,
	}
}

// Response holds the raw result of a single successful HTTP GET.
type Response struct {
	URL          string
	Body         []byte
	StatusCode   int
	ContentType  string
	ETag         string
	LastModified *time.Time
}

// Fetcher performs HTTP retrieval with a shared client and options.
type Fetcher struct {
	client *http.Client
	opts   *Options
}

// NewFetcher creates a Fetcher with the given options (nil uses defaults).
func NewFetcher(opts *Options) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Attempts == 0 {
		opts.Attempts = DefaultAttempts
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

// Get retrieves a URL, retrying transient failures up to the configured
// attempt budget. Failures are returned as a typed *Error.
func (f *Fetcher) Get(ctx context.Context, urlStr string) (*Response, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: err}
	}

	var lastErr error
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, &Error{URL: urlStr, Message: "canceled during retry wait", Cause: ctx.Err()}
			case <-time.After(f.opts.RetryDelay):
			}
		}

		resp, err := f.getOnce(ctx, urlStr)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var fe *Error
		if !errors.As(err, &fe) || !fe.Retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

// getOnce performs a single GET attempt.
func (f *Fetcher) getOnce(ctx context.Context, urlStr string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Retryable: true, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
		}
	}

	// Read at most MaxBodyBytes+1 so an oversized payload is detectable
	// without buffering an unbounded body.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Retryable: true, Cause: err}
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, &Error{
			URL:     urlStr,
			Message: fmt.Sprintf("response body exceeds %d bytes", f.opts.MaxBodyBytes),
		}
	}

	return &Response{
		URL:          urlStr,
		Body:         body,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		ETag:         resp.Header.Get("ETag"),
		LastModified: parseHTTPTime(resp.Header.Get("Last-Modified")),
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// parseHTTPTime parses an HTTP date header value, returning nil when absent
// or malformed.
func parseHTTPTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := http.ParseTime(value)
	if err != nil {
		return nil
	}
	return &t
}
