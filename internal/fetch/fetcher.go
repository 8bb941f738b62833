package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	// DefaultUserAgent identifies the crawler in server logs.
	DefaultUserAgent = "sitesearch/1.0 (+https://github.com/nao1215/sitesearch)"

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// Result is the outcome of fetching one URL.
// Exactly one of Body or Err is meaningful: Err is nil on success.
type Result struct {
	// URL is the URL that was requested.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// ContentType is the response Content-Type header.
	ContentType string

	// Body is the response body decoded to UTF-8.
	Body string

	// Err describes why the fetch failed.
	Err error
}

// OK reports whether the fetch succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fetcher retrieves a single URL. Implementations never panic and report
// every failure through Result.Err.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Result
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) Result

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) Result {
	return f(ctx, url)
}

// HTTPFetcher fetches pages with an *http.Client.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLogger sets the logger used to report failed fetches.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client is replaced by one
// built with NewHTTPClient defaults.
func NewHTTPFetcher(client *http.Client, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		f.client, _ = NewHTTPClient() //nolint:errcheck // no proxy configured, cannot fail
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}

	return f
}

// Fetch performs a GET request for pageURL.
// Network errors, timeouts and non-2xx responses are returned as a failed
// Result and logged at warning level.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) Result {
	res := f.fetch(ctx, pageURL)
	if res.Err != nil {
		f.logger.Warn("fetch failed",
			"url", pageURL,
			"status", res.StatusCode,
			"error", res.Err,
		)
		return res
	}

	f.logger.Debug("fetched page",
		"url", pageURL,
		"status", res.StatusCode,
		"bytes", len(res.Body),
	)
	return res
}

func (f *HTTPFetcher) fetch(ctx context.Context, pageURL string) Result {
	res := Result{URL: pageURL}

	u, err := url.Parse(pageURL)
	if err != nil {
		res.Err = fmt.Errorf("invalid URL: %w", err)
		return res
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		res.Err = fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		res.Err = fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		res.Err = fmt.Errorf("failed to read body: %w", err)
		return res
	}

	res.Body = decodeBody(body, res.ContentType)
	return res
}
