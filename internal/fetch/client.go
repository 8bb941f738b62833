package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds a single request including reading the body.
const DefaultTimeout = 30 * time.Second

// defaultMaxRedirects is the number of redirects followed before the last
// response is returned as is.
const defaultMaxRedirects = 10

// clientConfig collects the settings applied by ClientOption.
type clientConfig struct {
	timeout      time.Duration
	proxyAddress string
	cookie       string
	headers      map[string]string
	maxRedirects int
}

// ClientOption configures NewHTTPClient.
type ClientOption func(*clientConfig)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSOCKS5Proxy routes every connection through the SOCKS5 proxy at
// address ("host:port"). An empty address means direct connections.
func WithSOCKS5Proxy(address string) ClientOption {
	return func(c *clientConfig) {
		c.proxyAddress = address
	}
}

// WithCookie sends a raw cookie string ("a=1; b=2") with every request.
func WithCookie(cookie string) ClientOption {
	return func(c *clientConfig) {
		c.cookie = cookie
	}
}

// WithHeaders sets extra headers on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *clientConfig) {
		c.headers = headers
	}
}

// WithMaxRedirects limits how many redirects are followed.
func WithMaxRedirects(n int) ClientOption {
	return func(c *clientConfig) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// NewHTTPClient builds the HTTP client used for crawling.
// Cookies set by the site are kept in a jar for the lifetime of the client.
func NewHTTPClient(opts ...ClientOption) (*http.Client, error) {
	cfg := &clientConfig{
		timeout:      DefaultTimeout,
		maxRedirects: defaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dialContext, err := newDialContext(cfg)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.proxyAddress != "" {
		// The SOCKS5 dialer is the only proxy in play.
		transport.Proxy = nil
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	var rt http.RoundTripper = transport
	if cfg.cookie != "" || len(cfg.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  cfg.cookie,
			headers: cfg.headers,
		}
	}

	maxRedirects := cfg.maxRedirects
	return &http.Client{
		Transport: rt,
		Timeout:   cfg.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// newDialContext returns a direct dialer, or a SOCKS5 dialer when a proxy
// address is configured.
func newDialContext(cfg *clientConfig) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	direct := &net.Dialer{
		Timeout:   cfg.timeout,
		KeepAlive: 30 * time.Second,
	}
	if cfg.proxyAddress == "" {
		return direct.DialContext, nil
	}

	if !isValidProxyAddress(cfg.proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, cfg.proxyAddress)
	}

	dialer, err := proxy.SOCKS5("tcp", cfg.proxyAddress, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured cookie and headers to every
// request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
