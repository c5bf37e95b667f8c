package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CommonHeaders is the baseline header set sent with every request. Callers
// may override individual entries per request.
var CommonHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept": "*/*",
}

const (
	defaultTimeout = 5 * time.Minute
	connectTimeout = 10 * time.Second
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s for %s", e.Status, e.URL)
}

// NetworkError wraps a transport-level failure (timeout, refused connection).
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Options tunes a single request.
type Options struct {
	// Headers are merged over CommonHeaders; caller values win.
	Headers map[string]string
	// Proxy overrides the client proxy for this request.
	Proxy string
	// NoRedirect stops the client from following redirects so the caller can
	// read the raw Location header.
	NoRedirect bool
	// Body for POST requests.
	Body io.Reader
	// Timeout overrides the client total timeout.
	Timeout time.Duration
}

// Client is a thin wrapper over net/http that applies the shared header set,
// the configured proxy and a connect/total timeout split.
type Client struct {
	proxy   string
	timeout time.Duration
}

// New creates a Client. proxy may be empty.
func New(proxy string) *Client {
	return &Client{proxy: proxy, timeout: defaultTimeout}
}

// NewWithTimeout creates a Client with a custom total timeout.
func NewWithTimeout(proxy string, timeout time.Duration) *Client {
	return &Client{proxy: proxy, timeout: timeout}
}

func (c *Client) httpClient(opt *Options) (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}
	proxy := c.proxy
	if opt != nil && opt.Proxy != "" {
		proxy = opt.Proxy
	}
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := c.timeout
	if opt != nil && opt.Timeout > 0 {
		timeout = opt.Timeout
	}
	hc := &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
	if opt != nil && opt.NoRedirect {
		hc.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return hc, nil
}

// Do performs a request and returns the raw response. The body is left open
// for streaming; the caller must close it. Non-2xx responses are returned as
// *StatusError with the body drained and closed, except when NoRedirect is
// set (3xx is the expected outcome there).
func (c *Client) Do(ctx context.Context, method, rawURL string, opt *Options) (*http.Response, error) {
	var body io.Reader
	if opt != nil {
		body = opt.Body
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range CommonHeaders {
		req.Header.Set(k, v)
	}
	if opt != nil {
		for k, v := range opt.Headers {
			req.Header.Set(k, v)
		}
	}

	hc, err := c.httpClient(opt)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}

	if opt != nil && opt.NoRedirect {
		return resp, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
	}
	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, opt *Options) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, opt)
}

// GetBytes performs a GET request and reads the whole body. Only for small
// API payloads; media bodies go through the downloader.
func (c *Client) GetBytes(ctx context.Context, rawURL string, opt *Options) ([]byte, error) {
	resp, err := c.Get(ctx, rawURL, opt)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// PostForm performs a form-encoded POST and reads the whole body.
func (c *Client) PostForm(ctx context.Context, rawURL, form string, headers map[string]string) ([]byte, error) {
	merged := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range headers {
		merged[k] = v
	}
	resp, err := c.Do(ctx, http.MethodPost, rawURL, &Options{
		Headers: merged,
		Body:    strings.NewReader(form),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// ResolveShortLink follows exactly one redirect hop and returns the Location
// target. It fails when the response carries no Location or the location is
// the link itself.
func (c *Client) ResolveShortLink(ctx context.Context, shortURL string, headers map[string]string) (string, error) {
	resp, err := c.Do(ctx, http.MethodGet, shortURL, &Options{
		Headers:    headers,
		NoRedirect: true,
		Timeout:    30 * time.Second,
	})
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	loc := resp.Header.Get("Location")
	if loc == "" || loc == shortURL {
		return "", fmt.Errorf("short link %s did not redirect", shortURL)
	}
	return loc, nil
}
