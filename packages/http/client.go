package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	neturl "net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in a session pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in a session pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultUserAgent is sent unless a default or request header overrides it
	DefaultUserAgent = "hitreq"
	// RequestIDHeader carries the generated request id when WithRequestID is on
	RequestIDHeader = "X-Request-Id"
)

// ErrNilRequest is returned when Do is called without a request.
var ErrNilRequest = errors.New("hitreq: request cannot be nil")

// Client sends one request per call. On its own it keeps no pool: every
// exchange dials a fresh connection that is closed afterwards. Open a
// Session to reuse connections and keep cookies.
type Client struct {
	transport      *http.Transport
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	defaultHeaders map[string]string
	requestID      bool
	logger         zerolog.Logger
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		defaultHeaders: map[string]string{"User-Agent": DefaultUserAgent},
		logger:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.transport = &http.Transport{
		DisableKeepAlives: true,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithRequestID stamps every request with a random X-Request-Id unless the
// request already carries one.
func WithRequestID(enabled bool) ClientOption {
	return func(c *Client) {
		c.requestID = enabled
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// Timeout returns the deadline applied to requests that do not set their own.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Do sends req once and returns the fully read response. It blocks until
// the response body has been read, ctx is done, or the timeout elapses.
// Failures are returned as *Error; nothing is retried.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	return c.exchange(ctx, c.transport, nil, req)
}

// exchange performs a single request over rt. A nil jar disables cookies.
func (c *Client) exchange(ctx context.Context, rt http.RoundTripper, jar http.CookieJar, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	httpReq, cancel, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var reused bool
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			reused = info.Reused
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	hc := &http.Client{
		Transport:     rt,
		Jar:           jar,
		CheckRedirect: c.redirectPolicy,
	}

	target := httpReq.URL.String()
	start := time.Now()
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		err = classify("send", target, err)
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", target).Msg("request failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		err = classify("read", target, err)
		c.logger.Debug().Err(err).Str("method", req.Method).Str("url", target).Msg("reading body failed")
		return nil, err
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", target).
		Int("status", httpResp.StatusCode).
		Bool("reused", reused).
		Dur("duration", duration).
		Msg("request completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Duration:   duration,
		Reused:     reused,
	}, nil
}

// buildHTTPRequest validates req and turns it into a *http.Request bound to
// a context carrying the effective timeout.
func (c *Client) buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, context.CancelFunc, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, nil, err
	}

	target, err := req.BuildURL()
	if err != nil {
		return nil, nil, schemeError(req.URL, "%v", err)
	}

	body, contentType, err := req.Encode()
	if err != nil {
		return nil, nil, err
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		cancel()
		return nil, nil, schemeError(req.URL, "%v", err)
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if contentType != "" {
		if _, ok := req.header("Content-Type"); !ok {
			httpReq.Header.Set("Content-Type", contentType)
		}
	}

	if c.requestID && httpReq.Header.Get(RequestIDHeader) == "" {
		httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	}

	return httpReq, cancel, nil
}

func (c *Client) redirectPolicy(req *http.Request, via []*http.Request) error {
	if !c.followRedirect {
		return http.ErrUseLastResponse
	}
	if len(via) >= c.maxRedirects {
		return http.ErrUseLastResponse
	}
	return nil
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
	})
}

// GetWithParams issues a GET with params appended to the query string.
func (c *Client) GetWithParams(ctx context.Context, url string, params Params) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		URL:    url,
		Params: params,
	})
}

func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		URL:     url,
		Body:    body,
		Headers: headers,
	})
}

func (c *Client) PostJSON(ctx context.Context, url string, v any) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		URL:    url,
		JSON:   v,
	})
}

func (c *Client) Put(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPut,
		URL:     url,
		Body:    body,
		Headers: headers,
	})
}

func (c *Client) Patch(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPatch,
		URL:     url,
		Body:    body,
		Headers: headers,
	})
}

func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodDelete,
		URL:     url,
		Headers: headers,
	})
}

// ValidateURL checks that a URL is absolute and uses http or https.
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return schemeError(rawURL, "invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return schemeError(rawURL, "unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return schemeError(rawURL, "URL must have a host")
	}

	return nil
}

// poolKey identifies the pool bucket a URL's connections live in.
func poolKey(u *neturl.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return fmt.Sprintf("%s://%s:%s", u.Scheme, u.Hostname(), port)
}
