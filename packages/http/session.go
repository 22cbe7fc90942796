package http

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Session keeps a connection pool and a cookie jar across requests. Idle
// connections are pooled per scheme, host and port; cookies from Set-Cookie
// headers are replayed to matching domains and paths. A Session is safe for
// concurrent use. Close it when done, or use WithSession.
type Session struct {
	client    *Client
	transport *http.Transport
	jar       *cookiejar.Jar

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	stats    map[string]*PoolStats
}

// PoolStats counts exchanges per pool key ("scheme://host:port").
type PoolStats struct {
	Requests int
	Reused   int
}

// OpenSession creates a Session with an empty pool and cookie jar.
func OpenSession(opts ...ClientOption) (*Session, error) {
	return NewClient(opts...).OpenSession()
}

// OpenSession creates a Session that shares this client's settings.
func (c *Client) OpenSession() (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c.logger.Debug().Msg("session opened")

	return &Session{
		client:    c,
		transport: transport,
		jar:       jar,
		stats:     make(map[string]*PoolStats),
	}, nil
}

// WithSession opens a Session, passes it to fn and closes it when fn
// returns, whether fn succeeds, fails or panics.
func WithSession(fn func(*Session) error, opts ...ClientOption) (err error) {
	s, err := OpenSession(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Do sends req like Client.Do, attaching stored cookies and reusing an idle
// pooled connection when one is available for the target.
func (s *Session) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.inflight.Done()

	resp, err := s.client.exchange(ctx, s.transport, s.jar, req)
	if err != nil {
		return nil, err
	}

	if u, perr := neturl.Parse(req.URL); perr == nil {
		s.record(poolKey(u), resp.Reused)
	}
	return resp, nil
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{Kind: KindSessionClosed, Op: "send"}
	}
	s.inflight.Add(1)
	return nil
}

func (s *Session) record(key string, reused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[key]
	if !ok {
		st = &PoolStats{}
		s.stats[key] = st
	}
	st.Requests++
	if reused {
		st.Reused++
	}
}

// Stats returns a snapshot of per-pool counters.
func (s *Session) Stats() map[string]PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PoolStats, len(s.stats))
	for k, v := range s.stats {
		out[k] = *v
	}
	return out
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close waits for in-flight requests, then drops every pooled connection.
// Later calls to Do fail with ErrSessionClosed. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()
	s.transport.CloseIdleConnections()
	s.client.logger.Debug().Msg("session closed")
	return nil
}

func (s *Session) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return s.Do(ctx, &Request{
		Method:  http.MethodGet,
		URL:     url,
		Headers: headers,
	})
}

func (s *Session) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	return s.Do(ctx, &Request{
		Method:  http.MethodPost,
		URL:     url,
		Body:    body,
		Headers: headers,
	})
}

func (s *Session) PostJSON(ctx context.Context, url string, v any) (*Response, error) {
	return s.Do(ctx, &Request{
		Method: http.MethodPost,
		URL:    url,
		JSON:   v,
	})
}

func (s *Session) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return s.Do(ctx, &Request{
		Method:  http.MethodDelete,
		URL:     url,
		Headers: headers,
	})
}
