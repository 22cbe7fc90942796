// Package mock provides a local HTTP server with the example endpoints used
// by the built-in sample script and the tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// SessionCookie is the cookie set by /login and read by /whoami.
const SessionCookie = "session"

// maxDelay bounds /delay so a stray request cannot pin a handler forever.
const maxDelay = 30 * time.Second

// Server is a mock HTTP server for the example endpoints
type Server struct {
	router *Router
	port   int
	delay  time.Duration
	logger zerolog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithLogger logs every request at info level.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new mock server
func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   8080,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Handle(http.MethodGet, "/", "index", s.handleIndex)
	s.router.Handle(http.MethodGet, "/data", "data", s.handleData)
	s.router.Handle(http.MethodPost, "/submit", "submit", s.handleSubmit)
	s.router.Handle(http.MethodGet, "/login", "login", s.handleLogin)
	s.router.Handle(http.MethodGet, "/whoami", "whoami", s.handleWhoami)
	s.router.Handle(http.MethodGet, "/headers", "headers", s.handleHeaders)
	s.router.Handle(http.MethodGet, "/status/{{code}}", "status", s.handleStatus)
	s.router.Handle(http.MethodGet, "/delay/{{duration}}", "delay", s.handleDelay)
}

// Handler returns the server's request handler, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Addr is the address Start listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.port)
}

// Start starts the mock server
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown.
// It returns nil once ctx is cancelled and the server has shut down.
func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("mock server shutdown")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Int("routes", len(s.router.routes)).Msg("mock server starting")

	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-done
		return nil
	}
	return err
}

// GetRoutes returns all registered routes
func (s *Server) GetRoutes() []*Route {
	return s.router.routes
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	route, params, pathFound := s.router.Match(r.Method, r.URL.Path)
	switch {
	case route != nil:
		route.Handler(rec, r, params)
	case pathFound:
		writeJSON(rec, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	default:
		writeJSON(rec, http.StatusNotFound, map[string]any{"error": "not found"})
	}

	s.logger.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	routes := make([]string, 0, len(s.router.routes))
	for _, rt := range s.router.routes {
		routes = append(routes, rt.Method+" "+rt.PathPattern)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "hitreq mock",
		"routes":  routes,
	})
}

// handleData echoes the query string. Keys with one value map to a string,
// repeated keys to a list.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	query := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 1 {
			query[key] = values[0]
		} else {
			query[key] = values
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":    query,
		"rawQuery": r.URL.RawQuery,
	})
}

// handleSubmit echoes a JSON body untouched, key order included.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Submitted!",
			"contentType": r.Header.Get("Content-Type"),
			"data":        string(body),
		})
		return
	}

	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Submitted!",
		"json":    json.RawMessage(body),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = "guest"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    user,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "not logged in"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": c.Value})
}

func (s *Server) handleHeaders(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	writeJSON(w, http.StatusOK, map[string]any{"headers": headers})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, params map[string]string) {
	code, err := strconv.Atoi(params["code"])
	if err != nil || code < 200 || code > 599 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid status code"})
		return
	}
	if code >= 300 && code < 400 {
		w.Header().Set("Location", "/")
	}
	writeJSON(w, code, map[string]any{"status": code})
}

func (s *Server) handleDelay(w http.ResponseWriter, r *http.Request, params map[string]string) {
	d, err := time.ParseDuration(params["duration"])
	if err != nil || d < 0 || d > maxDelay {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid duration"})
		return
	}

	select {
	case <-time.After(d):
		writeJSON(w, http.StatusOK, map[string]any{"delayed": d.String()})
	case <-r.Context().Done():
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
