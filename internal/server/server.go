// Package server exposes the guardian operations over HTTP, including the
// GitHub pull request webhook.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mobigaurav/ai-release-guardian/internal/metrics"
	"github.com/mobigaurav/ai-release-guardian/internal/restclient"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "ai-release-guardian"

// Settings controls the listener and request limits.
type Settings struct {
	Addr          string
	WebhookSecret string
	MaxBodyBytes  int64
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultSettings listens on port 8000.
func DefaultSettings() Settings {
	return Settings{
		Addr:         ":8000",
		MaxBodyBytes: 5 << 20,
		ReadTimeout:  30 * time.Second,
		// Analysis calls a language model twice; allow for slow replies.
		WriteTimeout: 5 * time.Minute,
	}
}

// Server wraps the HTTP listener and handlers.
type Server struct {
	settings Settings
	svc      Guardian
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Option customizes server construction.
type Option func(*Server)

// WithMetrics records request and webhook counters and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger overrides the default discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New prepares a server backed by svc.
func New(svc Guardian, settings Settings, opts ...Option) *Server {
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = DefaultSettings().MaxBodyBytes
	}
	s := &Server{
		settings: settings,
		svc:      svc,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed handler without binding a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /health", "/health", s.handleHealth)
	s.route(mux, "POST /analyze-release", "/analyze-release", s.handleAnalyzeRelease)
	s.route(mux, "POST /generate-tests", "/generate-tests", s.handleGenerateTests)
	s.route(mux, "POST /release-risk-score", "/release-risk-score", s.handleRiskScore)
	s.route(mux, "POST /rollback-plan", "/rollback-plan", s.handleRollbackPlan)
	s.route(mux, "POST /make-decision", "/make-decision", s.handleMakeDecision)
	s.route(mux, "POST /webhook", "/webhook", s.handleWebhook)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	if s.metrics == nil {
		mux.HandleFunc(pattern, h)
		return
	}
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.ObserveRequest(name, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server: already started")
	}
	listener, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.settings.Addr, err)
	}
	s.listener = listener
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
	}
	if ctx != nil {
		srv.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = srv
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve error", "error", err)
		}
	}()
	s.logger.Info("release guardian server listening", "addr", listener.Addr().String())
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": ServiceName})
}

// readBody enforces the size limit. It writes the error response itself and
// reports whether the caller should continue.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	reader := http.MaxBytesReader(w, r.Body, s.settings.MaxBodyBytes)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unable to read body")
		return nil, false
	}
	return body, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamError picks the status for a failed collaborator call. A
// missing pull request or ticket is a 404; rejected credentials are the
// server's problem (502); rate limiting is passed on as 503 with the
// upstream back-off. Everything else gets fallback.
func writeUpstreamError(w http.ResponseWriter, err error, fallback int) {
	status := fallback
	switch {
	case restclient.IsNotFound(err):
		status = http.StatusNotFound
	case restclient.IsAuthFailure(err):
		status = http.StatusBadGateway
	case restclient.IsRateLimited(err):
		status = http.StatusServiceUnavailable
		if d := restclient.RetryAfter(err); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	writeError(w, status, err.Error())
}
