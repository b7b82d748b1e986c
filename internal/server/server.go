// Package server exposes the rewrite gate over HTTP for agents that cannot
// run a local hook process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aimagist/openrtklaw/internal/gate"
	"github.com/aimagist/openrtklaw/internal/metrics"
	"github.com/aimagist/openrtklaw/internal/rewrite"
)

// maxBodyBytes bounds a rewrite request body.
const maxBodyBytes = 1 << 20

// Server serves the rewrite API.
type Server struct {
	gate    *gate.Gate
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a server over g. m may be nil, in which case /metrics is not served.
func New(g *gate.Gate, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{gate: g, metrics: m, logger: logger}
}

// RewriteRequest is the body of POST /v1/rewrite.
type RewriteRequest struct {
	Command string `json:"command"`
	Source  string `json:"source,omitempty"` // defaults to "http"
}

// RewriteResponse is the reply of POST /v1/rewrite.
type RewriteResponse struct {
	Original string `json:"original"`
	rewrite.Outcome
}

// RuleInfo describes one rule of the active table.
type RuleInfo struct {
	Name    string `json:"name"`
	Family  string `json:"family"`
	Pattern string `json:"pattern"`
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/rewrite", s.rewrite)
		r.Get("/rules", s.listRules)
	})

	return r
}

func (s *Server) rewrite(w http.ResponseWriter, r *http.Request) {
	var req RewriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.Command == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "command is required"})
		return
	}
	source := req.Source
	if source == "" {
		source = gate.SourceHTTP
	}

	out := s.gate.Rewrite(r.Context(), source, req.Command)
	writeJSON(w, http.StatusOK, RewriteResponse{Original: req.Command, Outcome: out})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": DescribeRules(s.gate.Rules())})
}

// DescribeRules converts rules to their wire form, preserving order.
func DescribeRules(rules []rewrite.Rule) []RuleInfo {
	out := make([]RuleInfo, len(rules))
	for i, r := range rules {
		out[i] = RuleInfo{Name: r.Name, Family: r.Family, Pattern: r.Matcher.String()}
	}
	return out
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rewrite server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("rewrite server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
