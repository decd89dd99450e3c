// Package server implements the HTTP server that exposes the research team
// via a REST/SSE API. The server is started by the `deepresearch serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/store"
	"github.com/lucaspecina/deepresearch-azure/internal/team"
)

// New constructs a Server from the provided researcher, session store, and
// config. st may be nil, which disables the session endpoints.
func New(r researcher, st store.SessionStore, cfg *Config) (*Server, error) {
	if r == nil {
		return nil, fmt.Errorf("server: researcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ResearchTimeout == 0 {
		cfg.ResearchTimeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		researcher: r,
		store:      st,
		cfg:        cfg,
		log:        cfg.Logger,
		pingers:    cfg.Pingers,
		metrics:    newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not configured — authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// protected wraps a handler with auth and the per-IP rate limit.
	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/research", protected("research", s.handleResearch))
	mux.Handle("GET /api/sessions", protected("sessions", s.handleSessions))
	mux.Handle("GET /api/sessions/{id}", protected("session", s.handleSession))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// SetPingers replaces the dependency probes run by GET /api/ready. Call
// before Start; the serve command uses it because the probed dependencies
// are constructed after the server (they report into its metrics).
func (s *Server) SetPingers(pingers []Pinger) {
	s.pingers = pingers
}

// ToolObserver returns the callback that research tools use to report
// per-call outcomes into the server's metrics.
func (s *Server) ToolObserver() func(tool, outcome string) {
	return func(tool, outcome string) {
		s.metrics.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	}
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleResearch handles POST /api/research. It streams the run's transcript
// using Server-Sent Events: one "message" event per transcript entry, a
// "session" event carrying the session ID when persistence is enabled, and a
// final "done" event. Run failures are delivered in-band as "error" events.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	sessionID := req.SessionID
	if s.store != nil {
		if sessionID == "" {
			id, err := s.store.Create(r.Context(), req.Query)
			if err != nil {
				log.Error("session create failed", slog.Any("error", err))
				http.Error(w, "session create failed", http.StatusInternalServerError)
				return
			}
			sessionID = id
		} else if _, err := s.store.Get(r.Context(), sessionID); err != nil {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	if sessionID != "" {
		fmt.Fprintf(w, "event: session\ndata: %s\n\n", sessionID)
		flusher.Flush()
	}

	s.metrics.researchActiveStreams.Inc()
	defer s.metrics.researchActiveStreams.Dec()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ResearchTimeout)
	defer cancel()

	start := time.Now()
	entries, err := s.researcher.Research(ctx, req.Query, func(e team.Entry) {
		payload, merr := json.Marshal(transcriptEvent{Speaker: e.Speaker, Text: e.Text})
		if merr != nil {
			return
		}
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
		flusher.Flush()
	})
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
	}
	s.metrics.researchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.researchDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())

	// Persist whatever the run produced, including partial transcripts from
	// cancelled or timed-out runs.
	if s.store != nil && sessionID != "" && len(entries) > 0 {
		persisted := make([]store.TranscriptEntry, 0, len(entries))
		for _, e := range entries {
			persisted = append(persisted, store.TranscriptEntry{Speaker: e.Speaker, Text: e.Text})
		}
		if perr := s.store.AppendRun(r.Context(), sessionID, persisted); perr != nil {
			log.Error("transcript persist failed",
				slog.String("session_id", sessionID),
				slog.Any("error", perr),
			)
		}
	}

	// Signal stream completion.
	fmt.Fprintf(w, "event: done\ndata: [DONE]\n\n")
	flusher.Flush()

	log.Info("research run finished",
		slog.String("outcome", outcome),
		slog.Int("entries", len(entries)),
		slog.Duration("duration", elapsed),
	)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
