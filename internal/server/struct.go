package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucaspecina/deepresearch-azure/internal/store"
	"github.com/lucaspecina/deepresearch-azure/internal/team"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ResearchTimeout bounds one POST /api/research run end to end.
	ResearchTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry is where server metrics are registered.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// researcher is the interface handleResearch calls to execute one research
// run. Production wiring supplies a fresh coordinator per call; tests inject
// a fake.
type researcher interface {
	// Research runs the agent team on query, invoking onEntry for every
	// transcript append, and returns the full transcript.
	Research(ctx context.Context, query string, onEntry func(team.Entry)) ([]team.Entry, error)
}

// ResearcherFunc adapts a function to the researcher interface.
type ResearcherFunc func(ctx context.Context, query string, onEntry func(team.Entry)) ([]team.Entry, error)

// Research calls f.
func (f ResearcherFunc) Research(ctx context.Context, query string, onEntry func(team.Entry)) ([]team.Entry, error) {
	return f(ctx, query, onEntry)
}

// Server is the HTTP server that exposes the research team.
type Server struct {
	// researcher executes research runs; set by New, overridden by fakes in tests.
	researcher researcher
	// store persists sessions and transcripts. Nil disables session endpoints.
	store store.SessionStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds all Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// researchRequest is the JSON body for POST /api/research.
type researchRequest struct {
	// Query is the research question.
	Query string `json:"query"`
	// SessionID optionally attaches the run to an existing session.
	SessionID string `json:"sessionId,omitempty"`
}

// transcriptEvent is the JSON payload of one SSE "message" event.
type transcriptEvent struct {
	// Speaker is the agent name, or "user" for the seed task.
	Speaker string `json:"speaker"`
	// Text is the message content.
	Text string `json:"text"`
}

// sessionSummary is one element of the GET /api/sessions response.
type sessionSummary struct {
	// ID is the session identifier.
	ID string `json:"id"`
	// InitialQuery is the query that started the session.
	InitialQuery string `json:"initialQuery"`
	// TotalQueries counts the runs recorded under this session.
	TotalQueries int `json:"totalQueries"`
	// CreatedAt is the session creation time (RFC 3339).
	CreatedAt string `json:"createdAt"`
	// LastUpdated is the time a run was last recorded (RFC 3339).
	LastUpdated string `json:"lastUpdated"`
}

// sessionDetail is the JSON response for GET /api/sessions/{id}.
type sessionDetail struct {
	sessionSummary
	// Transcript is the session's full persisted transcript, oldest-first.
	Transcript []transcriptEvent `json:"transcript"`
}
