// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// researchRequestsTotal counts completed /api/research requests,
	// partitioned by outcome: "ok", "timeout", or "error".
	researchRequestsTotal *prometheus.CounterVec

	// researchDurationSeconds records the wall-clock duration of each
	// /api/research request from first byte received to stream completion.
	researchDurationSeconds *prometheus.HistogramVec

	// researchActiveStreams is the number of /api/research SSE streams
	// currently open.
	researchActiveStreams prometheus.Gauge

	// toolCallsTotal counts research tool invocations, partitioned by tool
	// name and outcome ("success", "empty", "backend_error", "validation_error").
	toolCallsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler name, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		researchRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deepresearch",
			Subsystem: "research",
			Name:      "requests_total",
			Help:      "Total number of /api/research requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		researchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deepresearch",
			Subsystem: "research",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/research requests from receipt to stream completion.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		researchActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "deepresearch",
			Subsystem: "research",
			Name:      "active_streams",
			Help:      "Number of /api/research SSE streams currently open.",
		}),

		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deepresearch",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total number of research tool invocations, partitioned by tool and outcome.",
		}, []string{"tool", "outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deepresearch",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "deepresearch",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument wraps next with per-request counters and latency observation,
// labelled with the logical handler name.
func (s *Server) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(elapsed.Seconds())
	})
}
