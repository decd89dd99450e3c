package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/store"
)

// handleSessions handles GET /api/sessions, returning all sessions most
// recently updated first.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.store == nil {
		http.Error(w, "session store disabled", http.StatusServiceUnavailable)
		return
	}

	sessions, err := s.store.List(r.Context())
	if err != nil {
		log.Error("session list failed", slog.Any("error", err))
		http.Error(w, "session list failed", http.StatusInternalServerError)
		return
	}

	summaries := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, toSummary(&sess))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		log.Error("sessions encode error", slog.Any("error", err))
	}
}

// handleSession handles GET /api/sessions/{id}, returning one session's
// metadata together with its full persisted transcript.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.store == nil {
		http.Error(w, "session store disabled", http.StatusServiceUnavailable)
		return
	}

	id := r.PathValue("id")
	sess, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	entries, err := s.store.Transcript(r.Context(), id)
	if err != nil {
		log.Error("transcript load failed",
			slog.String("session_id", id),
			slog.Any("error", err),
		)
		http.Error(w, "transcript load failed", http.StatusInternalServerError)
		return
	}

	detail := sessionDetail{
		sessionSummary: toSummary(sess),
		Transcript:     make([]transcriptEvent, 0, len(entries)),
	}
	for _, e := range entries {
		detail.Transcript = append(detail.Transcript, transcriptEvent{Speaker: e.Speaker, Text: e.Text})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(detail); err != nil {
		log.Error("session encode error", slog.Any("error", err))
	}
}

// toSummary converts a store session to its JSON representation.
func toSummary(sess *store.Session) sessionSummary {
	return sessionSummary{
		ID:           sess.ID,
		InitialQuery: sess.InitialQuery,
		TotalQueries: sess.TotalQueries,
		CreatedAt:    sess.CreatedAt.Format(time.RFC3339),
		LastUpdated:  sess.LastUpdated.Format(time.RFC3339),
	}
}
