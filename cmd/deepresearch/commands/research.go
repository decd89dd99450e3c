package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/store"
	"github.com/lucaspecina/deepresearch-azure/internal/team"
)

// NewResearchCmd constructs the `deepresearch research` command, which runs
// one full research conversation and prints the transcript to stdout as it
// unfolds.
func NewResearchCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "research [question]",
		Short: "Run the research team on a question",
		Long: `Run the agent team on a research question.

The retrieval agent searches the local Qdrant corpus, the web agent searches
the web through Bing-grounded Azure AI Agents, and the synthesis agent
combines the evidence into a cited answer. Transcript messages are printed
as each turn completes.

Examples:
  deepresearch research "does RL generalize better than SFT?"
  deepresearch research --session 3f2a... "and what about out-of-distribution tasks?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			question := strings.Join(args, " ")

			stack, err := buildResearchStack(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("research: %w", err)
			}
			defer stack.close()

			sessions, closeSessions := openSessionStore(log)
			defer closeSessions()

			if sessionID == "" && sessions != nil {
				sessionID, err = sessions.Create(ctx, question)
				if err != nil {
					return fmt.Errorf("research: %w", err)
				}
				fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
			}

			coordinator, err := stack.newCoordinator(func(e team.Entry) {
				fmt.Printf("--- %s ---\n%s\n\n", e.Speaker, e.Text)
			})
			if err != nil {
				return fmt.Errorf("research: %w", err)
			}

			entries, runErr := coordinator.Run(ctx, question)

			if sessions != nil && sessionID != "" && len(entries) > 0 {
				persisted := make([]store.TranscriptEntry, 0, len(entries))
				for _, e := range entries {
					persisted = append(persisted, store.TranscriptEntry{Speaker: e.Speaker, Text: e.Text})
				}
				if err := sessions.AppendRun(ctx, sessionID, persisted); err != nil {
					log.Warn("transcript persist failed", slog.Any("error", err))
				}
			}

			return runErr //nolint:wrapcheck // CLI entry point — error goes directly to cobra
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Existing session ID to append this run to")

	return cmd
}

// openSessionStore opens the SQLite session store resolved from
// DEEPRESEARCH_SESSIONS_DB. Returns a nil store when persistence is disabled
// or unavailable; the returned close function is always safe to call.
func openSessionStore(log *slog.Logger) (store.SessionStore, func()) {
	dbPath := os.Getenv("DEEPRESEARCH_SESSIONS_DB")
	if dbPath == "disabled" {
		log.Info("sessions: disabled via DEEPRESEARCH_SESSIONS_DB=disabled")
		return nil, func() {}
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("sessions: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}
	s, err := store.Open(dbPath)
	if err != nil {
		log.Warn("sessions: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("sessions: store opened", slog.String("path", dbPath))
	return s, func() { _ = s.Close() }
}
