package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
)

// NewSessionsCmd constructs the `deepresearch sessions` command group for
// inspecting persisted research sessions.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and inspect persisted research sessions",
	}

	cmd.AddCommand(newSessionsListCmd(), newSessionsShowCmd())

	return cmd
}

// newSessionsListCmd constructs `deepresearch sessions list`.
func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			sessions, closeSessions := openSessionStore(log)
			if sessions == nil {
				return fmt.Errorf("sessions: store is disabled or unavailable")
			}
			defer closeSessions()

			all, err := sessions.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			if len(all) == 0 {
				fmt.Println("no sessions recorded")
				return nil
			}

			for _, s := range all {
				fmt.Printf("%s  %s  runs=%d  %q\n",
					s.ID, s.LastUpdated.Format("2006-01-02 15:04"), s.TotalQueries, s.InitialQuery)
			}
			return nil
		},
	}
}

// newSessionsShowCmd constructs `deepresearch sessions show <id>`.
func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a session's full persisted transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			sessions, closeSessions := openSessionStore(log)
			if sessions == nil {
				return fmt.Errorf("sessions: store is disabled or unavailable")
			}
			defer closeSessions()

			sess, err := sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			fmt.Printf("session %s — %q (%d runs)\n\n", sess.ID, sess.InitialQuery, sess.TotalQueries)

			entries, err := sessions.Transcript(cmd.Context(), sess.ID)
			if err != nil {
				return fmt.Errorf("sessions: %w", err)
			}
			for _, e := range entries {
				fmt.Printf("--- %s ---\n%s\n\n", e.Speaker, e.Text)
			}
			return nil
		},
	}
}
