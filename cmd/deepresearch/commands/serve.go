package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/server"
	"github.com/lucaspecina/deepresearch-azure/internal/team"
	"github.com/lucaspecina/deepresearch-azure/internal/tracing"
)

// NewServeCmd constructs the `deepresearch serve` command, which starts the
// HTTP server exposing the research team over a REST/SSE API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deepresearch HTTP server",
		Long: `Start the deepresearch HTTP server on localhost.

POST /api/research streams a research run's transcript over SSE. Sessions
persist across restarts and are served from GET /api/sessions. Liveness,
readiness, and Prometheus metrics endpoints are included.

Examples:
  deepresearch serve
  deepresearch serve --port 9090
  MODEL_PROVIDER=azure deepresearch serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			// The server owns the tool metrics, so it is built first with a
			// researcher that closes over the stack assembled below.
			var stack *researchStack

			researcher := server.ResearcherFunc(func(ctx context.Context, query string, onEntry func(team.Entry)) ([]team.Entry, error) {
				coordinator, err := stack.newCoordinator(onEntry)
				if err != nil {
					return nil, err
				}
				return coordinator.Run(ctx, query)
			})

			sessions, closeSessions := openSessionStore(log)
			defer closeSessions()

			srv, err := server.New(researcher, sessions, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				APIKey: os.Getenv("DEEPRESEARCH_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			stack, err = buildResearchStack(ctx, log, srv.ToolObserver())
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stack.close()

			pingers := []server.Pinger{server.NewLLMPinger(stack.model, envOrDefault("MODEL_PROVIDER", "ollama"))}
			if stack.index != nil {
				pingers = append(pingers, server.NewQdrantPinger(stack.index.Client()))
			}
			srv.SetPingers(pingers)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
