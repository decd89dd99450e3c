package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"

	"github.com/lucaspecina/deepresearch-azure/internal/budget"
	"github.com/lucaspecina/deepresearch-azure/internal/embedder"
	"github.com/lucaspecina/deepresearch-azure/internal/provider"
	"github.com/lucaspecina/deepresearch-azure/internal/rag"
	"github.com/lucaspecina/deepresearch-azure/internal/team"
	"github.com/lucaspecina/deepresearch-azure/internal/tools"
	"github.com/lucaspecina/deepresearch-azure/internal/websearch"
)

// defaultCollection is the Qdrant collection queried when QDRANT_COLLECTION
// is unset.
const defaultCollection = "research_papers"

// researchStack bundles everything needed to run research teams: the chat
// model, the corpus index (nil when Qdrant is not configured), and the
// resolved run limits.
type researchStack struct {
	// model is the chat model backing every agent turn.
	model model.ToolCallingChatModel
	// index is the Qdrant corpus index, nil when QDRANT_HOST is unset.
	index *rag.QdrantIndex
	// agents is the fixed turn cycle.
	agents []*team.Agent
	// completer produces each agent's message.
	completer team.Completer
	// termination is the run's stop condition.
	termination team.Condition
	// maxContextTokens is the per-completion input budget.
	maxContextTokens int
	// close releases the stack's connections.
	close func()
}

// buildResearchStack wires the chat model, embedder, Qdrant index, web search
// provider, and agents from the environment. observe may be nil; when set it
// receives every tool call outcome (the server wires it to Prometheus).
func buildResearchStack(ctx context.Context, log *slog.Logger, observe tools.Observer) (*researchStack, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	if err := embedder.ValidateForRetrieval(log); err != nil {
		return nil, err
	}

	stack := &researchStack{model: chatModel, close: func() {}}

	// Corpus retrieval requires both an embedder and a reachable Qdrant
	// collection. Without QDRANT_HOST the retrieval agent runs tool-less and
	// reports the corpus as unavailable.
	var retrievalTool *tools.RetrievalTool
	if os.Getenv("QDRANT_HOST") != "" {
		emb, err := embedder.NewFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to initialise embedder: %w", err)
		}

		index, err := rag.NewQdrantIndex(ctx, &rag.QdrantConfig{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       envInt("QDRANT_PORT", 6334),
			Collection: envOrDefault("QDRANT_COLLECTION", defaultCollection),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, err
		}
		stack.index = index
		stack.close = func() { _ = index.Close() }

		retrievalTool = tools.NewRetrievalTool(emb, index, rag.ConceptsFromEnv(), observe)
		log.Info("corpus retrieval enabled",
			slog.String("host", os.Getenv("QDRANT_HOST")),
			slog.String("collection", envOrDefault("QDRANT_COLLECTION", defaultCollection)),
		)
	} else {
		log.Warn("corpus retrieval disabled", slog.String("reason", "QDRANT_HOST not set"))
	}

	// Web search requires the Azure AI Agents project. Without it the web
	// agent falls back to arXiv search so it still has an outward-facing tool.
	var webTool tool.BaseTool
	if webProvider, err := websearch.NewFromEnv(); err != nil {
		log.Warn("web search falling back to arXiv", slog.Any("reason", err))
		webTool = tools.NewArxivTool(observe)
	} else {
		webTool = tools.NewWebSearchTool(webProvider, observe)
		log.Info("web search enabled", slog.String("endpoint", os.Getenv("AZURE_AI_PROJECT_ENDPOINT")))
	}

	completer, err := team.NewEinoCompleter(chatModel)
	if err != nil {
		return nil, err
	}
	stack.completer = completer

	// Typed-nil tool values must not reach the agents as non-nil interfaces.
	retrieval := team.NewRetrievalAgent(nil)
	if retrievalTool != nil {
		retrieval = team.NewRetrievalAgent(retrievalTool)
	}
	stack.agents = []*team.Agent{retrieval, team.NewWebAgent(webTool), team.NewSynthesisAgent()}

	stack.termination = team.DefaultTermination()
	if messageCap := envInt("RESEARCH_MESSAGE_CAP", 0); messageCap > 0 {
		stack.termination = team.Or(
			team.SentinelCondition{Marker: team.DefaultSentinel},
			team.MessageCapCondition{Cap: messageCap},
		)
	}
	stack.maxContextTokens = envInt("RESEARCH_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens)

	return stack, nil
}

// newCoordinator builds a single-use coordinator over the stack. onEntry may
// be nil.
func (s *researchStack) newCoordinator(onEntry func(team.Entry)) (*team.Coordinator, error) {
	return team.New(&team.Config{ //nolint:wrapcheck // constructor passthrough
		Agents:           s.agents,
		Completer:        s.completer,
		Termination:      s.termination,
		MaxContextTokens: s.maxContextTokens,
		OnEntry:          onEntry,
	})
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
