package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/rag"
)

// RetrievalTool is an Eino tool that searches the indexed research corpus:
// embed the query, fetch nearest neighbors from the vector index, extract
// and rank passages, and format the top evidence for the agent. Stateless
// between invocations.
type RetrievalTool struct {
	// embedder converts the query into its embedding vector.
	embedder rag.Embedder

	// index is the vector index holding the corpus.
	index rag.VectorIndex

	// concepts is the relevance vocabulary handed to each per-call Ranker.
	concepts []string

	// observe records invocation outcomes.
	observe Observer
}

// retrievalInput is the JSON-serialisable input schema for RetrievalTool.
type retrievalInput struct {
	// Query is the research question to search the corpus for.
	Query string `json:"query"`
}

// queryExpansion is appended to the query before embedding to bias the
// vector toward research-paper phrasing.
const queryExpansion = "\nInformation from research papers on this topic\nScientific evidence and studies about this"

// NewRetrievalTool constructs a RetrievalTool over the given ports.
func NewRetrievalTool(embedder rag.Embedder, index rag.VectorIndex, concepts []string, observe Observer) *RetrievalTool {
	return &RetrievalTool{
		embedder: embedder,
		index:    index,
		concepts: concepts,
		observe:  observe,
	}
}

// Name returns the tool name registered with the agent.
func (t *RetrievalTool) Name() string { return "search_research_corpus" }

// Description returns the LLM-facing description of this tool.
func (t *RetrievalTool) Description() string {
	return "Search through research papers and documents in the knowledge base. " +
		"Returns the most relevant passages with their source titles."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *RetrievalTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The research question to search the corpus for.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string. All
// retrieval failures degrade into descriptive output text.
func (t *RetrievalTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input retrievalInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_research_corpus: invalid input: %w", err)
	}
	return t.Retrieve(ctx, input.Query), nil
}

// Retrieve runs the retrieval pipeline for one query and always returns
// appendable text, recovering every failure into a fixed or descriptive
// message.
func (t *RetrievalTool) Retrieve(ctx context.Context, query string) string {
	out, err := t.retrieve(ctx, query)
	log := logging.FromContext(ctx)

	switch {
	case err == nil:
		return out
	case errors.Is(err, ErrValidation):
		t.observe.observe(t.Name(), OutcomeValidationError)
		return MsgEmptyQuery
	case errors.Is(err, ErrEmbedding):
		log.Error("retrieval: embedding failed", slog.Any("error", err))
		t.observe.observe(t.Name(), OutcomeBackendError)
		return MsgEmbeddingFailed
	default:
		log.Error("retrieval: vector search failed", slog.Any("error", err))
		t.observe.observe(t.Name(), OutcomeBackendError)
		return fmt.Sprintf("Search backend error: %v", err)
	}
}

// retrieve performs the pipeline and classifies failures with the package
// sentinels.
func (t *RetrievalTool) retrieve(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", fmt.Errorf("search_research_corpus: %w: query", ErrValidation)
	}

	log := logging.FromContext(ctx)
	log.Info("retrieval: searching corpus", slog.String("query", query))

	vector, err := t.embedder.Embed(ctx, query+queryExpansion)
	if err != nil {
		return "", fmt.Errorf("search_research_corpus: %w: %v", ErrEmbedding, err)
	}
	if len(vector) == 0 {
		return "", fmt.Errorf("search_research_corpus: %w: empty vector", ErrEmbedding)
	}

	hits, err := t.index.Query(ctx, vector, rag.TopK, rag.ProjectedFields)
	if err != nil {
		return "", fmt.Errorf("search_research_corpus: %w: %v", ErrSearchBackend, err)
	}
	log.Info("retrieval: received hits", slog.Int("count", len(hits)))

	ranker := rag.NewRanker(t.concepts)
	var candidates []rag.Passage
	for _, hit := range hits {
		candidates = append(candidates, ranker.Rank(hit.Title, rag.ExtractParagraphs(hit.Content))...)
	}

	bundle := rag.SelectTop(candidates)
	if len(bundle) == 0 {
		log.Info("retrieval: no qualifying passages", slog.String("query", query))
		t.observe.observe(t.Name(), OutcomeEmpty)
		return MsgNoResults, nil
	}

	log.Info("retrieval: selected passages", slog.Int("count", len(bundle)))
	t.observe.observe(t.Name(), OutcomeSuccess)
	return bundle.Format(query), nil
}
