package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
	"github.com/lucaspecina/deepresearch-azure/internal/websearch"
)

// WebSearchTool is an Eino tool that answers a query from the live web via
// the grounding search service. Each invocation opens a fresh session
// (provisioning a transient server-side agent), searches, and closes the
// session again on every exit path.
type WebSearchTool struct {
	// provider opens search sessions.
	provider websearch.Provider

	// observe records invocation outcomes.
	observe Observer
}

// webSearchInput is the JSON-serialisable input schema for WebSearchTool.
type webSearchInput struct {
	// Query is the question to answer from the web.
	Query string `json:"query"`
}

// NewWebSearchTool constructs a WebSearchTool over the given provider.
func NewWebSearchTool(provider websearch.Provider, observe Observer) *WebSearchTool {
	return &WebSearchTool{provider: provider, observe: observe}
}

// Name returns the tool name registered with the agent.
func (t *WebSearchTool) Name() string { return "search_web" }

// Description returns the LLM-facing description of this tool.
func (t *WebSearchTool) Description() string {
	return "Search the web for current information using Bing grounding. " +
		"Returns an answer with source URLs."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The question to answer from the web.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string. All
// search failures degrade into descriptive output text.
func (t *WebSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input webSearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_web: invalid input: %w", err)
	}
	return t.Search(ctx, input.Query), nil
}

// Search runs one grounded web search and always returns appendable text.
// An empty query is a validation failure: the backend is never invoked and
// the failure is not counted against it.
func (t *WebSearchTool) Search(ctx context.Context, query string) string {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		t.observe.observe(t.Name(), OutcomeValidationError)
		return MsgEmptyQuery
	}

	log.Info("websearch: searching web", slog.String("query", query))

	sess, err := t.provider.Open(ctx)
	if err != nil {
		log.Error("websearch: session open failed", slog.Any("error", err))
		t.observe.observe(t.Name(), OutcomeBackendError)
		return fmt.Sprintf("Web search error: %v", fmt.Errorf("%w: %v", ErrSearchBackend, err))
	}
	// Teardown must run on every exit path, including search failure,
	// so the transient server-side agent does not leak. WithoutCancel
	// keeps the delete working after the run deadline fires.
	defer func() {
		if cerr := sess.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("websearch: session close failed", slog.Any("error", cerr))
		}
	}()

	answer, err := sess.Search(ctx, query)
	if err != nil {
		log.Error("websearch: search failed", slog.Any("error", err))
		t.observe.observe(t.Name(), OutcomeBackendError)
		return fmt.Sprintf("Web search error: %v", fmt.Errorf("%w: %v", ErrSearchBackend, err))
	}

	log.Info("websearch: search completed", slog.Int("citations", len(answer.Citations)))
	t.observe.observe(t.Name(), OutcomeSuccess)
	return formatAnswer(answer)
}

// formatAnswer renders the answer text followed by its Sources block, or
// the fixed no-citations suffix when the citation list is empty.
func formatAnswer(answer *websearch.Answer) string {
	var sb strings.Builder
	sb.WriteString(answer.Text)

	if len(answer.Citations) == 0 {
		sb.WriteString("\n\n" + MsgNoCitations)
		return sb.String()
	}

	sb.WriteString("\n\nSources:")
	for _, c := range answer.Citations {
		sb.WriteString("\n- " + c.URL)
	}
	return sb.String()
}
