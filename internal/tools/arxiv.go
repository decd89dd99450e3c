package tools

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/lucaspecina/deepresearch-azure/internal/logging"
)

// defaultArxivResults is the number of papers fetched per query.
const defaultArxivResults = 5

// ArxivTool is an Eino tool that searches arXiv.org via its public Atom API
// and returns a formatted list of matching papers.
type ArxivTool struct {
	// baseURL is the arXiv query API endpoint.
	baseURL string

	// maxResults is the number of papers requested per query.
	maxResults int

	// observe records invocation outcomes.
	observe Observer

	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// arxivInput is the JSON-serialisable input schema for ArxivTool.
type arxivInput struct {
	// Query is the search terms for arXiv.
	Query string `json:"query"`
}

// NewArxivTool constructs an ArxivTool against the public arXiv API.
func NewArxivTool(observe Observer) *ArxivTool {
	return &ArxivTool{
		baseURL:    "http://export.arxiv.org/api/query",
		maxResults: defaultArxivResults,
		observe:    observe,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns the tool name registered with the agent.
func (t *ArxivTool) Name() string { return "search_arxiv" }

// Description returns the LLM-facing description of this tool.
func (t *ArxivTool) Description() string {
	return "Search for research papers on arXiv.org. Returns titles, authors, " +
		"publication dates, abstracts and PDF links."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *ArxivTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Search terms for arXiv papers.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string. All
// API failures degrade into descriptive output text.
func (t *ArxivTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input arxivInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("search_arxiv: invalid input: %w", err)
	}
	return t.Search(ctx, input.Query), nil
}

// atomFeed mirrors the subset of the arXiv Atom response the tool reads.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

// Search queries the arXiv API and returns a formatted paper list, or a
// descriptive error string on failure.
func (t *ArxivTool) Search(ctx context.Context, query string) string {
	log := logging.FromContext(ctx)

	if strings.TrimSpace(query) == "" {
		t.observe.observe(t.Name(), OutcomeValidationError)
		return MsgEmptyQuery
	}

	log.Info("arxiv: searching", slog.String("query", query))

	papers, err := t.fetch(ctx, query)
	if err != nil {
		log.Error("arxiv: search failed", slog.Any("error", err))
		t.observe.observe(t.Name(), OutcomeBackendError)
		return fmt.Sprintf("Arxiv search error: %v", err)
	}
	if len(papers) == 0 {
		t.observe.observe(t.Name(), OutcomeEmpty)
		return fmt.Sprintf("No Arxiv results found for query: %s.", query)
	}

	log.Info("arxiv: search completed", slog.Int("papers", len(papers)))
	t.observe.observe(t.Name(), OutcomeSuccess)
	return formatPapers(query, papers)
}

// fetch performs the Atom API request and parses the entries.
func (t *ArxivTool) fetch(ctx context.Context, query string) ([]atomEntry, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(t.maxResults))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search_arxiv: create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search_arxiv: %w: %v", ErrSearchBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search_arxiv: %w: HTTP %d", ErrSearchBackend, resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("search_arxiv: parse response: %w", err)
	}
	return feed.Entries, nil
}

// formatPapers renders the paper list for the agent conversation.
func formatPapers(query string, papers []atomEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Arxiv results for query: %s\n", query)

	for i, p := range papers {
		authors := make([]string, 0, len(p.Authors))
		for _, a := range p.Authors {
			authors = append(authors, strings.TrimSpace(a.Name))
		}

		pdf := ""
		for _, l := range p.Links {
			if l.Title == "pdf" || strings.HasSuffix(l.Href, ".pdf") {
				pdf = l.Href
				break
			}
		}

		published, _, _ := strings.Cut(p.Published, "T")

		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, strings.TrimSpace(p.Title))
		if len(authors) > 0 {
			fmt.Fprintf(&sb, "   Authors: %s\n", strings.Join(authors, ", "))
		}
		if published != "" {
			fmt.Fprintf(&sb, "   Published: %s\n", published)
		}
		fmt.Fprintf(&sb, "   Summary: %s\n", strings.TrimSpace(p.Summary))
		if pdf != "" {
			fmt.Fprintf(&sb, "   PDF: %s\n", pdf)
		}
	}
	return sb.String()
}
