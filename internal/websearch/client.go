// Package websearch provides a grounding web-search client backed by the
// Azure AI Agents service with Bing grounding. Each search provisions a
// transient server-side agent and thread, runs the query, and tears the
// agent down again — the Session type makes that lifecycle explicit so
// callers can guarantee teardown with a single deferred Close.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Citation is one web source referenced by a grounded answer.
type Citation struct {
	// Title is the page title reported by the grounding service.
	Title string
	// URL is the source URL.
	URL string
}

// Answer is the result of one grounded web search.
type Answer struct {
	// Text is the assistant's answer text.
	Text string
	// Citations lists the web sources behind the answer. May be empty.
	Citations []Citation
}

// Session is a provisioned transient agent + thread on the grounding
// service. Sessions are single-use: open, search, close. Close must run on
// every exit path so the server-side agent does not leak.
type Session interface {
	// Search runs one grounded query and returns the answer with citations.
	Search(ctx context.Context, query string) (*Answer, error)
	// Close deletes the server-side agent and thread.
	Close(ctx context.Context) error
}

// Provider opens search sessions. The production implementation is
// AzureClient; tests substitute in-memory fakes.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// AzureConfig holds connection parameters for the Azure AI Agents service.
type AzureConfig struct {
	// Endpoint is the AI project endpoint, e.g.
	// "https://<resource>.services.ai.azure.com/api/projects/<project>".
	Endpoint string
	// APIKey authenticates requests (Bearer token).
	APIKey string
	// Model is the chat deployment backing the search agent (e.g. "gpt-4o").
	Model string
	// BingConnectionID is the project's Bing grounding connection resource ID.
	BingConnectionID string
	// APIVersion is the agents API version.
	APIVersion string
	// PollInterval is the run-status polling interval (default 1s).
	PollInterval time.Duration
}

// AzureClient implements Provider against the Azure AI Agents REST API.
type AzureClient struct {
	cfg    *AzureConfig
	client *http.Client
}

// NewAzureClient validates the config and constructs an AzureClient.
func NewAzureClient(cfg *AzureConfig) (*AzureClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("websearch: endpoint must not be empty")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("websearch: API key must not be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2025-05-01"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &AzureClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// NewFromEnv constructs an AzureClient from environment variables:
//
//	AZURE_AI_PROJECT_ENDPOINT  — AI project endpoint (required)
//	AZURE_AI_API_KEY           — API key (required)
//	BING_CONNECTION_ID         — Bing grounding connection ID (required)
//	WEBSEARCH_MODEL            — agent chat deployment (default: gpt-4o)
func NewFromEnv() (*AzureClient, error) {
	endpoint := os.Getenv("AZURE_AI_PROJECT_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("websearch: AZURE_AI_PROJECT_ENDPOINT is not set")
	}
	apiKey := os.Getenv("AZURE_AI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("websearch: AZURE_AI_API_KEY is not set")
	}
	connID := os.Getenv("BING_CONNECTION_ID")
	if connID == "" {
		return nil, fmt.Errorf("websearch: BING_CONNECTION_ID is not set")
	}
	model := os.Getenv("WEBSEARCH_MODEL")
	if model == "" {
		model = "gpt-4o"
	}
	return NewAzureClient(&AzureConfig{
		Endpoint:         endpoint,
		APIKey:           apiKey,
		Model:            model,
		BingConnectionID: connID,
	})
}

// agentInstructions steers the transient agent toward citable answers.
const agentInstructions = "You are a web research assistant. Answer the " +
	"user's question using current web information and cite your sources."

// azureSession is the live agent + thread pair for one search.
type azureSession struct {
	c       *AzureClient
	agentID string
	// threadID is created lazily on the first Search call.
	threadID string
}

// Open provisions a transient agent with the Bing grounding tool attached.
func (c *AzureClient) Open(ctx context.Context) (Session, error) {
	body := map[string]any{
		"model":        c.cfg.Model,
		"name":         "web-search-agent",
		"instructions": agentInstructions,
		"tools": []map[string]any{{
			"type": "bing_grounding",
			"bing_grounding": map[string]any{
				"connections": []map[string]string{{"connection_id": c.cfg.BingConnectionID}},
			},
		}},
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/assistants", body, &created); err != nil {
		return nil, fmt.Errorf("websearch: create agent: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("websearch: create agent: response missing id")
	}

	return &azureSession{c: c, agentID: created.ID}, nil
}

// threadMessage is one message returned from the thread message listing.
type threadMessage struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value       string `json:"value"`
			Annotations []struct {
				Type        string `json:"type"`
				URLCitation struct {
					URL   string `json:"url"`
					Title string `json:"title"`
				} `json:"url_citation"`
			} `json:"annotations"`
		} `json:"text"`
	} `json:"content"`
}

// Search posts the query to a fresh thread, runs the agent, and collects
// the answer text plus url_citation annotations.
func (s *azureSession) Search(ctx context.Context, query string) (*Answer, error) {
	if s.threadID == "" {
		var thread struct {
			ID string `json:"id"`
		}
		if err := s.c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &thread); err != nil {
			return nil, fmt.Errorf("websearch: create thread: %w", err)
		}
		if thread.ID == "" {
			return nil, fmt.Errorf("websearch: create thread: response missing id")
		}
		s.threadID = thread.ID
	}

	msg := map[string]any{"role": "user", "content": query}
	if err := s.c.do(ctx, http.MethodPost, "/threads/"+s.threadID+"/messages", msg, nil); err != nil {
		return nil, fmt.Errorf("websearch: post message: %w", err)
	}

	var run struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	runBody := map[string]any{"assistant_id": s.agentID}
	if err := s.c.do(ctx, http.MethodPost, "/threads/"+s.threadID+"/runs", runBody, &run); err != nil {
		return nil, fmt.Errorf("websearch: start run: %w", err)
	}

	// Poll until the run reaches a terminal status.
	for run.Status == "" || run.Status == "queued" || run.Status == "in_progress" || run.Status == "requires_action" {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("websearch: run polling: %w", ctx.Err())
		case <-time.After(s.c.cfg.PollInterval):
		}
		if err := s.c.do(ctx, http.MethodGet, "/threads/"+s.threadID+"/runs/"+run.ID, nil, &run); err != nil {
			return nil, fmt.Errorf("websearch: poll run: %w", err)
		}
	}
	if run.Status != "completed" {
		return nil, fmt.Errorf("websearch: run finished with status %q", run.Status)
	}

	var listing struct {
		Data []threadMessage `json:"data"`
	}
	if err := s.c.do(ctx, http.MethodGet, "/threads/"+s.threadID+"/messages?order=desc", nil, &listing); err != nil {
		return nil, fmt.Errorf("websearch: list messages: %w", err)
	}

	for _, m := range listing.Data {
		if m.Role != "assistant" {
			continue
		}
		answer := &Answer{}
		for _, part := range m.Content {
			if part.Type != "text" {
				continue
			}
			answer.Text += part.Text.Value
			for _, a := range part.Text.Annotations {
				if a.Type != "url_citation" || a.URLCitation.URL == "" {
					continue
				}
				answer.Citations = append(answer.Citations, Citation{
					Title: a.URLCitation.Title,
					URL:   a.URLCitation.URL,
				})
			}
		}
		return answer, nil
	}

	return nil, fmt.Errorf("websearch: run completed but no assistant message found")
}

// Close deletes the transient agent (and its thread) from the service.
// Errors from thread deletion are ignored — threads expire server-side,
// while leaked agents count against the project quota.
func (s *azureSession) Close(ctx context.Context) error {
	if s.threadID != "" {
		_ = s.c.do(ctx, http.MethodDelete, "/threads/"+s.threadID, nil, nil)
	}
	if err := s.c.do(ctx, http.MethodDelete, "/assistants/"+s.agentID, nil, nil); err != nil {
		return fmt.Errorf("websearch: delete agent: %w", err)
	}
	return nil
}

// apiError is the error envelope returned by the agents API.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one JSON request against the agents API and decodes the
// response into out when out is non-nil.
func (c *AzureClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	sep := "?"
	if bytes.ContainsRune([]byte(path), '?') {
		sep = "&"
	}
	url := c.cfg.Endpoint + path + sep + "api-version=" + c.cfg.APIVersion

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope apiError
		if json.NewDecoder(resp.Body).Decode(&envelope) == nil && envelope.Error.Message != "" {
			return fmt.Errorf("%s %s: %s", method, path, envelope.Error.Message)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
