// Package tools defines the ResearchTool interface and the tool
// implementations the research agents can invoke during a conversation.
// Each tool satisfies both this package's interface and Eino's tool.BaseTool
// interface so they can be bound directly to an agent.
//
// Tool failures never propagate to the caller as errors: every failure is
// recovered locally into a descriptive output string so the conversation
// always advances. The sentinel errors below classify failures internally
// and drive the outcome accounting.
package tools

import (
	"errors"
)

// Sentinel errors classifying tool failures. They never cross the tool
// boundary — InvokableRun converts them into output strings — but internal
// code and tests match on them with errors.Is.
var (
	// ErrEmbedding marks an embedding service failure (no vector returned).
	ErrEmbedding = errors.New("embedding failed")

	// ErrSearchBackend marks a failure of the vector index or web backend.
	ErrSearchBackend = errors.New("search backend failed")

	// ErrValidation marks a missing or malformed tool argument. Validation
	// failures are not counted as backend errors.
	ErrValidation = errors.New("invalid tool argument")
)

// Fixed tool output strings. These are part of the conversational contract:
// downstream agents pattern-match on them, so they must not change.
const (
	// MsgEmbeddingFailed is returned when the embedding service yields no vector.
	MsgEmbeddingFailed = "Failed to generate embedding for the query."

	// MsgNoResults is returned when retrieval produces an empty evidence bundle.
	MsgNoResults = "No relevant information found."

	// MsgEmptyQuery is returned when a tool is invoked without a query.
	MsgEmptyQuery = "Error: query must be a non-empty string."

	// MsgNoCitations terminates a web answer that arrived without sources.
	MsgNoCitations = "No citations available."
)

// ResearchTool is the interface all research tools satisfy. It extends the
// basic Eino tool contract with Name/Description accessors so agents can log
// and route tool calls by name without type assertions.
type ResearchTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

// Outcome labels reported to the Observer.
const (
	OutcomeSuccess         = "success"
	OutcomeEmpty           = "empty"
	OutcomeBackendError    = "backend_error"
	OutcomeValidationError = "validation_error"
)

// Observer receives one (tool, outcome) pair per tool invocation. The server
// wires this to prometheus counters; a nil Observer disables accounting.
type Observer func(tool, outcome string)

// observe reports an outcome, tolerating a nil Observer.
func (o Observer) observe(tool, outcome string) {
	if o != nil {
		o(tool, outcome)
	}
}
