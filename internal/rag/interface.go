// Package rag implements the passage retrieval and ranking engine: it
// defines the ports for embedding and vector search, converts raw index
// hits into clean candidate paragraphs, scores them against a topical
// concept set, and assembles the top passages into an evidence bundle.
// Concrete implementations (Qdrant, OpenAI embeddings, etc.) satisfy the
// port interfaces so the tool layer never depends on a specific backend.
package rag

import (
	"context"
)

// RawHit is a single result returned by a vector index query. It is
// immutable and consumed once per retrieval call.
type RawHit struct {
	// Content is the raw text content of the indexed chunk.
	Content string

	// Title is the source document title. Index pipelines often store
	// URL-encoded titles; consumers should decode before display.
	Title string

	// Metadata holds the remaining projected fields (category, url,
	// source, chunk_id, ...) as key-value pairs.
	Metadata map[string]string
}

// Passage is a cleaned, scored paragraph derived from a RawHit.
// Its Text contains no noise lines and more than ten whitespace tokens.
type Passage struct {
	// Title is the title of the document the passage came from.
	Title string

	// Text is the paragraph text, joined into a single line.
	Text string

	// Score is the number of concepts from the ranker's concept set that
	// appear in Text. Passages with Score == 0 never reach a bundle.
	Score int
}

// Embedder is the port for converting query text into a dense vector.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts text into its embedding vector. A nil vector with a
	// nil error is treated by callers the same as an error: the embedding
	// service produced no vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the port for querying a pre-built vector search index.
// Result ordering is the index's similarity rank, descending.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Query returns up to k nearest-neighbour hits for the given query
	// vector, with the payload restricted to the named fields.
	Query(ctx context.Context, vector []float32, k int, fields []string) ([]RawHit, error)
}

// ProjectedFields is the fixed payload projection requested on every
// retrieval query. It mirrors the schema the research corpus is indexed
// with; content and title are lifted onto RawHit, the rest land in Metadata.
var ProjectedFields = []string{"content", "title", "category", "url", "source", "chunk_id"}

// TopK is the number of nearest neighbours requested per retrieval call.
const TopK = 15
