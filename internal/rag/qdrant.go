package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for the Qdrant collection that
// backs the research corpus index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name holding the corpus.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant collection.
// The collection is built offline by a separate ingestion pipeline; this
// type only queries it.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex connects to Qdrant and verifies that the target collection
// exists, so a missing corpus surfaces as a clear startup error rather than
// empty results on the first query.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant: collection %q does not exist — index the corpus first", cfg.Collection)
	}

	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Query performs a cosine similarity search and returns up to k hits with
// the payload restricted to the requested fields. The content and title
// fields are lifted onto the RawHit; all other projected fields land in
// Metadata.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, k int, fields []string) ([]RawHit, error) {
	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(fields...),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	hits := make([]RawHit, 0, len(results))
	for _, r := range results {
		hit := RawHit{Metadata: make(map[string]string)}
		for key, val := range r.Payload {
			switch key {
			case "content":
				hit.Content = val.GetStringValue()
			case "title":
				hit.Title = val.GetStringValue()
			default:
				hit.Metadata[key] = val.GetStringValue()
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Client exposes the underlying Qdrant client for readiness probing.
func (s *QdrantIndex) Client() *qdrant.Client { return s.client }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
