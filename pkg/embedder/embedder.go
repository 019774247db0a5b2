// Package embedder generates dense embedding vectors for graph nodes and
// queries.
package embedder

import "context"

// Client generates embeddings. Embedding calls fail closed: an error means
// no vector, and callers decide whether a filter-only path can absorb it.
type Client interface {
	// Embed generates embeddings for the given texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle generates an embedding for a single text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector width this client produces.
	Dimensions() int
}

// Config holds embedding model settings.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}
