// Package embedder provides interfaces for text embedding providers.
//
// The consolidation engine assumes every embedding in the store has the
// same dimension; providers report theirs via Dimensions and the ingest
// path normalizes vectors to unit length before storage.
package embedder

import "context"

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings,
	// one request for the whole batch. The result order matches the input
	// order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - texts: Slice of input texts to embed
	//
	// Returns a slice of embedding vectors and any error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors produced by this
	// provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
