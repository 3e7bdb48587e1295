// Package openai implements embedder.Provider against any OpenAI-compatible
// embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultDimensions = 1536

// Client is an embedding client for OpenAI-compatible endpoints.
// It implements the embedder.Provider interface.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for the embedding client.
// APIKey: API key (required by most endpoints)
// Model: Embedding model name, defaults to text-embedding-ada-002
// BaseURL: Endpoint base URL, defaults to the OpenAI address
// Dimensions: Vector dimensions, defaults to 1536
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

// NewClient creates a new embedding client.
//
// Args:
//   - cfg: Configuration containing APIKey, Model, BaseURL, Dimensions
//
// Returns:
//   - *Client: Embedding client instance
//   - error: Returns an error if the configuration is invalid
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("embedder openai: nil config")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.AdaEmbeddingV2
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - text: Text content to vectorize
//
// Returns:
//   - []float64: Vector representation of the text
//   - error: Returns an error if vectorization fails
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding failed: no data returned")
	}
	return toFloat64(resp.Data[0].Embedding), nil
}

// EmbedBatch converts multiple texts to vectors in a single request.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - texts: List of texts to vectorize
//
// Returns:
//   - [][]float64: Vector for each text, in input order
//   - error: Returns an error if vectorization fails or the result count
//     does not match the input count
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding failed: got %d results for %d inputs", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		embeddings[i] = toFloat64(data.Embedding)
	}
	return embeddings, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client connection.
// The underlying SDK client does not require explicit closing; this method
// is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}

func toFloat64(embedding []float32) []float64 {
	out := make([]float64, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}
