package openai

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	openai "github.com/sashabaranov/go-openai"
)

// EmbeddingClient generates embeddings through the OpenAI API.
type EmbeddingClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewEmbeddingClient creates an embedding client for the given model.
func NewEmbeddingClient(apiKey, model string, timeout time.Duration) *EmbeddingClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmbeddingClient{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
	}
}

// Model returns the embedding model identifier.
func (c *EmbeddingClient) Model() string {
	return c.model
}

// GenerateEmbedding embeds a single text.
func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	vectors, err := c.GenerateBatchEmbeddings(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(vectors) == 0 {
		return pgvector.Vector{}, nil
	}
	return vectors[0], nil
}

// GenerateBatchEmbeddings embeds several texts in one request.
func (c *EmbeddingClient) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, err
	}

	vectors := make([]pgvector.Vector, len(resp.Data))
	for i, data := range resp.Data {
		embedding := make([]float32, len(data.Embedding))
		copy(embedding, data.Embedding)
		vectors[i] = pgvector.NewVector(embedding)
	}
	return vectors, nil
}
