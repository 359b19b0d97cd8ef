package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig selects and configures the embedding model.
type EmbedderConfig struct {
	Provider  string // ollama, openai or hash
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	BatchSize int
}

// NewEmbedder builds the embedder named by config.Provider.
func NewEmbedder(config EmbedderConfig) (embeddings.Embedder, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}

	var client embeddings.EmbedderClient
	switch config.Provider {
	case "hash":
		if config.Dimension <= 0 {
			return nil, errors.New("hash embedder needs a positive dimension")
		}
		return NewHashEmbedder(config.Dimension), nil
	case "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		client = emb
	case "openai":
		if config.APIKey == "" {
			return nil, errors.New("openai embedder needs an api key")
		}
		if config.Model == "" {
			config.Model = string(openai.SmallEmbedding3)
		}
		client = newOpenAIEmbeddingClient(config)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return emb, nil
}

type openaiEmbeddingClient struct {
	client *openai.Client
	model  string
	dim    int
}

func newOpenAIEmbeddingClient(config EmbedderConfig) *openaiEmbeddingClient {
	cc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cc.BaseURL = config.BaseURL
	}
	return &openaiEmbeddingClient{
		client: openai.NewClientWithConfig(cc),
		model:  config.Model,
		dim:    config.Dimension,
	}
}

// CreateEmbedding satisfies embeddings.EmbedderClient.
func (c *openaiEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: texts,
	}
	if c.dim > 0 {
		req.Dimensions = c.dim
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
