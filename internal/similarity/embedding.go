package similarity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EmbeddingConfig configures an OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"
	Model    string
	APIKey   string // Optional for local endpoints
}

// EmbeddingEncoder encodes texts through an OpenAI-compatible /embeddings API.
type EmbeddingEncoder struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewEmbeddingEncoder(cfg EmbeddingConfig, logger *zap.Logger) (*EmbeddingEncoder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &EmbeddingEncoder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("embedding"),
	}, nil
}

// Encode sends all texts in a single batched request.
func (e *EmbeddingEncoder) Encode(ctx context.Context, texts []string) Encoding {
	if len(texts) == 0 {
		return Encoded(nil)
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return Unavailable(fmt.Errorf("create embeddings: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return Unavailable(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	// The API may return items out of order; Index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || len(d.Embedding) == 0 {
			return Unavailable(fmt.Errorf("malformed embedding at index %d", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return Unavailable(fmt.Errorf("missing embedding for input %d", i))
		}
	}

	e.logger.Debug("embeddings created",
		zap.String("model", e.model),
		zap.Int("inputs", len(texts)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return Encoded(vectors)
}

func (e *EmbeddingEncoder) Method() Method { return MethodEmbedding }

// Model returns the configured embedding model name.
func (e *EmbeddingEncoder) Model() string { return e.model }

// Probe issues a single tiny request to confirm the backend answers.
func (e *EmbeddingEncoder) Probe(ctx context.Context) error {
	return e.Encode(ctx, []string{"ping"}).Reason()
}
