package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

const defaultEmbeddingModel = "gemini-embedding-001"

// GeminiEmbedder produces embedding vectors via the Gemini API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

var _ schemas.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates an embedder backed by the Gemini API.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("an API key is required for the embedding backend")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	return &GeminiEmbedder{client: client, model: model, log: logger.Named("embedder")}, nil
}

// Embed returns the embedding vector for one text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	var vector []float32
	operation := func() error {
		resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
		if err != nil {
			e.log.Warn("Embedding request failed, retrying", zap.Error(err))
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return backoff.Permanent(fmt.Errorf("embedding backend returned no vector"))
		}
		vector = resp.Embeddings[0].Values
		return nil
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return vector, nil
}
