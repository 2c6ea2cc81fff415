// Package llmclient wraps the Gemini API behind the minimal generation
// contract the planner needs: system instruction plus user prompt in, text
// out, with retries for transient failures.
package llmclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

const defaultModel = "gemini-2.0-flash"

// Config carries the LLM connection settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	// MaxRetryWindow caps how long transient failures are retried.
	MaxRetryWindow time.Duration
}

// GeminiClient implements schemas.LLMClient over the Gemini API.
type GeminiClient struct {
	client *genai.Client
	cfg    Config
	log    *zap.Logger
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient creates the client and validates its configuration.
func NewGeminiClient(ctx context.Context, cfg Config, logger *zap.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("an API key is required for the LLM backend")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetryWindow <= 0 {
		cfg.MaxRetryWindow = 2 * time.Minute
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return &GeminiClient{client: client, cfg: cfg, log: logger.Named("llmclient")}, nil
}

// Generate sends the prompts and returns the model's text answer.
func (c *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt must not be empty")
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if strings.TrimSpace(system) != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.cfg.MaxRetryWindow
	policy.MaxInterval = 30 * time.Second

	var answer string
	operation := func() error {
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(prompt), genCfg)
		if err != nil {
			c.log.Warn("LLM request failed, retrying", zap.Error(err))
			return err
		}

		text := collectText(resp)
		if text == "" {
			return backoff.Permanent(fmt.Errorf("LLM returned an empty response"))
		}

		c.log.Debug("LLM generation complete",
			zap.String("model", c.cfg.Model),
			zap.Duration("duration", time.Since(start)))
		answer = text
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return answer, nil
}

// Close releases client resources. The genai SDK holds no persistent
// connection, so this is a no-op kept for the interface.
func (c *GeminiClient) Close() error { return nil }

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
