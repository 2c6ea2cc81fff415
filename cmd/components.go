package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
	"github.com/mbw0x/autofill-agent/internal/config"
	"github.com/mbw0x/autofill-agent/internal/ingest"
	"github.com/mbw0x/autofill-agent/internal/llmclient"
	"github.com/mbw0x/autofill-agent/internal/planner"
	"github.com/mbw0x/autofill-agent/internal/retrieval"
)

// reasoningStack bundles the components the backend-side commands share.
// Close releases the LLM client and, when Postgres is configured, the pool.
type reasoningStack struct {
	store    schemas.ChunkStore
	pipeline *ingest.Pipeline
	planner  *planner.Planner
	llm      *llmclient.GeminiClient

	pool *pgxpool.Pool
}

func (s *reasoningStack) Close() {
	if s.llm != nil {
		_ = s.llm.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// buildReasoningStack wires store, embedder, LLM, ingest pipeline and planner
// from the loaded configuration. An empty database URL selects the in-memory
// store; a set one connects to Postgres and runs the migration.
func buildReasoningStack(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*reasoningStack, error) {
	stack := &reasoningStack{}

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		stack.pool = pool

		pg := retrieval.NewPostgresStore(pool, logger)
		if err := pg.Migrate(ctx); err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to migrate chunk store: %w", err)
		}
		stack.store = pg
	} else {
		logger.Warn("No database configured; indexed CVs will not survive a restart")
		stack.store = retrieval.NewInMemoryStore(logger)
	}

	embedder, err := retrieval.NewGeminiEmbedder(ctx, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel, logger)
	if err != nil {
		stack.Close()
		return nil, err
	}

	llm, err := llmclient.NewGeminiClient(ctx, llmclient.Config{
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxRetryWindow: cfg.LLM.MaxRetryWindow,
	}, logger)
	if err != nil {
		stack.Close()
		return nil, err
	}
	stack.llm = llm

	pipeline := ingest.NewPipeline(stack.store, embedder, ingest.Chunker{
		ChunkSize: cfg.Ingest.ChunkSize,
		Overlap:   cfg.Ingest.Overlap,
	}, logger)
	pipeline.Replace = cfg.Ingest.Replace
	pipeline.Concurrency = cfg.Ingest.Concurrency
	stack.pipeline = pipeline

	retriever := retrieval.NewStoreRetriever(stack.store, embedder, logger)
	stack.planner = planner.New(retriever, llm, planner.Options{
		TopK:              cfg.Retrieval.TopK,
		Concurrency:       cfg.Retrieval.Concurrency,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, logger)

	return stack, nil
}
