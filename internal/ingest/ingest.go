package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// Pipeline chunks a document, embeds every chunk and upserts the result into
// the tenant's slice of the store.
type Pipeline struct {
	store    schemas.ChunkStore
	embedder schemas.Embedder
	chunker  Chunker
	logger   *zap.Logger

	// Replace purges the tenant's existing chunks before indexing, so a
	// re-uploaded CV fully supersedes the old one.
	Replace bool
	// Concurrency bounds the number of in-flight embedding calls.
	Concurrency int
}

var _ schemas.Ingestor = (*Pipeline)(nil)

// NewPipeline wires a chunking pipeline. A nil logger is replaced with a nop.
func NewPipeline(store schemas.ChunkStore, embedder schemas.Embedder, chunker Chunker, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:       store,
		embedder:    embedder,
		chunker:     chunker,
		logger:      logger.Named("ingest"),
		Replace:     true,
		Concurrency: 4,
	}
}

// acceptedExtensions lists the document formats the pipeline reads directly.
// PDFs must pass through an external converter first; layout extraction is
// not this system's job.
var acceptedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	"":          true,
}

// Ingest indexes one document for the tenant and returns the number of
// chunks stored.
func (p *Pipeline) Ingest(ctx context.Context, userID, filename string, content []byte) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("a user id is required to scope the index")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !acceptedExtensions[ext] {
		return 0, fmt.Errorf("unsupported document format %q: convert to markdown or plain text first", ext)
	}

	sections := p.chunker.Split(string(content))
	if len(sections) == 0 {
		return 0, fmt.Errorf("document %q produced no indexable content", filename)
	}
	p.logger.Info("Chunked document",
		zap.String("user_id", userID),
		zap.String("file", filename),
		zap.Int("chunks", len(sections)))

	chunks := make([]schemas.Chunk, len(sections))
	limit := p.Concurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, sec := range sections {
		g.Go(func() error {
			text := sec.Content
			if sec.Heading != "" {
				// The heading carries the semantic frame ("Experience",
				// "Education"); embedding it with the body keeps queries
				// like "what is the candidate's experience" anchored.
				text = sec.Heading + "\n" + sec.Content
			}
			vector, err := p.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			chunks[i] = schemas.Chunk{
				ID:        uuid.New().String(),
				UserID:    userID,
				Section:   sec.Heading,
				Content:   sec.Content,
				Embedding: vector,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if p.Replace {
		if err := p.store.Purge(ctx, userID); err != nil {
			return 0, fmt.Errorf("failed to purge previous index: %w", err)
		}
	}
	if err := p.store.Upsert(ctx, userID, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	p.logger.Info("Document indexed", zap.String("user_id", userID), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}
