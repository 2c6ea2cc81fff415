package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// DefaultTopK mirrors the planner's default context budget per field.
const DefaultTopK = 3

// StoreRetriever answers text queries by embedding them and searching the
// chunk store.
type StoreRetriever struct {
	store    schemas.ChunkStore
	embedder schemas.Embedder
	log      *zap.Logger
}

var _ schemas.Retriever = (*StoreRetriever)(nil)

// NewStoreRetriever wires a retriever over the given store and embedder.
func NewStoreRetriever(store schemas.ChunkStore, embedder schemas.Embedder, logger *zap.Logger) *StoreRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreRetriever{store: store, embedder: embedder, log: logger.Named("retriever")}
}

// Retrieve embeds the query and returns the tenant's k best chunks.
func (r *StoreRetriever) Retrieve(ctx context.Context, userID, query string, k int) ([]schemas.Chunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	chunks, err := r.store.Search(ctx, userID, vector, k)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	r.log.Debug("Query answered",
		zap.String("user_id", userID),
		zap.String("query", query),
		zap.Int("hits", len(chunks)))
	return chunks, nil
}
