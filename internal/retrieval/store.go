// Package retrieval owns the CV fact index: tenant-scoped chunk storage and
// similarity search over chunk embeddings. Two store implementations share
// the schemas.ChunkStore contract: an ephemeral in-memory store for tests
// and single-shot runs, and a Postgres-backed store for a long-lived
// backend.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// InMemoryStore keeps every tenant's chunks in process memory. Search ranks
// by cosine similarity. Safe for concurrent use.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string][]schemas.Chunk
	log    *zap.Logger
}

var _ schemas.ChunkStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(logger *zap.Logger) *InMemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryStore{
		chunks: make(map[string][]schemas.Chunk),
		log:    logger.Named("memstore"),
	}
}

// Upsert appends or replaces chunks for the tenant, keyed by chunk ID.
func (s *InMemoryStore) Upsert(ctx context.Context, userID string, chunks []schemas.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.chunks[userID]
	byID := make(map[string]int, len(existing))
	for i, c := range existing {
		byID[c.ID] = i
	}
	for _, c := range chunks {
		c.UserID = userID
		if i, ok := byID[c.ID]; ok {
			existing[i] = c
			continue
		}
		byID[c.ID] = len(existing)
		existing = append(existing, c)
	}
	s.chunks[userID] = existing
	s.log.Debug("Chunks upserted", zap.String("user_id", userID), zap.Int("count", len(chunks)))
	return nil
}

// Search returns the tenant's k most similar chunks, best first.
func (s *InMemoryStore) Search(ctx context.Context, userID string, query []float32, k int) ([]schemas.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankBySimilarity(s.chunks[userID], query, k), nil
}

// Purge drops every chunk held for the tenant.
func (s *InMemoryStore) Purge(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, userID)
	return nil
}

// rankBySimilarity scores candidates against the query vector and keeps the
// top k. Chunks whose embedding dimension does not match the query are
// skipped rather than scored garbage.
func rankBySimilarity(candidates []schemas.Chunk, query []float32, k int) []schemas.Chunk {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	type scored struct {
		chunk schemas.Chunk
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		score, err := cosineSimilarity(query, c.Embedding)
		if err != nil {
			continue
		}
		ranked = append(ranked, scored{chunk: c, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]schemas.Chunk, k)
	for i := range out {
		out[i] = ranked[i].chunk
	}
	return out
}

// cosineSimilarity computes the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions do not match: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cannot score a zero vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
