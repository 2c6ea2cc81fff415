package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// pgDB is the slice of the pgx pool surface the store needs. pgxmock
// implements it, which keeps the store testable without a database.
type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists chunks in Postgres. Embeddings are stored as REAL[]
// and ranked in process: tenant corpora are a single CV's worth of chunks,
// so shipping them to the ranker is cheaper than carrying a vector-index
// extension.
type PostgresStore struct {
	db  pgDB
	log *zap.Logger
}

var _ schemas.ChunkStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return newPostgresStore(pool, logger)
}

func newPostgresStore(db pgDB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, log: logger.Named("pgstore")}
}

// Migrate creates the chunk table and its tenant index if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cv_chunks (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			section TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding REAL[] NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS cv_chunks_user_idx ON cv_chunks (user_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate chunk schema: %w", err)
	}
	return nil
}

// Upsert inserts or refreshes the tenant's chunks.
func (s *PostgresStore) Upsert(ctx context.Context, userID string, chunks []schemas.Chunk) error {
	for _, c := range chunks {
		_, err := s.db.Exec(ctx, `
			INSERT INTO cv_chunks (id, user_id, section, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				section = EXCLUDED.section,
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding;
		`, c.ID, userID, c.Section, c.Content, c.Embedding)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	s.log.Debug("Chunks upserted", zap.String("user_id", userID), zap.Int("count", len(chunks)))
	return nil
}

// Search loads the tenant's chunks and ranks them against the query vector.
func (s *PostgresStore) Search(ctx context.Context, userID string, query []float32, k int) ([]schemas.Chunk, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, section, content, embedding
		FROM cv_chunks WHERE user_id = $1;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var candidates []schemas.Chunk
	for rows.Next() {
		c := schemas.Chunk{UserID: userID}
		if err := rows.Scan(&c.ID, &c.Section, &c.Content, &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chunk query failed: %w", err)
	}
	return rankBySimilarity(candidates, query, k), nil
}

// Purge removes every chunk held for the tenant.
func (s *PostgresStore) Purge(ctx context.Context, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cv_chunks WHERE user_id = $1;`, userID)
	if err != nil {
		return fmt.Errorf("failed to purge chunks for user %s: %w", userID, err)
	}
	s.log.Debug("Chunks purged", zap.String("user_id", userID), zap.Int64("rows", tag.RowsAffected()))
	return nil
}
