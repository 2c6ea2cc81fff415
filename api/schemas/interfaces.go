package schemas

import "context"

// PageSession is the executor-side contract: a live document that can be
// snapshotted and mutated. Implementations must serialize Snapshot and Apply
// so at most one exchange is in flight per document context.
type PageSession interface {
	// Snapshot returns the serialized markup of the current document body.
	// Read-only; two calls with no intervening mutation return identical
	// markup.
	Snapshot(ctx context.Context) (string, error)
	// Apply executes the batch in order against the live document and
	// returns once every action has been attempted. Missing elements are
	// skipped silently; Apply never fails for a per-action lookup miss.
	Apply(ctx context.Context, batch []FillAction) (ExecutionResult, error)
}

// ActionPlanner is the reasoning boundary: page structure plus tenant id in,
// ordered action batch out. An empty batch means no fillable fields.
type ActionPlanner interface {
	PlanActions(ctx context.Context, req GenerateActionsRequest) ([]FillAction, error)
}

// Chunk is one indexed CV fragment with its embedding vector.
type Chunk struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Section   string    `json:"section,omitempty"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// ChunkStore persists CV chunks per tenant and answers ranked similarity
// queries against them.
type ChunkStore interface {
	// Upsert replaces or extends the tenant's indexed chunks.
	Upsert(ctx context.Context, userID string, chunks []Chunk) error
	// Search returns up to k chunks for the tenant ranked by similarity to
	// the query vector, best first.
	Search(ctx context.Context, userID string, query []float32, k int) ([]Chunk, error)
	// Purge removes every chunk indexed for the tenant.
	Purge(ctx context.Context, userID string) error
}

// Embedder turns text into a fixed-size embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever answers a natural-language query with the tenant's most relevant
// CV chunks.
type Retriever interface {
	Retrieve(ctx context.Context, userID, query string, k int) ([]Chunk, error)
}

// LLMClient is the minimal generation contract the planner needs.
type LLMClient interface {
	// Generate sends a system instruction and a user prompt and returns the
	// model's text response.
	Generate(ctx context.Context, system, prompt string) (string, error)
	Close() error
}

// Ingestor indexes one CV document (markdown or plain text) for a tenant.
type Ingestor interface {
	// Ingest chunks, embeds and stores the document, returning the number
	// of chunks indexed.
	Ingest(ctx context.Context, userID, filename string, content []byte) (int, error)
}
