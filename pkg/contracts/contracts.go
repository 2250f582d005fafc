// Package contracts defines the service interfaces between the pipeline
// stages of the DB Genie server.
//
// The pipeline (classify → assemble → compose) only sees these interfaces,
// so every collaborator — the completion provider, the relational database,
// the vector index, the chart renderer, the session store — is a swappable
// concern wired together in pkg/server.
package contracts

import (
	"context"

	"github.com/dbgenie/dbgenie/pkg/models"
)

// ── Completion Provider ─────────────────────────────────────

// CompletionService sends chat messages to a completion provider.
type CompletionService interface {
	// Complete returns the full completion text for the given messages.
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)

	// CompleteStream streams the completion incrementally. The callback is
	// invoked once per chunk; a chunk with Done=true terminates the stream.
	// Returns the full drained text.
	CompleteStream(ctx context.Context, messages []models.ChatMessage, fn func(*models.StreamChunk) error) (string, error)
}

// ── Embeddings & Vector Store ───────────────────────────────

// EmbeddingDriver generates vector embeddings for text.
type EmbeddingDriver interface {
	Kind() string
	Dimensions() int
	MaxBatchSize() int
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	HealthCheck(ctx context.Context) error
}

// VectorStoreDriver stores and searches vector documents.
type VectorStoreDriver interface {
	Kind() string
	Upsert(ctx context.Context, docs []models.VectorDoc) error
	Search(ctx context.Context, vector []float64, topK int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// DocumentSearcher runs document similarity search for a text query.
// Implemented by the RAG retriever (embed query → vector search).
type DocumentSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error)
}

// ── SQL Adapter ─────────────────────────────────────────────

// SQLService converts natural language to SQL, executes it, and
// synthesizes an answer. Never returns an error: failures are reported
// in SQLResult.Error so callers can degrade instead of aborting.
type SQLService interface {
	QueryWithData(ctx context.Context, query string) *models.SQLResult
	ExecuteRaw(ctx context.Context, sqlQuery string) *models.SQLResult
}

// ── Charts ──────────────────────────────────────────────────

// ChartRenderer turns query rows into a rendered chart descriptor.
type ChartRenderer interface {
	// Render builds a chart from rows. kind may be "auto", "bar", "line"
	// or "pie"; empty x/y columns are auto-detected.
	Render(rows []models.Row, kind, title, xColumn, yColumn string) (*models.ChartDescriptor, error)
}

// ── Sessions ────────────────────────────────────────────────

// SessionStore is a caller-scoped, append-only conversation log keyed by
// session ID. AppendTurns must be atomic per key so that concurrent
// requests on the same session cannot interleave their (user, assistant)
// turn pairs.
type SessionStore interface {
	Create(ctx context.Context) (*models.Session, error)
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Ensure(ctx context.Context, sessionID string) error
	AppendTurns(ctx context.Context, sessionID string, turns ...models.Turn) error
	Clear(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}
