// Package vectorstore provides the vector index drivers: an in-memory
// embedded store for development and a pgvector-backed store for
// production.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/dbgenie/dbgenie/pkg/contracts"
)

// New constructs a vector store driver by kind ("embedded" or "pgvector").
func New(ctx context.Context, kind, url string, dimensions int) (contracts.VectorStoreDriver, error) {
	switch kind {
	case "", "embedded":
		return NewEmbeddedStore(), nil
	case "pgvector":
		if url == "" {
			return nil, fmt.Errorf("pgvector store requires a connection URL")
		}
		return NewPgvectorStore(ctx, url, dimensions)
	default:
		return nil, fmt.Errorf("unknown vector store kind: %s", kind)
	}
}
