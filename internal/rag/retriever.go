package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Retriever runs similarity search over the indexed documents and ingests
// new ones. Implements contracts.DocumentSearcher.
type Retriever struct {
	embeddings contracts.EmbeddingDriver
	vectorDB   contracts.VectorStoreDriver
	chunker    ChunkerConfig
}

var _ contracts.DocumentSearcher = (*Retriever)(nil)

func NewRetriever(emb contracts.EmbeddingDriver, vs contracts.VectorStoreDriver) *Retriever {
	return &Retriever{embeddings: emb, vectorDB: vs, chunker: DefaultChunkerConfig()}
}

// Search embeds the query and returns the topK most similar chunks.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	start := time.Now()
	vectors, err := r.embeddings.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	if topK <= 0 {
		topK = 5
	}

	results, err := r.vectorDB.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	log.Debug().Int("results", len(results)).Dur("elapsed", time.Since(start)).Msg("Document search complete")
	return results, nil
}

// Ingest chunks a document, embeds the chunks in batches, and upserts them
// into the vector store. source labels where the text came from (file name)
// and is carried in chunk metadata.
func (r *Retriever) Ingest(ctx context.Context, source, text string) (*models.IngestResult, error) {
	chunks := ChunkText(text, r.chunker)

	batchSize := r.embeddings.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 64
	}

	stored := 0
	for from := 0; from < len(chunks); from += batchSize {
		to := from + batchSize
		if to > len(chunks) {
			to = len(chunks)
		}
		batch := chunks[from:to]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := r.embeddings.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors))
		}

		docs := make([]models.VectorDoc, len(batch))
		for i, c := range batch {
			docs[i] = models.VectorDoc{
				ID:      uuid.NewString(),
				Content: c.Text,
				Metadata: map[string]string{
					"source":      source,
					"chunk_index": fmt.Sprintf("%d", c.Index),
				},
				Vector: vectors[i],
			}
		}
		if err := r.vectorDB.Upsert(ctx, docs); err != nil {
			return nil, fmt.Errorf("upsert chunks: %w", err)
		}
		stored += len(docs)
	}

	log.Info().Str("source", source).Int("chunks", len(chunks)).Msg("Document ingested")
	return &models.IngestResult{
		DocumentsProcessed: 1,
		ChunksCreated:      len(chunks),
		VectorsStored:      stored,
	}, nil
}
