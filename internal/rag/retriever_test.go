package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/dbgenie/dbgenie/internal/vectorstore"
)

// hashEmbedder produces deterministic vectors: texts sharing a keyword get
// similar vectors, so similarity search is exercised without a real model.
type hashEmbedder struct{ batch int }

func (h *hashEmbedder) Kind() string      { return "hash" }
func (h *hashEmbedder) Dimensions() int   { return 3 }
func (h *hashEmbedder) MaxBatchSize() int { return h.batch }

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := []float64{0.1, 0.1, 0.1}
		if strings.Contains(t, "vacation") {
			v[0] = 1
		}
		if strings.Contains(t, "payroll") {
			v[1] = 1
		}
		if strings.Contains(t, "security") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (h *hashEmbedder) HealthCheck(ctx context.Context) error { return nil }

func TestIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewEmbeddedStore()
	r := NewRetriever(&hashEmbedder{batch: 64}, store)

	docs := map[string]string{
		"leave.txt":    "Employees accrue vacation days monthly.",
		"payroll.txt":  "The payroll run happens on the 25th.",
		"security.txt": "Report security incidents within one hour.",
	}
	for source, text := range docs {
		result, err := r.Ingest(ctx, source, text)
		if err != nil {
			t.Fatalf("Ingest(%s) error = %v", source, err)
		}
		if result.ChunksCreated != 1 || result.VectorsStored != 1 {
			t.Errorf("Ingest(%s) = %+v", source, result)
		}
	}

	results, err := r.Search(ctx, "how many vacation days do I get?", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !strings.Contains(results[0].Doc.Content, "vacation") {
		t.Errorf("top result = %q, want the vacation chunk", results[0].Doc.Content)
	}
	if results[0].Doc.Metadata["source"] != "leave.txt" {
		t.Errorf("source metadata = %q, want leave.txt", results[0].Doc.Metadata["source"])
	}
}

func TestIngestBatchesLongDocuments(t *testing.T) {
	ctx := context.Background()
	store := vectorstore.NewEmbeddedStore()
	// Batch size 2 forces multiple embed/upsert rounds.
	r := NewRetriever(&hashEmbedder{batch: 2}, store)

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(strings.Repeat("payroll procedure detail. ", 30))
		b.WriteString("\n\n")
	}

	result, err := r.Ingest(ctx, "handbook.pdf", b.String())
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if result.ChunksCreated < 3 {
		t.Fatalf("ChunksCreated = %d, want several", result.ChunksCreated)
	}
	if result.VectorsStored != result.ChunksCreated {
		t.Errorf("VectorsStored = %d, ChunksCreated = %d", result.VectorsStored, result.ChunksCreated)
	}
	count, _ := store.Count(ctx)
	if count != result.VectorsStored {
		t.Errorf("store count = %d, want %d", count, result.VectorsStored)
	}
}
