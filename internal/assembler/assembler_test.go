package assembler_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dbgenie/dbgenie/internal/assembler"
	"github.com/dbgenie/dbgenie/pkg/models"
)

type fakeSearcher struct {
	results []models.SearchResult
	err     error
	lastK   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int) ([]models.SearchResult, error) {
	f.lastK = topK
	return f.results, f.err
}

type fakeSQL struct {
	result *models.SQLResult
	raw    *models.SQLResult
}

func (f *fakeSQL) QueryWithData(ctx context.Context, query string) *models.SQLResult { return f.result }
func (f *fakeSQL) ExecuteRaw(ctx context.Context, sqlQuery string) *models.SQLResult { return f.raw }

type fakeCharts struct {
	desc *models.ChartDescriptor
	err  error
}

func (f *fakeCharts) Render(rows []models.Row, kind, title, x, y string) (*models.ChartDescriptor, error) {
	return f.desc, f.err
}

func passages(texts ...string) []models.SearchResult {
	out := make([]models.SearchResult, len(texts))
	for i, t := range texts {
		out[i] = models.SearchResult{Doc: models.VectorDoc{Content: t}, Score: 0.9}
	}
	return out
}

func TestAssembleDocumentSearch(t *testing.T) {
	searcher := &fakeSearcher{results: passages("remote work is allowed", "laptops are provided")}
	a := assembler.New(searcher, nil, nil, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryDocumentSearch}, "remote work policy")

	if bundle.Text != "remote work is allowed\n\nlaptops are provided" {
		t.Errorf("Text = %q, want passages joined by blank line", bundle.Text)
	}
	if searcher.lastK != 4 {
		t.Errorf("topK = %d, want 4", searcher.lastK)
	}
	if bundle.Chart != nil || bundle.Rows != nil {
		t.Error("document search bundle should carry neither chart nor rows")
	}
}

func TestAssembleDocumentSearchDegrades(t *testing.T) {
	a := assembler.New(&fakeSearcher{err: errors.New("index offline")}, nil, nil, 4)
	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryDocumentSearch}, "policy?")
	if !strings.Contains(bundle.Text, "index offline") {
		t.Errorf("Text = %q, want the failure reported verbatim", bundle.Text)
	}
}

func TestAssembleDatabaseQuery(t *testing.T) {
	sql := &fakeSQL{result: &models.SQLResult{
		Success: true,
		Answer:  "There are 42 employees.",
		Data:    []models.Row{{"n": int64(42)}},
	}}
	a := assembler.New(nil, sql, nil, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryDatabaseQuery}, "how many employees?")

	if bundle.Text != "Database Query Result:\nThere are 42 employees." {
		t.Errorf("Text = %q", bundle.Text)
	}
	if len(bundle.Rows) != 1 {
		t.Errorf("Rows = %v", bundle.Rows)
	}
}

func TestAssembleDatabaseQueryFailure(t *testing.T) {
	sql := &fakeSQL{result: &models.SQLResult{Success: false, Error: "no such table: wages"}}
	a := assembler.New(nil, sql, nil, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryDatabaseQuery}, "average wage?")

	if bundle.Text != "Database query failed: no such table: wages" {
		t.Errorf("Text = %q", bundle.Text)
	}
	if bundle.Rows != nil {
		t.Error("failed query should carry no rows")
	}
}

func TestAssembleVisualization(t *testing.T) {
	sql := &fakeSQL{result: &models.SQLResult{
		Success: true,
		Answer:  "Salaries by department.",
		Data:    []models.Row{{"department": "Eng", "avg": 98000.0}},
	}}
	charts := &fakeCharts{desc: &models.ChartDescriptor{Kind: "bar", ImageBase64: "aGk="}}
	a := assembler.New(nil, sql, charts, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryVisualization, WantsChart: true},
		"plot salaries by department")

	if bundle.Chart == nil || bundle.Chart.Kind != "bar" {
		t.Fatalf("Chart = %+v", bundle.Chart)
	}
	if !strings.Contains(bundle.Text, "bar visualization") {
		t.Errorf("Text = %q", bundle.Text)
	}
	if !strings.Contains(bundle.Text, "Salaries by department.") {
		t.Errorf("Text = %q, want the data summary included", bundle.Text)
	}
}

func TestAssembleVisualizationDegrades(t *testing.T) {
	ctx := context.Background()

	// Chart rendering fails: keep the data summary, drop the chart.
	sql := &fakeSQL{result: &models.SQLResult{
		Success: true, Answer: "One row.", Data: []models.Row{{"a": 1}},
	}}
	a := assembler.New(nil, sql, &fakeCharts{err: errors.New("no numeric column")}, 4)
	bundle := a.Assemble(ctx, models.RoutingDecision{Category: models.CategoryVisualization}, "plot it")
	if bundle.Chart != nil {
		t.Error("Chart should be nil after a render failure")
	}
	if !strings.Contains(bundle.Text, "visualization failed") || !strings.Contains(bundle.Text, "One row.") {
		t.Errorf("Text = %q", bundle.Text)
	}

	// Empty result set: no chart attempt at all.
	sql.result = &models.SQLResult{Success: true, Answer: "Nothing."}
	bundle = a.Assemble(ctx, models.RoutingDecision{Category: models.CategoryVisualization}, "plot it")
	if !strings.Contains(bundle.Text, "Could not retrieve data for visualization") {
		t.Errorf("Text = %q", bundle.Text)
	}
}

func TestAssembleHybrid(t *testing.T) {
	searcher := &fakeSearcher{results: passages("overtime policy text")}
	sql := &fakeSQL{result: &models.SQLResult{Success: true, Answer: "Total overtime is 120 hours."}}
	a := assembler.New(searcher, sql, nil, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryHybrid}, "policy on total overtime")

	want := "Policy Context:\novertime policy text\n\nDatabase Information:\nTotal overtime is 120 hours."
	if bundle.Text != want {
		t.Errorf("Text = %q\nwant %q", bundle.Text, want)
	}
}

func TestAssembleHybridPartialDegrade(t *testing.T) {
	// SQL side fails: the policy block still comes through, and the
	// database block reports the failure instead of going silent.
	searcher := &fakeSearcher{results: passages("policy text")}
	sql := &fakeSQL{result: &models.SQLResult{Success: false, Error: "no such table: employees"}}
	a := assembler.New(searcher, sql, nil, 4)

	bundle := a.Assemble(context.Background(),
		models.RoutingDecision{Category: models.CategoryHybrid}, "how many per policy")

	if !strings.HasPrefix(bundle.Text, "Policy Context:\npolicy text") {
		t.Errorf("Text = %q", bundle.Text)
	}
	if !strings.Contains(bundle.Text, "Database query failed: no such table: employees") {
		t.Errorf("Text = %q, want the database failure reported in its block", bundle.Text)
	}
	if bundle.Rows != nil {
		t.Error("failed database side should carry no rows")
	}
}

func TestAssembleWithoutCollaborators(t *testing.T) {
	a := assembler.New(nil, nil, nil, 0)
	ctx := context.Background()

	for _, cat := range []models.QueryCategory{
		models.CategoryDocumentSearch,
		models.CategoryDatabaseQuery,
		models.CategoryVisualization,
		models.CategoryHybrid,
	} {
		bundle := a.Assemble(ctx, models.RoutingDecision{Category: cat}, "anything")
		if bundle.Text == "" {
			t.Errorf("category %s produced empty context with no collaborators", cat)
		}
	}
}
