// Package assembler builds the context handed to the response composer:
// given a routing decision it consults document search and/or the SQL
// adapter and concatenates the results into one context bundle.
//
// No collaborator failure escapes Assemble. Every error is converted into
// explanatory context text so the conversation still gets an answer; only
// caller-input validation is rejected upstream of this package.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/rs/zerolog/log"
)

// Assembler fans a query out to the data sources chosen by the classifier.
type Assembler struct {
	searcher contracts.DocumentSearcher
	sql      contracts.SQLService
	charts   contracts.ChartRenderer
	topK     int
}

// New wires the assembler. searcher and sql may be nil when the backing
// store is not configured; affected categories degrade to explanatory text.
func New(searcher contracts.DocumentSearcher, sql contracts.SQLService, charts contracts.ChartRenderer, topK int) *Assembler {
	if topK <= 0 {
		topK = 4
	}
	return &Assembler{searcher: searcher, sql: sql, charts: charts, topK: topK}
}

// Assemble builds the context bundle for one query.
func (a *Assembler) Assemble(ctx context.Context, decision models.RoutingDecision, query string) *models.ContextBundle {
	bundle := &models.ContextBundle{Category: decision.Category}

	switch decision.Category {
	case models.CategoryDatabaseQuery:
		a.assembleDatabase(ctx, bundle, query)
	case models.CategoryVisualization:
		a.assembleVisualization(ctx, bundle, query)
	case models.CategoryHybrid:
		a.assembleHybrid(ctx, bundle, query)
	default:
		// Document search, and the fallback for anything unrecognized.
		bundle.Text = a.searchDocuments(ctx, query)
	}
	return bundle
}

// searchDocuments returns the top-k passages joined by blank lines, or a
// degraded description of the failure.
func (a *Assembler) searchDocuments(ctx context.Context, query string) string {
	if a.searcher == nil {
		return "No policy documents are indexed yet."
	}
	results, err := a.searcher.Search(ctx, query, a.topK)
	if err != nil {
		log.Warn().Err(err).Msg("Document search failed")
		return fmt.Sprintf("Document search failed: %v", err)
	}
	if len(results) == 0 {
		return "No relevant policy documents were found."
	}
	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Doc.Content
	}
	return strings.Join(passages, "\n\n")
}

func (a *Assembler) assembleDatabase(ctx context.Context, bundle *models.ContextBundle, query string) {
	if a.sql == nil {
		bundle.Text = "No database is connected."
		return
	}
	result := a.sql.QueryWithData(ctx, query)
	if !result.Success {
		bundle.Text = fmt.Sprintf("Database query failed: %s", result.Error)
		return
	}
	bundle.Text = fmt.Sprintf("Database Query Result:\n%s", result.Answer)
	bundle.Rows = result.Data
}

func (a *Assembler) assembleVisualization(ctx context.Context, bundle *models.ContextBundle, query string) {
	if a.sql == nil {
		bundle.Text = "No database is connected, so there is no data to visualize."
		return
	}
	result := a.sql.QueryWithData(ctx, query)
	if !result.Success || len(result.Data) == 0 {
		reason := result.Error
		if reason == "" {
			reason = "query returned no rows"
		}
		bundle.Text = fmt.Sprintf("Could not retrieve data for visualization: %s", reason)
		return
	}
	bundle.Rows = result.Data

	chart, err := a.charts.Render(result.Data, "auto", query, "", "")
	if err != nil {
		log.Warn().Err(err).Msg("Chart rendering failed")
		bundle.Text = fmt.Sprintf("Data retrieved but visualization failed: %v\n\nData: %s", err, result.Answer)
		return
	}
	bundle.Chart = chart
	bundle.Text = fmt.Sprintf("I've generated a %s visualization based on your query.\n\nData summary: %s", chart.Kind, result.Answer)
}

func (a *Assembler) assembleHybrid(ctx context.Context, bundle *models.ContextBundle, query string) {
	policyContext := a.searchDocuments(ctx, query)

	sqlContext := "No database is connected."
	if a.sql != nil {
		result := a.sql.QueryWithData(ctx, query)
		if result.Success {
			sqlContext = result.Answer
			bundle.Rows = result.Data
		} else {
			sqlContext = fmt.Sprintf("Database query failed: %s", result.Error)
		}
	}

	bundle.Text = fmt.Sprintf("Policy Context:\n%s\n\nDatabase Information:\n%s", policyContext, sqlContext)
}
