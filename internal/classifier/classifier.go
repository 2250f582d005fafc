// Package classifier routes natural-language queries to a data source.
//
// Classification is a fixed, ordered decision table over case-insensitive
// keyword membership — no model calls, no side effects. The precedence
// (visualization, hybrid, policy, sql, default-to-database, fallback) is
// contractual: reordering the rules changes results wherever the keyword
// sets overlap.
package classifier

import (
	"strings"

	"github.com/dbgenie/dbgenie/pkg/models"
)

var sqlKeywords = []string{
	"how many", "count", "total", "average", "sum",
	"maximum", "minimum", "list all", "show all", "find all", "get all",
	"employees", "leaves", "departments", "records",
	"calculate", "statistics", "report", "aggregate",
	"top", "bottom", "highest", "lowest", "most", "least",
}

var vizKeywords = []string{
	"plot", "chart", "graph", "visualize", "visualise", "draw",
	"show graph", "show chart", "show plot", "display chart",
	"bar chart", "line chart", "pie chart",
	"create a chart", "generate a plot", "generate a chart",
}

var policyKeywords = []string{
	"policy", "policies", "document", "guideline", "procedure",
	"rule", "regulation", "handbook", "manual",
}

// rule is one row of the decision table, evaluated top-down; first match wins.
type rule struct {
	matches    func(viz, sql, policy, hasDB bool) bool
	category   models.QueryCategory
	wantsChart bool
	confidence float64
	rationale  string
}

var rules = []rule{
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return viz && hasDB },
		category:   models.CategoryVisualization,
		wantsChart: true,
		confidence: 0.95,
		rationale:  "Explicit visualization requested",
	},
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return policy && sql },
		category:   models.CategoryHybrid,
		confidence: 0.7,
		rationale:  "Both policy and data query",
	},
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return policy },
		category:   models.CategoryDocumentSearch,
		confidence: 0.9,
		rationale:  "Policy/document search",
	},
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return sql && hasDB },
		category:   models.CategoryDatabaseQuery,
		confidence: 0.85,
		rationale:  "Database query",
	},
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return hasDB },
		category:   models.CategoryDatabaseQuery,
		confidence: 0.5,
		rationale:  "Default to database",
	},
	{
		matches:    func(viz, sql, policy, hasDB bool) bool { return true },
		category:   models.CategoryDocumentSearch,
		confidence: 0.8,
		rationale:  "Fallback to document search",
	},
}

// Classify maps a raw query to a routing decision. Deterministic given the
// fixed keyword lists; an empty query falls to the default-to-database or
// fallback rule depending on hasDatabase.
func Classify(query string, hasDatabase bool) models.RoutingDecision {
	lower := strings.ToLower(query)

	viz := containsAny(lower, vizKeywords)
	sql := containsAny(lower, sqlKeywords)
	policy := containsAny(lower, policyKeywords)

	for _, r := range rules {
		if r.matches(viz, sql, policy, hasDatabase) {
			return models.RoutingDecision{
				Category:   r.category,
				WantsChart: viz && r.wantsChart,
				Confidence: r.confidence,
				Rationale:  r.rationale,
			}
		}
	}

	// Unreachable: the last rule always matches.
	return models.RoutingDecision{Category: models.CategoryUnknown}
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
