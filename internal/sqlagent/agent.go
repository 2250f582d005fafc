// Package sqlagent turns natural-language questions into executable SELECT
// statements, runs them, and summarizes the results.
package sqlagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/rs/zerolog/log"
)

// Store is the relational backend the agent runs against.
// *database.Service satisfies it.
type Store interface {
	SchemaDescription() string
	Execute(ctx context.Context, query string) ([]models.Row, error)
}

const sqlPrompt = `You are an expert SQL developer. Generate a single SQL SELECT statement that answers the question below.

Database schema:
%s

Question: %s

Rules:
- Return ONLY the SQL statement, no explanation.
- The statement must be a SELECT.
- Use only tables and columns from the schema above.`

const answerPrompt = `Answer the question below in one or two sentences, based only on the query results.

Question: %s

SQL query: %s

Results (%d rows total, showing up to %d):
%s`

// answerSampleRows caps how many result rows are shown to the model when
// synthesizing the natural-language answer.
const answerSampleRows = 5

// Agent is the SQL synthesis adapter: completion-backed SQL generation over
// an introspected schema, execution, and answer synthesis.
type Agent struct {
	db  Store
	llm contracts.CompletionService
}

var _ contracts.SQLService = (*Agent)(nil)

func New(db Store, llm contracts.CompletionService) *Agent {
	return &Agent{db: db, llm: llm}
}

// GenerateSQL asks the completion provider for a SELECT statement answering
// the question against the introspected schema. Markdown code fences are
// stripped from the reply; the remainder is used verbatim.
func (a *Agent) GenerateSQL(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(sqlPrompt, a.db.SchemaDescription(), question)
	raw, err := a.llm.Complete(ctx, []models.ChatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}
	sqlQuery := stripFences(raw)
	if !strings.HasPrefix(strings.ToUpper(sqlQuery), "SELECT") {
		return "", fmt.Errorf("generated statement is not a SELECT: %.80s", sqlQuery)
	}
	return sqlQuery, nil
}

// stripFences removes a surrounding markdown code fence (``` or ```sql)
// from a model reply.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language tag on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " ('\"") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// isUnknownFunctionError matches the dialect error class raised when SQL
// generated for another dialect uses a function SQLite lacks.
func isUnknownFunctionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such function") ||
		strings.Contains(msg, "unknown function") ||
		strings.Contains(msg, "does not exist")
}

// Execute runs a generated statement. If it fails with an unknown-function
// error and contains a CONCAT call, the statement is rewritten to use the
// || operator and retried exactly once.
func (a *Agent) Execute(ctx context.Context, sqlQuery string) ([]models.Row, string, error) {
	rows, err := a.db.Execute(ctx, sqlQuery)
	if err == nil {
		return rows, sqlQuery, nil
	}
	if !isUnknownFunctionError(err) || !strings.Contains(strings.ToLower(sqlQuery), "concat") {
		return nil, sqlQuery, err
	}

	rewritten := rewriteConcat(sqlQuery)
	log.Debug().Str("original", sqlQuery).Str("rewritten", rewritten).Msg("Retrying with dialect-rewritten SQL")
	rows, retryErr := a.db.Execute(ctx, rewritten)
	if retryErr != nil {
		return nil, rewritten, fmt.Errorf("after dialect rewrite: %w", retryErr)
	}
	return rows, rewritten, nil
}

// QueryWithData runs the full generate → execute → summarize pipeline.
// It never returns an error; failures are reported in the result so callers
// can degrade instead of aborting the conversation.
func (a *Agent) QueryWithData(ctx context.Context, query string) *models.SQLResult {
	sqlQuery, err := a.GenerateSQL(ctx, query)
	if err != nil {
		return &models.SQLResult{Success: false, Error: err.Error()}
	}

	rows, executed, err := a.Execute(ctx, sqlQuery)
	if err != nil {
		log.Warn().Str("sql", executed).Err(err).Msg("SQL execution failed")
		return &models.SQLResult{Success: false, SQLQuery: executed, Error: err.Error()}
	}

	answer, err := a.synthesizeAnswer(ctx, query, executed, rows)
	if err != nil {
		// The data is good even if summarization failed; fall back to a
		// row-count answer.
		log.Warn().Err(err).Msg("Answer synthesis failed")
		answer = fmt.Sprintf("The query returned %d rows.", len(rows))
	}

	return &models.SQLResult{
		Success:  true,
		Data:     rows,
		Answer:   answer,
		SQLQuery: executed,
		RowCount: len(rows),
	}
}

// ExecuteRaw runs caller-supplied SQL behind the denylist guard. Like
// QueryWithData it reports failures in the result rather than as errors;
// callers map a guard refusal to their own rejection status.
func (a *Agent) ExecuteRaw(ctx context.Context, sqlQuery string) *models.SQLResult {
	if err := CheckRawSQL(sqlQuery); err != nil {
		return &models.SQLResult{Success: false, SQLQuery: sqlQuery, Error: err.Error()}
	}
	rows, err := a.db.Execute(ctx, sqlQuery)
	if err != nil {
		return &models.SQLResult{Success: false, SQLQuery: sqlQuery, Error: err.Error()}
	}
	return &models.SQLResult{Success: true, Data: rows, SQLQuery: sqlQuery, RowCount: len(rows)}
}

func (a *Agent) synthesizeAnswer(ctx context.Context, question, sqlQuery string, rows []models.Row) (string, error) {
	sample := rows
	if len(sample) > answerSampleRows {
		sample = sample[:answerSampleRows]
	}
	var b strings.Builder
	for _, row := range sample {
		fmt.Fprintf(&b, "%v\n", row)
	}
	prompt := fmt.Sprintf(answerPrompt, question, sqlQuery, len(rows), answerSampleRows, b.String())
	return a.llm.Complete(ctx, []models.ChatMessage{{Role: "user", Content: prompt}})
}
