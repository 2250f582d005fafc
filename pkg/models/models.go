// Package models defines the shared data model for the DB Genie server:
// routing decisions, context bundles, chat messages, sessions, SQL results,
// chart descriptors, and the vector document types used by the RAG layer.
package models

import "time"

// ── Query Routing ────────────────────────────────────────────

// QueryCategory identifies which data source(s) a query should consult.
type QueryCategory string

const (
	CategoryDocumentSearch QueryCategory = "vector_search"
	CategoryDatabaseQuery  QueryCategory = "sql_query"
	CategoryVisualization  QueryCategory = "visualization"
	CategoryHybrid         QueryCategory = "hybrid"
	CategoryUnknown        QueryCategory = "unknown"
)

// RoutingDecision is the classifier's determination of how to answer a query.
// Produced fresh per query, never mutated.
type RoutingDecision struct {
	Category   QueryCategory `json:"query_type"`
	WantsChart bool          `json:"needs_visualization"`
	Confidence float64       `json:"confidence"`
	Rationale  string        `json:"reasoning"`
}

// ── Conversation ─────────────────────────────────────────────

// ChatMessage is the flat role/content shape sent to completion providers.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ContentItem is one piece of a turn's content array on the wire.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Turn is a single conversation turn as stored in a session and returned
// to API callers: role plus a content array.
type Turn struct {
	Role    string        `json:"role"`
	Content []ContentItem `json:"content"`
}

// NewTextTurn builds a turn with a single text content item.
func NewTextTurn(role, text string) Turn {
	return Turn{Role: role, Content: []ContentItem{{Type: "text", Text: text}}}
}

// Text concatenates the turn's text content items.
func (t Turn) Text() string {
	out := ""
	for _, item := range t.Content {
		if item.Type != "text" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += item.Text
	}
	return out
}

// Flatten converts session turns to the provider's flat message shape.
func Flatten(turns []Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ChatMessage{Role: t.Role, Content: t.Text()})
	}
	return msgs
}

// Session is an append-only log of conversation turns keyed by ID.
type Session struct {
	ID        string    `json:"session_id"`
	Turns     []Turn    `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ── SQL Adapter ──────────────────────────────────────────────

// Row is one record from a SQL query, keyed by column name.
type Row map[string]interface{}

// SQLResult is the combined outcome of natural-language SQL synthesis,
// execution, and answer generation.
type SQLResult struct {
	Success  bool   `json:"success"`
	Data     []Row  `json:"data"`
	Answer   string `json:"answer,omitempty"`
	SQLQuery string `json:"sql_query,omitempty"`
	RowCount int    `json:"row_count,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ColumnSchema describes one column of an introspected table.
type ColumnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableSchema is the introspected shape of one table.
type TableSchema struct {
	Columns     []ColumnSchema `json:"columns"`
	PrimaryKeys []string       `json:"primary_keys"`
}

// SchemaDescription is a read-only snapshot of the database schema,
// keyed by table name.
type SchemaDescription map[string]TableSchema

// ── Context & Charts ─────────────────────────────────────────

// ChartDescriptor is a rendered chart, passed through to the caller
// unchanged.
type ChartDescriptor struct {
	Kind        string `json:"chart_type"`
	ImageBase64 string `json:"image_base64"`
	XField      string `json:"x_column,omitempty"`
	YField      string `json:"y_column,omitempty"`
	Title       string `json:"title,omitempty"`
}

// ContextBundle is the assembled context handed to the response composer
// for one query. Built once, consumed once, then discarded.
type ContextBundle struct {
	Category QueryCategory
	Text     string
	Rows     []Row
	Chart    *ChartDescriptor
}

// Reply is the composed answer for one query.
type Reply struct {
	Text  string
	Chart *ChartDescriptor
	Rows  []Row
}

// ── Streaming ────────────────────────────────────────────────

// StreamChunk is a single token/event from a streaming completion.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// StreamEvent is one SSE frame of the /chat/stream response.
type StreamEvent struct {
	Type      string      `json:"type"` // "visualization", "content", "complete", "error"
	Content   string      `json:"content,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	QueryType string      `json:"query_type,omitempty"`
}

// ── HTTP API ─────────────────────────────────────────────────

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// VisualizationPayload is the chart block of a chat response.
type VisualizationPayload struct {
	Type        string `json:"type"`
	HTML        string `json:"html,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	SessionID     string                `json:"session_id"`
	Message       Turn                  `json:"message"`
	Visualization *VisualizationPayload `json:"visualization,omitempty"`
	QueryType     string                `json:"query_type,omitempty"`
	Data          []Row                 `json:"data,omitempty"`
}

// ── Vector Documents ─────────────────────────────────────────

// VectorDoc is a document chunk stored in the vector index.
type VectorDoc struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Vector    []float64         `json:"vector"`
	CreatedAt time.Time         `json:"created_at"`
}

// SearchResult is a single similarity search result.
type SearchResult struct {
	Doc   VectorDoc `json:"doc"`
	Score float64   `json:"score"`
}

// IngestResult summarizes one document ingestion run.
type IngestResult struct {
	DocumentsProcessed int `json:"documents_processed"`
	ChunksCreated      int `json:"chunks_created"`
	VectorsStored      int `json:"vectors_stored"`
}
