// Package handlers implements the HTTP handlers for the DB Genie API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dbgenie/dbgenie/internal/assembler"
	"github.com/dbgenie/dbgenie/internal/classifier"
	"github.com/dbgenie/dbgenie/internal/composer"
	"github.com/dbgenie/dbgenie/internal/sessions"
	"github.com/dbgenie/dbgenie/pkg/contracts"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SchemaSource exposes the introspected database schema to the HTTP
// surface. *database.Service satisfies it; nil means no database is
// connected.
type SchemaSource interface {
	TableNames() []string
	Schema() models.SchemaDescription
	SchemaDescription() string
	Sample(ctx context.Context, table string, limit int) ([]models.Row, error)
}

// Ingester indexes uploaded document text. *rag.Retriever satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, source, text string) (*models.IngestResult, error)
}

// Handlers carries the wired pipeline collaborators.
type Handlers struct {
	version   string
	sessions  contracts.SessionStore
	assembler *assembler.Assembler
	composer  *composer.Composer
	sql       contracts.SQLService // nil without a database
	db        SchemaSource         // nil without a database
	charts    contracts.ChartRenderer
	ingester  Ingester
}

func New(version string, store contracts.SessionStore, asm *assembler.Assembler, cmp *composer.Composer,
	sql contracts.SQLService, db SchemaSource, charts contracts.ChartRenderer, ingester Ingester) *Handlers {
	return &Handlers{
		version:   version,
		sessions:  store,
		assembler: asm,
		composer:  cmp,
		sql:       sql,
		db:        db,
		charts:    charts,
		ingester:  ingester,
	}
}

func (h *Handlers) hasDatabase() bool { return h.db != nil && h.sql != nil }

// ── Response helpers ────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ── Chat ────────────────────────────────────────────────────

// preparedChat is the result of the shared routing/assembly work done for
// both chat endpoints.
type preparedChat struct {
	request  models.ChatRequest
	history  []models.Turn
	decision models.RoutingDecision
	bundle   *models.ContextBundle
}

// prepareChat validates the request, resolves the session, classifies the
// query, and assembles the context. Validation failures are written to w
// and reported by the false return.
func (h *Handlers) prepareChat(w http.ResponseWriter, r *http.Request) (*preparedChat, bool) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return nil, false
	}

	ctx := r.Context()
	if req.SessionID == "" {
		session, err := h.sessions.Create(ctx)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "create session: "+err.Error())
			return nil, false
		}
		req.SessionID = session.ID
	} else if err := h.sessions.Ensure(ctx, req.SessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "ensure session: "+err.Error())
		return nil, false
	}

	session, err := h.sessions.Get(ctx, req.SessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "load session: "+err.Error())
		return nil, false
	}

	decision := classifier.Classify(req.Message, h.hasDatabase())
	log.Info().
		Str("session_id", req.SessionID).
		Str("query_type", string(decision.Category)).
		Float64("confidence", decision.Confidence).
		Str("reasoning", decision.Rationale).
		Msg("Query routed")

	bundle := h.assembler.Assemble(ctx, decision, req.Message)
	return &preparedChat{
		request:  req,
		history:  session.Turns,
		decision: decision,
		bundle:   bundle,
	}, true
}

// Chat handles POST /chat: one full request/response interaction.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	prep, ok := h.prepareChat(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	reply, err := h.composer.Compose(ctx, prep.bundle, prep.request.Message, prep.history)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	assistantTurn := models.NewTextTurn("assistant", reply.Text)
	if err := h.sessions.AppendTurns(ctx, prep.request.SessionID,
		models.NewTextTurn("user", prep.request.Message), assistantTurn); err != nil {
		log.Error().Err(err).Str("session_id", prep.request.SessionID).Msg("Failed to persist turns")
	}

	resp := models.ChatResponse{
		SessionID: prep.request.SessionID,
		Message:   assistantTurn,
		QueryType: string(prep.decision.Category),
	}
	if reply.Chart != nil {
		resp.Visualization = &models.VisualizationPayload{
			Type:        reply.Chart.Kind,
			ImageBase64: reply.Chart.ImageBase64,
		}
	}
	if len(reply.Rows) > 0 {
		resp.Data = reply.Rows
	}
	respondJSON(w, http.StatusOK, resp)
}

// ChatStream handles POST /chat/stream: the same pipeline with the reply
// streamed as SSE frames. Frame order is visualization (if any), content
// chunks, then a complete marker. The user turn is appended up front; the
// assistant turn only after the stream drained, so an aborted stream never
// records a half answer.
func (h *Handlers) ChatStream(w http.ResponseWriter, r *http.Request) {
	prep, ok := h.prepareChat(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeEvent := func(ev models.StreamEvent) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.sessions.AppendTurns(ctx, prep.request.SessionID,
		models.NewTextTurn("user", prep.request.Message)); err != nil {
		log.Error().Err(err).Msg("Failed to persist user turn")
	}

	if prep.bundle.Chart != nil {
		if err := writeEvent(models.StreamEvent{
			Type: "visualization",
			Data: map[string]string{
				"chart_type":   prep.bundle.Chart.Kind,
				"image_base64": prep.bundle.Chart.ImageBase64,
			},
		}); err != nil {
			return
		}
	}

	reply, err := h.composer.ComposeStream(ctx, prep.bundle, prep.request.Message, prep.history,
		func(chunk *models.StreamChunk) error {
			if chunk.Done || chunk.Content == "" {
				return nil
			}
			return writeEvent(models.StreamEvent{Type: "content", Content: chunk.Content})
		})
	if err != nil {
		log.Warn().Err(err).Msg("Streaming completion failed")
		writeEvent(models.StreamEvent{Type: "error", Content: err.Error()})
		return
	}

	if err := h.sessions.AppendTurns(ctx, prep.request.SessionID,
		models.NewTextTurn("assistant", reply.Text)); err != nil {
		log.Error().Err(err).Msg("Failed to persist assistant turn")
	}

	writeEvent(models.StreamEvent{Type: "complete", QueryType: string(prep.decision.Category)})
}

// ── Sessions ────────────────────────────────────────────────

// CreateSession handles POST /session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Create(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": session.ID})
}

// SessionHistory handles GET /session/{sessionID}/history.
func (h *Handlers) SessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   session.Turns,
	})
}

// ClearSession handles POST /session/{sessionID}/clear.
func (h *Handlers) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Clear(r.Context(), sessionID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			respondError(w, http.StatusNotFound, "session not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Session history cleared successfully"})
}

// DeleteSession handles DELETE /session/{sessionID}.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(r.Context(), sessionID); err != nil && !errors.Is(err, sessions.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}
