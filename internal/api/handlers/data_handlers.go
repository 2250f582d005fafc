package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dbgenie/dbgenie/internal/docs"
	"github.com/dbgenie/dbgenie/internal/sqlagent"
	"github.com/dbgenie/dbgenie/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes caps PDF uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// DatabaseSchema handles GET /database/schema.
func (h *Handlers) DatabaseSchema(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tables":      h.db.TableNames(),
		"schema":      h.db.Schema(),
		"description": h.db.SchemaDescription(),
	})
}

// TableSample handles GET /database/tables/{table}/sample.
func (h *Handlers) TableSample(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}
	table := chi.URLParam(r, "table")
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.db.Sample(r.Context(), table, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"table":     table,
		"data":      rows,
		"row_count": len(rows),
	})
}

// RawSQL handles POST /query/sql: caller-supplied SQL behind the denylist
// guard. Refused statements get 403; execution errors get 400.
func (h *Handlers) RawSQL(w http.ResponseWriter, r *http.Request) {
	if h.sql == nil {
		respondError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if err := sqlagent.CheckRawSQL(req.Query); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	result := h.sql.ExecuteRaw(r.Context(), req.Query)
	if !result.Success {
		respondError(w, http.StatusBadRequest, result.Error)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Visualize handles POST /visualize: chart rendering over caller-provided
// rows, independent of the chat pipeline.
func (h *Handlers) Visualize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data    []models.Row `json:"data"`
		Kind    string       `json:"chart_type"`
		Title   string       `json:"title"`
		XColumn string       `json:"x_column"`
		YColumn string       `json:"y_column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Data) == 0 {
		respondError(w, http.StatusBadRequest, "data is required")
		return
	}

	desc, err := h.charts.Render(req.Data, req.Kind, req.Title, req.XColumn, req.YColumn)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"chart_type":   desc.Kind,
		"image_base64": desc.ImageBase64,
		"x_column":     desc.XField,
		"y_column":     desc.YField,
		"title":        desc.Title,
	})
}

// UploadPDF handles POST /upload-pdf: multipart upload of a policy PDF,
// extracted and indexed into the vector store.
func (h *Handlers) UploadPDF(w http.ResponseWriter, r *http.Request) {
	if h.ingester == nil {
		respondError(w, http.StatusServiceUnavailable, "document indexing not available")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		respondError(w, http.StatusBadRequest, "only PDF files are allowed")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "read upload: "+err.Error())
		return
	}
	text, err := docs.ExtractPDFText(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ingester.Ingest(r.Context(), header.Filename, text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("file", header.Filename).Int("chunks", result.ChunksCreated).Msg("PDF indexed")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "PDF '" + header.Filename + "' successfully ingested",
		"chunks_created": result.ChunksCreated,
		"vectors_stored": result.VectorsStored,
	})
}
