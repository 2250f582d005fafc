// Package server wires the DB Genie pipeline — classifier, context
// assembler, SQL adapter, response composer — together with its
// collaborators (completion provider, relational database, vector index,
// chart renderer, session store) into a ready-to-serve HTTP handler.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dbgenie/dbgenie/internal/api"
	"github.com/dbgenie/dbgenie/internal/api/handlers"
	"github.com/dbgenie/dbgenie/internal/assembler"
	"github.com/dbgenie/dbgenie/internal/composer"
	"github.com/dbgenie/dbgenie/internal/config"
	"github.com/dbgenie/dbgenie/internal/database"
	"github.com/dbgenie/dbgenie/internal/embeddings"
	"github.com/dbgenie/dbgenie/internal/provider"
	"github.com/dbgenie/dbgenie/internal/rag"
	"github.com/dbgenie/dbgenie/internal/sessions"
	"github.com/dbgenie/dbgenie/internal/sqlagent"
	"github.com/dbgenie/dbgenie/internal/telemetry"
	"github.com/dbgenie/dbgenie/internal/vectorstore"
	"github.com/dbgenie/dbgenie/internal/viz"
	"github.com/dbgenie/dbgenie/pkg/contracts"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized DB Genie service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry and closes connections; call it on
	// graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	llm := provider.New(cfg.Provider)
	log.Info().Str("provider", cfg.Provider.Kind).Str("model", cfg.Provider.Model).Msg("Completion provider initialized")

	// The relational database is optional: without it every query routes
	// to document search.
	var db *database.Service
	var sql contracts.SQLService
	if cfg.Database.URL != "" {
		db, err = database.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		sql = sqlagent.New(db, llm)
	} else {
		log.Warn().Msg("No database configured; all queries will route to document search")
	}

	embedder, err := embeddings.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("init embeddings: %w", err)
	}
	vectorDB, err := vectorstore.New(ctx, cfg.Vector.Kind, cfg.Vector.URL, embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	retriever := rag.NewRetriever(embedder, vectorDB)

	charts := viz.NewRenderer()
	store := sessions.NewMemoryStore()

	asm := assembler.New(retriever, sql, charts, cfg.Vector.TopK)
	cmp := composer.New(llm)

	var schemaSource handlers.SchemaSource
	if db != nil {
		schemaSource = db
	}
	h := handlers.New(cfg.Version, store, asm, cmp, sql, schemaSource, charts, retriever)
	router := api.NewRouter(cfg.Version, h)

	shutdown := func(ctx context.Context) error {
		if db != nil {
			db.Close()
		}
		return shutdownTelemetry(ctx)
	}

	return &Server{
		Handler:      router,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
