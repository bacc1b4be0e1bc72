package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/config"
	"github.com/docent-ai/docent/internal/database"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/session"
)

// app holds the wired application components shared by the serve, ask,
// and ingest commands.
type app struct {
	cfg    *config.Config
	logger log.Logger

	pool     *pgxpool.Pool
	store    *knowledge.Store
	backend  *ollama.Client
	pipeline *ingest.Pipeline
	answerer *rag.Answerer
	sessions *session.Manager
}

// setup loads configuration, migrates the schema, and wires every
// component. Callers must Close the returned app.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger()

	connString := cfg.PostgresConnectionString()
	if err := database.Migrate(connString); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.Open(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store := knowledge.NewStore(pool, cfg.EmbedDimension, logger.With("component", "store"))
	if err := store.Init(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	backend := ollama.New(ollama.Config{
		BaseURL:         cfg.OllamaHost,
		EmbedModel:      cfg.EmbedModel,
		GenerateModel:   cfg.GenerateModel,
		EmbedDimension:  cfg.EmbedDimension,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, logger.With("component", "ollama"))

	splitter, err := chunker.New(chunker.Config{
		MinSize: cfg.ChunkMinSize,
		MaxSize: cfg.ChunkMaxSize,
		Overlap: cfg.ChunkOverlap,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating chunker: %w", err)
	}

	pipeline := ingest.NewPipeline(splitter, backend, store, logger.With("component", "ingest"))

	retriever := rag.NewRetriever(backend, store, cfg.TopK, float64(cfg.MinSimilarity),
		logger.With("component", "retriever"))
	assembler := rag.NewAssembler(rag.NewTokenCounter(), cfg.ContextBudget,
		logger.With("component", "assembler"))
	answerer := rag.NewAnswerer(retriever, assembler, backend,
		logger.With("component", "answerer"))

	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		store:    store,
		backend:  backend,
		pipeline: pipeline,
		answerer: answerer,
		sessions: session.NewManager(),
	}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// newLogger builds the process logger. DEBUG in the environment
// switches to debug level; DOCENT_LOG_JSON switches to JSON output.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("DOCENT_LOG_JSON") != "",
	})
}
