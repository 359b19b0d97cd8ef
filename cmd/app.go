package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/courserag/pkg/config"
	"github.com/xhad/courserag/pkg/llm"
	"github.com/xhad/courserag/pkg/loader"
	"github.com/xhad/courserag/pkg/processor"
	"github.com/xhad/courserag/pkg/rag"
	"github.com/xhad/courserag/pkg/session"
	"github.com/xhad/courserag/pkg/store"
)

type app struct {
	config *config.Config
	logger *slog.Logger
	model  llms.Model
	store  *store.VectorStore
	system *rag.System
}

type appOptions struct {
	configPath string
	onProgress func(source string)
}

func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	storeConfig := store.VectorStoreConfig{
		MaxResults: cfg.Search.MaxResults,
		BatchSize:  cfg.Database.BatchSize,
		RateLimit:  cfg.Ingest.RateLimit,
	}
	var vs *store.VectorStore
	if cfg.Database.URL == "" {
		logger.Info("using in-memory vector store")
		vs = store.NewMemory(storeConfig, embedder, cfg.Database.VectorDim)
	} else {
		vs, err = store.NewPostgres(ctx, store.PostgresConfig{
			ConnString:   cfg.Database.URL,
			CatalogTable: cfg.Database.CatalogTable,
			ContentTable: cfg.Database.ContentTable,
			VectorDim:    cfg.Database.VectorDim,
		}, storeConfig, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}

	model, err := llm.NewModel(llm.ModelConfig{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		vs.Close()
		return nil, err
	}

	system, err := rag.NewWithConfig(rag.SystemConfig{
		Processor: processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:    cfg.Processor.ChunkSize,
			ChunkOverlap: cfg.Processor.ChunkOverlap,
		}),
		Store: vs,
		Generator: llm.NewGenerator(model, llm.GeneratorConfig{
			MaxTokens:     cfg.LLM.MaxTokens,
			Temperature:   cfg.LLM.Temperature,
			MaxToolRounds: cfg.LLM.MaxToolRounds,
			Logger:        logger,
		}),
		Sessions: session.NewManager(cfg.Session.MaxHistory),
		Loader: loader.NewWithConfig(loader.LoaderConfig{
			AllowedExtensions: cfg.Ingest.AllowedExtensions,
			IgnorePatterns:    cfg.Ingest.IgnorePatterns,
			OnProgress:        opts.onProgress,
		}),
		Logger: logger,
	})
	if err != nil {
		vs.Close()
		return nil, err
	}

	return &app{
		config: cfg,
		logger: logger,
		model:  model,
		store:  vs,
		system: system,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}
