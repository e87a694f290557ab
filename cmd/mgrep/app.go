package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/mgrep/internal/config"
	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/indexer"
	"github.com/dshills/mgrep/internal/lifecycle"
	"github.com/dshills/mgrep/internal/searcher"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/internal/vision"
)

// app holds the wired components for one command invocation. The indexer
// and the searcher share a single embedder and its cache.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	embedder  embedder.Embedder
	lifecycle *lifecycle.Manager
	indexer   *indexer.Indexer
	searcher  *searcher.Searcher
}

// newApp opens the store and builds every component. With ensure set the
// collection is created if missing and checked against the embedder.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, ensure bool) (*app, error) {
	store, err := storage.Open(cfg.Store.Backend, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig(), logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	describer, err := vision.FromConfig(cfg.VisionConfig(), logger)
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vision: %w", err)
	}

	collection := cfg.Store.Collection
	a := &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		embedder:  emb,
		lifecycle: lifecycle.New(store, emb, collection, logger),
		indexer: indexer.New(indexer.Deps{
			Store:     store,
			Embedder:  emb,
			Describer: describer,
			Logger:    logger,
		}, collection),
		searcher: searcher.New(store, emb, collection, cfg.SearcherConfig(), logger),
	}

	logger.Debug("components ready",
		"backend", cfg.Store.Backend,
		"build_mode", storage.BuildMode,
		"driver", storage.DriverName,
		"embedding_provider", emb.Provider(),
		"embedding_model", emb.Model(),
		"vision", cfg.Vision.APIKey != "",
	)

	if ensure {
		if err := a.lifecycle.EnsureCollection(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	return a, nil
}

// Close releases the embedder and the store
func (a *app) Close() error {
	return errors.Join(a.embedder.Close(), a.store.Close())
}
