// Package lifecycle creates, recreates and cleans the search collection.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/pkg/types"
)

// ErrDimensionMismatch is returned when the stored collection was built
// with a different embedding dimension than the configured embedder
var ErrDimensionMismatch = errors.New("collection dimension does not match embedder")

// Manager owns the collection schema for one store and embedder pair
type Manager struct {
	store      storage.Store
	collection string
	dimension  int
	logger     *slog.Logger
}

// CleanResult reports what a Clean call removed
type CleanResult struct {
	Deleted    int  `json:"deleted"`
	DroppedAll bool `json:"dropped_all"`
}

// Stats describes the collection and the size of one scope within it
type Stats struct {
	Collection    string `json:"collection"`
	Exists        bool   `json:"exists"`
	Dimension     int    `json:"dimension,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Documents     int    `json:"documents"`
}

// New creates a Manager whose collection matches emb's dimension
func New(store storage.Store, emb embedder.Embedder, collection string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      store,
		collection: collection,
		dimension:  emb.Dimension(),
		logger:     logger.With("component", "lifecycle", "collection", collection),
	}
}

// Collection returns the managed collection name
func (m *Manager) Collection() string {
	return m.collection
}

func (m *Manager) schema() storage.Schema {
	return storage.Schema{Dimension: m.dimension, Version: storage.CollectionSchemaVersion}
}

// EnsureCollection creates the collection if it is missing. An existing
// collection must have the embedder's dimension and a readable schema.
func (m *Manager) EnsureCollection(ctx context.Context) error {
	exists, err := m.store.Exists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		err := m.store.Create(ctx, m.collection, m.schema())
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		// Lost a creation race; validate what the winner made
	}

	return m.checkSchema(ctx)
}

func (m *Manager) checkSchema(ctx context.Context) error {
	schema, err := m.store.Describe(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to describe collection: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("collection %s: %w", m.collection, err)
	}
	if schema.Dimension != m.dimension {
		return fmt.Errorf("%w: collection %s has %d, embedder produces %d (run recreate to rebuild)",
			ErrDimensionMismatch, m.collection, schema.Dimension, m.dimension)
	}
	return nil
}

// Recreate drops the collection if present and creates an empty one
func (m *Manager) Recreate(ctx context.Context) error {
	if err := m.drop(ctx); err != nil {
		return err
	}
	if err := m.store.Create(ctx, m.collection, m.schema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.logger.Info("recreated collection", "dimension", m.dimension)
	return nil
}

// Clean removes documents. With deleteAll the whole collection is dropped
// and an empty one put back in its place, so searches keep working.
// Otherwise userID is required and only that user's documents (optionally
// only one project) are removed.
func (m *Manager) Clean(ctx context.Context, userID, projectName string, deleteAll bool) (*CleanResult, error) {
	if deleteAll {
		count, err := m.store.Count(ctx, m.collection, types.Filters{})
		if err != nil {
			return nil, fmt.Errorf("failed to count documents: %w", err)
		}
		if err := m.drop(ctx); err != nil {
			return nil, err
		}
		if err := m.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		m.logger.Info("deleted all documents", "documents", count)
		return &CleanResult{Deleted: count, DroppedAll: true}, nil
	}

	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required unless deleting everything", types.ErrInvalidInput)
	}

	deleted, err := m.store.BulkDelete(ctx, m.collection, types.Filters{UserID: userID, ProjectName: projectName})
	if err != nil {
		return nil, fmt.Errorf("failed to delete documents: %w", err)
	}

	m.logger.Info("cleaned documents", "user_id", userID, "project", projectName, "documents", deleted)
	return &CleanResult{Deleted: deleted}, nil
}

// Stats reports the collection schema and the number of documents in scope
func (m *Manager) Stats(ctx context.Context, filters types.Filters) (*Stats, error) {
	stats := &Stats{Collection: m.collection}

	schema, err := m.store.Describe(ctx, m.collection)
	if errors.Is(err, storage.ErrCollectionNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe collection: %w", err)
	}
	stats.Exists = true
	stats.Dimension = schema.Dimension
	stats.SchemaVersion = schema.Version

	stats.Documents, err = m.store.Count(ctx, m.collection, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	return stats, nil
}

func (m *Manager) drop(ctx context.Context) error {
	err := m.store.Drop(ctx, m.collection)
	if err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
