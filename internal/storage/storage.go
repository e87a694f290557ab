package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/dshills/mgrep/pkg/types"
)

var (
	// ErrCollectionNotFound is returned when a collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrAlreadyExists is returned when creating a collection that exists
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidCollection is returned for unusable collection names
	ErrInvalidCollection = errors.New("invalid collection name")
	// ErrEmptyFilter guards bulk deletes that would match everything
	ErrEmptyFilter = errors.New("bulk delete requires at least one filter")
	// ErrInvalidSchema is returned for unusable collection schemas
	ErrInvalidSchema = errors.New("invalid collection schema")
	// ErrInvalidVector is returned when an embedding does not fit the schema
	ErrInvalidVector = errors.New("embedding does not match collection dimension")
)

// CollectionSchemaVersion is the document layout written by this build
const CollectionSchemaVersion = "1.0.0"

// supportedSchemas lists the collection layouts this build can read
var supportedSchemas = semver.MustParse(CollectionSchemaVersion)

// LexicalFields are the fields searched by the lexical fallback
var LexicalFields = []string{"code_content", "function_name", "class_name"}

// Schema describes a collection
type Schema struct {
	Dimension int
	Version   string
}

// Validate checks dimension and that the version is readable by this build
func (s Schema) Validate() error {
	if s.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidSchema, s.Dimension)
	}

	v, err := semver.NewVersion(s.Version)
	if err != nil {
		return fmt.Errorf("%w: version %q: %v", ErrInvalidSchema, s.Version, err)
	}
	if v.Major() != supportedSchemas.Major() || v.GreaterThan(supportedSchemas) {
		return fmt.Errorf("%w: version %s not supported (have %s)", ErrInvalidSchema, s.Version, CollectionSchemaVersion)
	}
	return nil
}

// ScoredDocument is a document returned with store relevance
type ScoredDocument struct {
	Document types.Document
	Score    float64
}

// Store persists documents in named collections. Filters are exact-match
// conjunctions; reads against a missing collection return empty results.
type Store interface {
	// Collection operations
	Exists(ctx context.Context, collection string) (bool, error)
	Create(ctx context.Context, collection string, schema Schema) error
	Describe(ctx context.Context, collection string) (*Schema, error)
	Drop(ctx context.Context, collection string) error

	// Document operations
	Upsert(ctx context.Context, collection string, doc *types.Document) error
	BulkDelete(ctx context.Context, collection string, filters types.Filters) (int, error)
	FetchFiltered(ctx context.Context, collection string, filters types.Filters, limit int) ([]types.Document, error)
	SearchLexical(ctx context.Context, collection string, filters types.Filters, fields []string, query string, limit int) ([]ScoredDocument, error)
	Count(ctx context.Context, collection string, filters types.Filters) (int, error)

	Close() error
}

var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateCollectionName rejects names that are unsafe as table or directory names
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
	return nil
}

// validateFields rejects lexical fields outside LexicalFields
func validateFields(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return LexicalFields, nil
	}
	for _, f := range fields {
		known := false
		for _, lf := range LexicalFields {
			if f == lf {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%w: unknown lexical field %q", types.ErrInvalidInput, f)
		}
	}
	return fields, nil
}

// prepareDocument validates doc against the schema and assigns an ID
func prepareDocument(doc *types.Document, schema *Schema) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if len(doc.Embedding) != schema.Dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidVector, len(doc.Embedding), schema.Dimension)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return nil
}
