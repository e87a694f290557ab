package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/dshills/mgrep/internal/chunker"
	"github.com/dshills/mgrep/internal/embedder"
	"github.com/dshills/mgrep/internal/extractor"
	"github.com/dshills/mgrep/internal/parser"
	"github.com/dshills/mgrep/internal/router"
	"github.com/dshills/mgrep/internal/storage"
	"github.com/dshills/mgrep/internal/vision"
	"github.com/dshills/mgrep/pkg/types"
)

// Deps are the capabilities the indexer is built from. Store and Embedder
// are required; the rest default when nil.
type Deps struct {
	Store     storage.Store
	Embedder  embedder.Embedder
	Describer vision.Describer    // nil disables image indexing
	Parser    *parser.Parser      // default: parser.New()
	Chunker   *chunker.Chunker    // default: chunker.New()
	Extractor extractor.Extractor // default: extractor.New()
	Logger    *slog.Logger
}

// Indexer coordinates the indexing pipeline: route -> purge -> chunk -> embed -> store
type Indexer struct {
	store      storage.Store
	embedder   embedder.Embedder
	describer  vision.Describer
	parser     *parser.Parser
	chunker    *chunker.Chunker
	extractor  extractor.Extractor
	collection string
	logger     *slog.Logger

	dirLocks scopeLocks
}

// Result describes one indexed file
type Result struct {
	FilePath      string            `json:"file_path"`
	ContentType   types.ContentType `json:"content_type"`
	Purged        int               `json:"purged"`
	ChunksIndexed int               `json:"chunks_indexed"`
	Duration      time.Duration     `json:"duration"`
}

// New creates a new Indexer writing to collection
func New(deps Deps, collection string) *Indexer {
	if deps.Describer == nil {
		deps.Describer = vision.Disabled()
	}
	if deps.Parser == nil {
		deps.Parser = parser.New()
	}
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	if deps.Extractor == nil {
		deps.Extractor = extractor.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Indexer{
		store:      deps.Store,
		embedder:   deps.Embedder,
		describer:  deps.Describer,
		parser:     deps.Parser,
		chunker:    deps.Chunker,
		extractor:  deps.Extractor,
		collection: collection,
		logger:     deps.Logger.With("component", "indexer"),
	}
}

// IndexFile replaces every document of (userID, projectName, filePath) with
// chunks cut from content. The file type is chosen from the extension.
//
// Unsupported types and images without a vision capability fail before
// anything is deleted. Past that point the old documents are purged first,
// so a later extraction, parse, description or embedding failure leaves the
// file partially indexed or not indexed at all.
func (idx *Indexer) IndexFile(ctx context.Context, userID, projectName, filePath string, content []byte) (*Result, error) {
	scope, err := validateScope(userID, projectName, filePath)
	if err != nil {
		return nil, err
	}

	decision, err := router.Route(filePath)
	if err != nil {
		return nil, err
	}

	return idx.index(ctx, scope, decision, content)
}

// IndexContent indexes submitted source text. filePath must route to a code
// grammar.
func (idx *Indexer) IndexContent(ctx context.Context, userID, projectName, filePath, text string) (*Result, error) {
	scope, err := validateScope(userID, projectName, filePath)
	if err != nil {
		return nil, err
	}

	decision, err := router.Route(filePath)
	if err != nil {
		return nil, err
	}
	if decision.ContentType != types.ContentCode {
		return nil, fmt.Errorf("%w: %s is not a source code file", types.ErrUnsupportedType, filePath)
	}

	return idx.index(ctx, scope, decision, []byte(text))
}

// RemoveFile deletes every document of one file and returns how many were removed
func (idx *Indexer) RemoveFile(ctx context.Context, userID, projectName, filePath string) (int, error) {
	scope, err := validateScope(userID, projectName, filePath)
	if err != nil {
		return 0, err
	}

	n, err := idx.store.BulkDelete(ctx, idx.collection, scope)
	if err != nil {
		return 0, fmt.Errorf("failed to purge %s: %w", filePath, err)
	}

	idx.logger.Info("removed file", "user_id", userID, "project", projectName, "file", filePath, "documents", n)
	return n, nil
}

func (idx *Indexer) index(ctx context.Context, scope types.Filters, decision router.Decision, content []byte) (*Result, error) {
	startTime := time.Now()

	if decision.ContentType == types.ContentImage && !vision.IsConfigured(idx.describer) {
		return nil, fmt.Errorf("cannot index %s: %w", scope.FilePath, &types.CapabilityError{Capability: "vision"})
	}

	purged, err := idx.store.BulkDelete(ctx, idx.collection, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to purge %s: %w", scope.FilePath, err)
	}

	result := &Result{
		FilePath:    scope.FilePath,
		ContentType: decision.ContentType,
		Purged:      purged,
	}

	chunks, err := idx.chunk(ctx, decision, content)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk %s: %w", scope.FilePath, err)
	}

	for i := range chunks {
		if err := idx.storeChunk(ctx, scope, decision, &chunks[i]); err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", i, scope.FilePath, err)
		}
		result.ChunksIndexed++
	}

	result.Duration = time.Since(startTime)
	idx.logger.Info("indexed file",
		"user_id", scope.UserID,
		"project", scope.ProjectName,
		"file", scope.FilePath,
		"content_type", decision.ContentType,
		"purged", purged,
		"chunks", result.ChunksIndexed,
		"duration", result.Duration)

	return result, nil
}

// chunk cuts content according to its route
func (idx *Indexer) chunk(ctx context.Context, decision router.Decision, content []byte) ([]types.Chunk, error) {
	switch decision.ContentType {
	case types.ContentCode:
		defs, err := idx.parser.Parse(content, decision.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s source: %w", decision.Language, err)
		}
		return idx.chunker.ChunkDefinitions(defs, decision.Language), nil

	case types.ContentDocument:
		text, err := idx.extractor.Extract(content, decision.Subtype)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return idx.chunker.ChunkText(text), nil

	case types.ContentImage:
		caption, err := idx.describer.Describe(ctx, content, "")
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(caption) == "" {
			return nil, nil
		}
		return idx.chunker.ChunkCaption(caption), nil

	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedType, decision.ContentType)
	}
}

// storeChunk embeds one chunk and upserts it as a document
func (idx *Indexer) storeChunk(ctx context.Context, scope types.Filters, decision router.Decision, chunk *types.Chunk) error {
	vector, err := embedder.Embed(ctx, idx.embedder, chunk.Content)
	if err != nil {
		return fmt.Errorf("failed to embed: %w", err)
	}

	doc := &types.Document{
		UserID:       scope.UserID,
		ProjectName:  scope.ProjectName,
		FilePath:     scope.FilePath,
		ContentType:  decision.ContentType,
		Language:     types.StringPtr(chunk.Language),
		ClassName:    types.StringPtr(chunk.ClassName),
		FunctionName: types.StringPtr(chunk.FunctionName),
		CodeContent:  chunk.Content,
		Embedding:    vector,
	}
	if chunk.HasLines {
		doc.LineStart = types.IntPtr(chunk.StartLine)
		doc.LineEnd = types.IntPtr(chunk.EndLine)
	}

	if err := idx.store.Upsert(ctx, idx.collection, doc); err != nil {
		return fmt.Errorf("failed to store: %w", err)
	}
	return nil
}

// validateScope checks the scoping keys and returns them as a file filter
func validateScope(userID, projectName, filePath string) (types.Filters, error) {
	var missing []string
	if userID == "" {
		missing = append(missing, "user_id")
	}
	if projectName == "" {
		missing = append(missing, "project_name")
	}
	if filePath == "" {
		missing = append(missing, "file_path")
	}
	if len(missing) > 0 {
		return types.Filters{}, fmt.Errorf("%w: %s required", types.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return types.Filters{UserID: userID, ProjectName: projectName, FilePath: filePath}, nil
}

// defaultWorkers is the directory indexing concurrency when none is configured
func defaultWorkers() int {
	return runtime.NumCPU()
}

// isSkippable reports errors that mean "cannot index this kind of file
// here" rather than a failure of the file itself
func isSkippable(err error) bool {
	return errors.Is(err, types.ErrCapabilityNotConfigured) || errors.Is(err, types.ErrUnsupportedType)
}
