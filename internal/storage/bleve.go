package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/dshills/mgrep/pkg/types"
)

const (
	bleveIndexSuffix = ".bleve"
	schemaKey        = "mgrep_schema"
	deleteBatchSize  = 500
)

// BleveStore implements Store with one bleve index per collection.
// An empty base path keeps every index in memory.
type BleveStore struct {
	basePath string
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[string]*bleveCollection
}

type bleveCollection struct {
	index  bleve.Index
	schema Schema
	path   string
	seq    atomic.Int64
}

// NewBleveStore opens every collection index under basePath
func NewBleveStore(basePath string, logger *slog.Logger) (*BleveStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &BleveStore{
		basePath:    basePath,
		logger:      logger.With("component", "storage", "backend", "bleve"),
		collections: make(map[string]*bleveCollection),
	}

	if basePath == "" {
		return s, nil
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read index directory: %w", err)
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), bleveIndexSuffix)
		if !entry.IsDir() || name == entry.Name() || ValidateCollectionName(name) != nil {
			continue
		}
		col, err := s.openCollection(name)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.collections[name] = col
	}
	return s, nil
}

func (s *BleveStore) openCollection(name string) (*bleveCollection, error) {
	path := filepath.Join(s.basePath, name+bleveIndexSuffix)
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}

	raw, err := index.GetInternal([]byte(schemaKey))
	if err != nil || len(raw) == 0 {
		_ = index.Close()
		return nil, fmt.Errorf("%w: collection %s has no schema", ErrInvalidSchema, name)
	}
	var schema Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	col := &bleveCollection{index: index, schema: schema, path: path}
	last, err := lastSeq(index)
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	col.seq.Store(last)
	return col, nil
}

// lastSeq finds the highest sequence number in an index
func lastSeq(index bleve.Index) (int64, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1, 0, false)
	req.SortBy([]string{"-seq"})
	req.Fields = []string{"seq"}
	res, err := index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}
	if len(res.Hits) == 0 {
		return 0, nil
	}
	seq, _ := res.Hits[0].Fields["seq"].(float64)
	return int64(seq), nil
}

// documentMapping indexes scope fields as exact keywords and the lexical
// fields as analyzed text. Embeddings are stored but not indexed.
func documentMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name
	keywordField.IncludeInAll = false

	textField := bleve.NewTextFieldMapping()
	textField.IncludeInAll = false

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.IncludeInAll = false
	storedOnly.IncludeTermVectors = false

	numericField := bleve.NewNumericFieldMapping()
	numericField.IncludeInAll = false

	doc := bleve.NewDocumentMapping()
	for _, f := range []string{"id", "user_id", "project_name", "file_path", "content_type", "language"} {
		doc.AddFieldMappingsAt(f, keywordField)
	}
	for _, f := range LexicalFields {
		doc.AddFieldMappingsAt(f, textField)
	}
	doc.AddFieldMappingsAt("embedding", storedOnly)
	for _, f := range []string{"line_start", "line_end", "seq"} {
		doc.AddFieldMappingsAt(f, numericField)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

func (s *BleveStore) collection(name string) (*bleveCollection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[name], nil
}

// Collection operations

func (s *BleveStore) Exists(_ context.Context, collection string) (bool, error) {
	col, err := s.collection(collection)
	return col != nil, err
}

func (s *BleveStore) Create(_ context.Context, collection string, schema Schema) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection]; ok {
		return fmt.Errorf("collection %s: %w", collection, ErrAlreadyExists)
	}

	var (
		index bleve.Index
		path  string
		err   error
	)
	if s.basePath == "" {
		index, err = bleve.NewMemOnly(documentMapping())
	} else {
		path = filepath.Join(s.basePath, collection+bleveIndexSuffix)
		index, err = bleve.New(path, documentMapping())
	}
	if err != nil {
		return fmt.Errorf("failed to create collection index: %w", err)
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		_ = index.Close()
		return err
	}
	if err := index.SetInternal([]byte(schemaKey), raw); err != nil {
		_ = index.Close()
		return fmt.Errorf("failed to store collection schema: %w", err)
	}

	s.collections[collection] = &bleveCollection{index: index, schema: schema, path: path}
	s.logger.Info("created collection", "collection", collection, "dimension", schema.Dimension, "schema_version", schema.Version)
	return nil
}

func (s *BleveStore) Describe(_ context.Context, collection string) (*Schema, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	schema := col.schema
	return &schema, nil
}

func (s *BleveStore) Drop(_ context.Context, collection string) error {
	if err := ValidateCollectionName(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	delete(s.collections, collection)

	if err := col.index.Close(); err != nil {
		return fmt.Errorf("failed to close collection index: %w", err)
	}
	if col.path != "" {
		if err := os.RemoveAll(col.path); err != nil {
			return fmt.Errorf("failed to remove collection index: %w", err)
		}
	}

	s.logger.Info("dropped collection", "collection", collection)
	return nil
}

// Document operations

func (s *BleveStore) Upsert(_ context.Context, collection string, doc *types.Document) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if col == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err := prepareDocument(doc, &col.schema); err != nil {
		return err
	}

	// Re-upserting an ID moves it to the end of the sequence
	fields := map[string]interface{}{
		"id":           doc.ID,
		"user_id":      doc.UserID,
		"project_name": doc.ProjectName,
		"file_path":    doc.FilePath,
		"content_type": string(doc.ContentType),
		"code_content": doc.CodeContent,
		"embedding":    encodeVector(doc.Embedding),
		"seq":          float64(col.seq.Add(1)),
	}
	if doc.Language != nil {
		fields["language"] = *doc.Language
	}
	if doc.ClassName != nil {
		fields["class_name"] = *doc.ClassName
	}
	if doc.FunctionName != nil {
		fields["function_name"] = *doc.FunctionName
	}
	if doc.LineStart != nil {
		fields["line_start"] = float64(*doc.LineStart)
	}
	if doc.LineEnd != nil {
		fields["line_end"] = float64(*doc.LineEnd)
	}

	if err := col.index.Index(doc.ID, fields); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (s *BleveStore) BulkDelete(_ context.Context, collection string, filters types.Filters) (int, error) {
	if filters.IsEmpty() {
		return 0, ErrEmptyFilter
	}
	col, err := s.collection(collection)
	if err != nil || col == nil {
		return 0, err
	}

	deleted := 0
	for {
		req := bleve.NewSearchRequestOptions(filterQuery(filters), deleteBatchSize, 0, false)
		res, err := col.index.Search(req)
		if err != nil {
			return deleted, fmt.Errorf("failed to find documents: %w", err)
		}
		if len(res.Hits) == 0 {
			return deleted, nil
		}

		batch := col.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := col.index.Batch(batch); err != nil {
			return deleted, fmt.Errorf("failed to delete documents: %w", err)
		}
		deleted += len(res.Hits)
	}
}

func (s *BleveStore) FetchFiltered(_ context.Context, collection string, filters types.Filters, limit int) ([]types.Document, error) {
	col, err := s.collection(collection)
	if err != nil || col == nil {
		return nil, err
	}

	if limit <= 0 {
		n, err := col.index.DocCount()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		limit = int(n)
	}

	req := bleve.NewSearchRequestOptions(filterQuery(filters), limit, 0, false)
	req.SortBy([]string{"seq"})
	req.Fields = []string{"*"}

	res, err := col.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	docs := make([]types.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, documentFromFields(hit.ID, hit.Fields))
	}
	return docs, nil
}

func (s *BleveStore) SearchLexical(_ context.Context, collection string, filters types.Filters, fields []string, text string, limit int) ([]ScoredDocument, error) {
	fields, err := validateFields(fields)
	if err != nil {
		return nil, err
	}
	terms := queryTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	col, err := s.collection(collection)
	if err != nil || col == nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	phrase := strings.Join(terms, " ")
	matches := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(phrase)
		mq.SetField(f)
		matches = append(matches, mq)
	}

	var q query.Query = bleve.NewDisjunctionQuery(matches...)
	if !filters.IsEmpty() {
		q = bleve.NewConjunctionQuery(filterQuery(filters), q)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"*"}

	res, err := col.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute lexical search: %w", err)
	}

	results := make([]ScoredDocument, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, ScoredDocument{
			Document: documentFromFields(hit.ID, hit.Fields),
			Score:    hit.Score,
		})
	}
	return results, nil
}

func (s *BleveStore) Count(_ context.Context, collection string, filters types.Filters) (int, error) {
	col, err := s.collection(collection)
	if err != nil || col == nil {
		return 0, err
	}

	req := bleve.NewSearchRequestOptions(filterQuery(filters), 0, 0, false)
	res, err := col.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(res.Total), nil
}

// Close closes every open collection index
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, col := range s.collections {
		if err := col.index.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close collection %s: %w", name, err)
		}
	}
	s.collections = make(map[string]*bleveCollection)
	return firstErr
}

// filterQuery is an exact-match conjunction over the set filter fields
func filterQuery(filters types.Filters) query.Query {
	var terms []query.Query
	add := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		terms = append(terms, tq)
	}
	add("user_id", filters.UserID)
	add("project_name", filters.ProjectName)
	add("file_path", filters.FilePath)

	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}
	return bleve.NewConjunctionQuery(terms...)
}

func documentFromFields(id string, fields map[string]interface{}) types.Document {
	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}
	optStr := func(key string) *string {
		if v, ok := fields[key].(string); ok {
			return &v
		}
		return nil
	}
	optInt := func(key string) *int {
		if v, ok := fields[key].(float64); ok {
			n := int(v)
			return &n
		}
		return nil
	}

	return types.Document{
		ID:           id,
		UserID:       str("user_id"),
		ProjectName:  str("project_name"),
		FilePath:     str("file_path"),
		ContentType:  types.ContentType(str("content_type")),
		Language:     optStr("language"),
		ClassName:    optStr("class_name"),
		FunctionName: optStr("function_name"),
		CodeContent:  str("code_content"),
		Embedding:    decodeVector(str("embedding")),
		LineStart:    optInt("line_start"),
		LineEnd:      optInt("line_end"),
	}
}
