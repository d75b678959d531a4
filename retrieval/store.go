package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/embedding"
	"github.com/hupe1980/agentmem/logging"
)

const (
	// DefaultSearchLimit bounds search results when the caller passes 0.
	DefaultSearchLimit = 10
	// DefaultSearchThreshold is the similarity floor applied by Search.
	DefaultSearchThreshold = 0.7
	// DefaultDuplicateThreshold is the similarity at or above which an
	// insert with duplicate prevention is aborted.
	DefaultDuplicateThreshold = 0.8
)

// AddOptions control duplicate handling for AddDocument.
type AddOptions struct {
	PreventDuplicates  bool
	DuplicateThreshold float64
}

// Options configure a Store.
type Options struct {
	Logger logging.Logger
}

// Store is a persistent document + vector map owned by exactly one agent.
// All state is held in memory after Initialize; every mutation synchronously
// rewrites the backing file.
type Store struct {
	mu        sync.Mutex
	path      string
	engine    embedding.Engine
	documents map[string]core.Document
	vectors   map[string][]float64
	loaded    bool
	logger    logging.Logger
}

// NewStore creates a store persisting to path and embedding with engine.
// The file is loaded lazily on first use.
func NewStore(path string, engine embedding.Engine, optFns ...func(o *Options)) *Store {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		path:      path,
		engine:    engine,
		documents: make(map[string]core.Document),
		vectors:   make(map[string][]float64),
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Initialize loads the persisted store and the embedding model. A missing
// file means "start empty"; subsequent calls are no-ops once loaded.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.engine.Initialize(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoadedLocked()
}

func (s *Store) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("load store %s: %w", s.path, err)
		}
		s.loaded = true
		return nil
	}

	docs, vecs, err := decodePayload(data)
	if err != nil {
		return fmt.Errorf("load store %s: %w", s.path, err)
	}
	s.documents = docs
	s.vectors = vecs
	s.loaded = true
	return nil
}

func (s *Store) persistLocked() error {
	data, err := encodePayload(s.documents, s.vectors)
	if err != nil {
		return fmt.Errorf("persist store %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("persist store %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("persist store %s: %w", s.path, err)
	}
	return nil
}

// AddDocument embeds content and stores it under a fresh unique id, returning
// that id. Empty (or whitespace-only) content returns "" without error. With
// duplicate prevention enabled, an existing document scoring at or above the
// duplicate threshold aborts the insert and returns "".
func (s *Store) AddDocument(ctx context.Context, content string, metadata map[string]any, optFns ...func(o *AddOptions)) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", nil
	}

	if err := s.Initialize(ctx); err != nil {
		return "", err
	}

	opts := AddOptions{
		PreventDuplicates:  true,
		DuplicateThreshold: DefaultDuplicateThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.PreventDuplicates {
		duplicates, err := s.Search(ctx, trimmed, 1, opts.DuplicateThreshold)
		if err != nil {
			return "", err
		}
		// Search falls back to unfiltered results when nothing clears the
		// threshold, so the score must be re-checked here.
		if len(duplicates) > 0 && duplicates[0].Similarity >= opts.DuplicateThreshold {
			s.logger.Debug("skipping duplicate document", "similarity", duplicates[0].Similarity)
			return "", nil
		}
	}

	vector, err := s.engine.Embed(ctx, trimmed)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	doc := core.Document{
		ID:       id,
		Content:  trimmed,
		Metadata: withMetadataDefaults(metadata),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[id] = doc
	s.vectors[id] = vector
	if err := s.persistLocked(); err != nil {
		delete(s.documents, id)
		delete(s.vectors, id)
		return "", err
	}
	return id, nil
}

// Search embeds the query and scores every stored vector. Results below the
// threshold are filtered out; if nothing clears the threshold the unfiltered
// top results are returned instead so callers always get a best-effort
// answer. Sorted by similarity descending, truncated to limit (0 means
// DefaultSearchLimit).
func (s *Store) Search(ctx context.Context, query string, limit int, threshold float64) ([]core.SearchResult, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	scored := make([]core.SearchResult, 0, len(s.vectors))
	for id, vector := range s.vectors {
		doc, ok := s.documents[id]
		if !ok {
			continue
		}
		similarity, err := embedding.CosineSimilarity(queryVec, vector)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		scored = append(scored, core.SearchResult{ID: id, Similarity: similarity, Document: doc})
	}
	s.mu.Unlock()

	filtered := scored[:0:0]
	for _, r := range scored {
		if r.Similarity >= threshold {
			filtered = append(filtered, r)
		}
	}

	ranked := filtered
	if len(ranked) == 0 {
		ranked = scored
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Documents returns a snapshot of all stored documents in unspecified order.
func (s *Store) Documents(ctx context.Context) ([]core.Document, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]core.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

// CoreMemories returns every document whose content is marked as a core
// memory ("Core:" prefix), newest first by metadata timestamp.
func (s *Store) CoreMemories(ctx context.Context) ([]core.SearchResult, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0)
	for _, doc := range docs {
		if strings.HasPrefix(doc.Content, "Core:") {
			results = append(results, core.SearchResult{ID: doc.ID, Similarity: 1, Document: doc})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Document.Timestamp().After(results[j].Document.Timestamp())
	})
	return results, nil
}

// Len reports the number of stored documents.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return 0, err
	}
	return len(s.documents), nil
}

// Wipe clears all documents and vectors and persists the empty state.
func (s *Store) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	s.documents = make(map[string]core.Document)
	s.vectors = make(map[string][]float64)
	return s.persistLocked()
}

func withMetadataDefaults(metadata map[string]any) map[string]any {
	resolved := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		resolved[k] = v
	}
	if _, ok := resolved["timestamp"].(string); !ok {
		resolved["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	if _, ok := resolved["type"].(string); !ok {
		resolved["type"] = "memory"
	}
	return resolved
}
