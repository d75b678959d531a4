package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/embedding"
	"github.com/hupe1980/agentmem/embedding/mock"
	"github.com/hupe1980/agentmem/ingest"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/retrieval"
)

// Options configures a session cache.
type Options struct {
	// StorageDir is where per-agent retrieval stores are persisted.
	StorageDir string
	// Engine embeds documents for every session's retrieval store.
	Engine embedding.Engine
	// Retention is passed through to blob writes, in storage epochs.
	Retention int
	// Logger is the logger used by the cache and everything it creates.
	Logger logging.Logger
}

// Cache creates and caches per-agent sessions. Sessions are keyed by agent
// ID and survive for the lifetime of the cache; a changed identity ref
// rebuilds the session from scratch.
type Cache struct {
	mu        sync.Mutex
	sessions  map[string]*State
	blob      core.BlobStore
	registry  core.Registry
	engine    embedding.Engine
	dir       string
	retention int
	logger    logging.Logger
}

// NewCache creates a session cache on top of a blob store and a pointer
// registry.
func NewCache(blobStore core.BlobStore, registry core.Registry, optFns ...func(o *Options)) *Cache {
	opts := Options{
		StorageDir: filepath.Join(".cache", "agentmem"),
		Retention:  5,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Engine == nil {
		opts.Engine = mock.New()
	}

	return &Cache{
		sessions:  make(map[string]*State),
		blob:      blobStore,
		registry:  registry,
		engine:    opts.Engine,
		dir:       opts.StorageDir,
		retention: opts.Retention,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// LoadOptions configures a single Load call.
type LoadOptions struct {
	// SkipSync returns the cached session without consulting the registry.
	SkipSync bool
	// KnownSummaryRef short-circuits the registry read when the caller
	// already holds the agent's current pointer ref.
	KnownSummaryRef string
}

// Load returns the session for an agent, creating it on first use. Cached
// sessions are re-synced against the pointer registry unless SkipSync is
// set. Identity retrieval failures are fatal; pointer sync failures degrade
// to a partial session and are only logged.
func (c *Cache) Load(ctx context.Context, agentID, identityRef string, optFns ...func(o *LoadOptions)) (*State, error) {
	opts := LoadOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	c.mu.Lock()
	cached := c.sessions[agentID]
	c.mu.Unlock()

	if cached != nil && cached.IdentityRef == identityRef {
		if !opts.SkipSync {
			if err := c.Sync(ctx, cached, opts.KnownSummaryRef); err != nil {
				c.logger.Error("Pointer sync failed", "agent_id", agentID, "error", err)
			}
		}

		return cached, nil
	}

	state, err := c.createState(ctx, agentID, identityRef, opts.KnownSummaryRef)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[agentID] = state
	c.mu.Unlock()

	return state, nil
}

// Peek returns the cached session for an agent without creating one.
func (c *Cache) Peek(agentID string) *State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sessions[agentID]
}

// Evict drops an agent's cached session. The on-disk retrieval store is
// left in place and reloaded on the next Load.
func (c *Cache) Evict(agentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.sessions, agentID)
}

func (c *Cache) createState(ctx context.Context, agentID, identityRef, knownRef string) (*State, error) {
	identity, err := c.fetchIdentity(ctx, identityRef)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Bootstrapping session", "agent_id", agentID, "identity", identity.Name)

	store := retrieval.NewStore(filepath.Join(c.dir, agentID+".json"), c.engine, func(o *retrieval.Options) {
		o.Logger = c.logger
	})

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize retrieval store: %w", err)
	}

	state := newState(agentID, identityRef, identity, store)

	c.ingestCuratedSummaries(ctx, state)
	c.ingestMemorySources(ctx, state)

	if err := c.Sync(ctx, state, knownRef); err != nil {
		c.logger.Error("Initial pointer sync failed", "agent_id", agentID, "error", err)
	}

	return state, nil
}

// ingestCuratedSummaries adds the hand-written summaries embedded in the
// identity document. Failures degrade to a partial store.
func (c *Cache) ingestCuratedSummaries(ctx context.Context, s *State) {
	for _, summary := range s.Identity.CuratedSummaries {
		if summary.Content == "" {
			continue
		}

		timestamp := summary.Timestamp
		if timestamp == "" {
			timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		metadata := map[string]any{
			"source":    "identity-summary",
			"agentId":   s.AgentID,
			"label":     summary.Label,
			"timestamp": timestamp,
		}

		if _, err := s.Store.AddDocument(ctx, summary.Content, metadata); err != nil {
			c.logger.Warn("Curated summary ingestion failed", "agent_id", s.AgentID, "label", summary.Label, "error", err)
		}
	}
}

// ingestMemorySources pulls the identity's declared memory sources into the
// retrieval store, skipping any source that has already been loaded.
func (c *Cache) ingestMemorySources(ctx context.Context, s *State) {
	adapter := ingest.NewAdapter(s.Store, func(o *ingest.AdapterOptions) {
		o.Logger = c.logger
	})

	for _, src := range s.Identity.MemorySources {
		key := src.Key()
		if s.IsLoaded(key) {
			continue
		}

		metadata := map[string]any{"agentId": s.AgentID}
		if src.Description != "" {
			metadata["label"] = src.Description
		}

		var err error

		switch src.Kind {
		case core.SourceKindContainerPatch:
			_, err = adapter.IngestContainerPart(ctx, c.blob, "", src.Ref, func(o *ingest.Options) {
				o.Metadata = metadata
			})
		default:
			_, err = adapter.IngestBlob(ctx, c.blob, src.Ref, func(o *ingest.Options) {
				o.Metadata = metadata
			})
		}

		if err != nil {
			c.logger.Warn("Memory source ingestion failed", "agent_id", s.AgentID, "ref", src.Ref, "error", err)
			continue
		}

		s.MarkLoaded(key)
	}
}
