// Package agentmem provides a high-level façade over the memory subsystem for
// autonomous agents: per-agent retrieval stores with semantic search, blob
// ingestion, session caching, the versioned pointer protocol, and buffered
// conversation summarization. Most applications interact with this package by:
//  1. Creating an AgentMem via New() (optionally overriding the default
//     in-memory blob store, registry, embedder and completer)
//  2. Loading an agent session (Load) to search and add memories
//  3. Recording exchanges (Record) and flushing at end of session (Flush)
//
// All defaults are safe for local development and testing; production
// deployments supply a durable blob store, an on-chain registry, and real
// model backends.
package agentmem

import (
	"context"

	"github.com/hupe1980/agentmem/blob"
	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/embedding"
	"github.com/hupe1980/agentmem/embedding/mock"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/registry"
	"github.com/hupe1980/agentmem/session"
	"github.com/hupe1980/agentmem/summarize"
)

// Options configures the AgentMem instance.
type Options struct {
	// BlobStore holds identity documents, summaries and run snapshots
	// (defaults to an in-memory content-addressed store).
	BlobStore core.BlobStore

	// Registry resolves and repoints per-agent memory pointers (defaults to
	// an in-memory registry).
	Registry core.Registry

	// Embedder powers every session's retrieval store (defaults to the
	// deterministic mock embedder).
	Embedder embedding.Engine

	// Completer generates conversation summaries (defaults to the mock
	// completer).
	Completer model.Completer

	// StorageDir is where per-agent retrieval stores are persisted.
	StorageDir string

	// SummaryThreshold is the exchange count that triggers automatic
	// summarization. Zero keeps the pipeline default.
	SummaryThreshold int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentMem is the high-level façade aggregating the session cache and the
// summarization pipeline.
type AgentMem struct {
	opts      Options
	sessions  *session.Cache
	summaries *summarize.Pipeline
}

// New creates a new AgentMem instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentMem {
	opts := Options{
		BlobStore: blob.NewInMemoryStore(),
		Registry:  registry.NewInMemoryRegistry(),
		Embedder:  mock.New(),
		Completer: model.NewMockCompleter(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	sessions := session.NewCache(opts.BlobStore, opts.Registry, func(o *session.Options) {
		o.Engine = opts.Embedder
		o.Logger = opts.Logger
		if opts.StorageDir != "" {
			o.StorageDir = opts.StorageDir
		}
	})

	summaries := summarize.NewPipeline(sessions, opts.Completer, func(o *summarize.Options) {
		o.Logger = opts.Logger
		if opts.SummaryThreshold > 0 {
			o.Threshold = opts.SummaryThreshold
		}
	})

	return &AgentMem{opts: opts, sessions: sessions, summaries: summaries}
}

// Sessions exposes the session cache for direct protocol operations.
func (m *AgentMem) Sessions() *session.Cache { return m.sessions }

// Summaries exposes the summarization pipeline.
func (m *AgentMem) Summaries() *summarize.Pipeline { return m.summaries }

// Load returns the memory session for an agent, creating and syncing it on
// first use.
func (m *AgentMem) Load(ctx context.Context, agentID, identityRef string, optFns ...func(o *session.LoadOptions)) (*session.State, error) {
	return m.sessions.Load(ctx, agentID, identityRef, optFns...)
}

// Search runs a semantic query against an agent's cached session store.
func (m *AgentMem) Search(ctx context.Context, agentID, query string, limit int, threshold float64) ([]core.SearchResult, error) {
	s := m.sessions.Peek(agentID)
	if s == nil {
		return nil, nil
	}

	return s.Store.Search(ctx, query, limit, threshold)
}

// Record appends one user/assistant exchange to the agent's summary buffer,
// triggering detached summarization once the buffer is large enough.
func (m *AgentMem) Record(ctx context.Context, s *session.State, userMsg, assistantMsg string) {
	m.summaries.Record(ctx, s, userMsg, assistantMsg)
}

// Flush persists whatever is buffered for an agent and returns the new
// pointer ref, or "" when there was nothing to do.
func (m *AgentMem) Flush(ctx context.Context, agentID string) (string, error) {
	return m.summaries.Flush(ctx, agentID)
}
