package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/model"
)

// CountingBlobStore wraps a BlobStore and counts calls, so tests can assert
// how many network-shaped operations a code path performed.
type CountingBlobStore struct {
	core.BlobStore

	mu      sync.Mutex
	reads   int
	writes  int
	deletes int
}

// NewCountingBlobStore wraps inner with call counting.
func NewCountingBlobStore(inner core.BlobStore) *CountingBlobStore {
	return &CountingBlobStore{BlobStore: inner}
}

func (s *CountingBlobStore) Read(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()

	return s.BlobStore.Read(ctx, ref)
}

func (s *CountingBlobStore) Write(ctx context.Context, data []byte, opts core.WriteOptions) (string, error) {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()

	return s.BlobStore.Write(ctx, data, opts)
}

func (s *CountingBlobStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	s.deletes++
	s.mu.Unlock()

	return s.BlobStore.Delete(ctx, ref)
}

// Reads returns the number of Read calls observed.
func (s *CountingBlobStore) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reads
}

// Writes returns the number of Write calls observed.
func (s *CountingBlobStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writes
}

// Deletes returns the number of Delete calls observed.
func (s *CountingBlobStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deletes
}

// FailingRegistry delegates reads to an inner registry but fails every
// repoint, for exercising orphaned-blob error paths.
type FailingRegistry struct {
	Inner core.Registry
	Err   error
}

func (r *FailingRegistry) GetPointer(ctx context.Context, agentID string) (string, error) {
	return r.Inner.GetPointer(ctx, agentID)
}

func (r *FailingRegistry) SetPointer(ctx context.Context, agentID, ref string) (core.TxResult, error) {
	err := r.Err
	if err == nil {
		err = errors.New("registry unavailable")
	}

	return core.TxResult{}, err
}

// CountingCompleter returns a fixed response and counts calls, so tests can
// assert how often summarization actually ran.
type CountingCompleter struct {
	Response string
	Err      error

	mu    sync.Mutex
	calls int
}

func (c *CountingCompleter) Complete(ctx context.Context, systemPrompt string, messages []core.ChatMessage) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.Err != nil {
		return "", c.Err
	}

	if c.Response == "" {
		return "summary of the conversation", nil
	}

	return c.Response, nil
}

// Calls returns the number of Complete calls observed.
func (c *CountingCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

var (
	_ core.BlobStore  = (*CountingBlobStore)(nil)
	_ core.Registry   = (*FailingRegistry)(nil)
	_ model.Completer = (*CountingCompleter)(nil)
)
