// Package registry contains concrete core.Registry implementations. The
// registry interface resides in the core package; production deployments
// back it with a transactional system (chain, database), while the in-memory
// implementation below serves tests and single-process prototypes.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentmem/core"
)

// InMemoryRegistry is a volatile core.Registry storing one pointer per agent
// in a process-local map. Safe for concurrent access.
type InMemoryRegistry struct {
	mu       sync.Mutex
	pointers map[string]string
	txSeq    int
}

// NewInMemoryRegistry constructs an empty in-memory registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{pointers: make(map[string]string)}
}

// GetPointer returns the agent's current pointer or "" when none is set.
func (r *InMemoryRegistry) GetPointer(ctx context.Context, agentID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointers[agentID], nil
}

// SetPointer repoints the agent to ref and returns a synthetic tx digest.
func (r *InMemoryRegistry) SetPointer(ctx context.Context, agentID, ref string) (core.TxResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pointers[agentID] = ref
	r.txSeq++
	return core.TxResult{Digest: fmt.Sprintf("tx-%08d", r.txSeq)}, nil
}
