package core

import "context"

// TxResult reports the outcome of a registry transaction.
type TxResult struct {
	Digest string
}

// Registry is the external transactional system holding one mutable pointer
// per agent. A pointer identifies the agent's latest state blob; repointing
// is the commit point for every pointer-protocol write.
type Registry interface {
	// GetPointer returns the agent's current pointer or "" when none is set.
	GetPointer(ctx context.Context, agentID string) (string, error)
	// SetPointer atomically repoints the agent to ref.
	SetPointer(ctx context.Context, agentID, ref string) (TxResult, error)
}
