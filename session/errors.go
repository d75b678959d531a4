package session

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityRetrieval is returned when an identity document cannot be
	// fetched or decoded from the blob store.
	ErrIdentityRetrieval = errors.New("identity retrieval failed")

	// ErrEmptySummary is returned when a summary persist is attempted
	// without any content.
	ErrEmptySummary = errors.New("summary content is required")
)

// RegistryWriteError indicates that a pointer document was written to the
// blob store but the registry could not be repointed at it. ContentRef names
// the orphaned blob so the caller can retry or reclaim it.
type RegistryWriteError struct {
	ContentRef string
	Err        error
}

func (e *RegistryWriteError) Error() string {
	return fmt.Sprintf("registry repoint failed (orphaned blob %s): %v", e.ContentRef, e.Err)
}

func (e *RegistryWriteError) Unwrap() error {
	return e.Err
}
