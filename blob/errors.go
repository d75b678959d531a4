package blob

import "fmt"

var (
	// ErrNotFound is returned when no object exists under the given reference.
	ErrNotFound = fmt.Errorf("blob not found")

	// ErrNotContainer is returned when part operations are attempted on a
	// reference that addresses a plain blob.
	ErrNotContainer = fmt.Errorf("reference is not a container")
)
