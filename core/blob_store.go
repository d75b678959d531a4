package core

import "context"

// WriteOptions control durability attributes of a blob write.
type WriteOptions struct {
	// Retention is the storage-defined retention horizon (e.g. epochs).
	Retention int
	// Deletable marks the blob as eligible for later explicit deletion.
	Deletable bool
}

// PartInfo identifies one named part inside a container object.
type PartInfo struct {
	PartID     string
	Identifier string
}

// Part is the resolved content of a container part.
type Part struct {
	Identifier string
	Tags       map[string]string
	Contents   []byte
}

// BlobStore is the content-addressed immutable storage collaborator. Writes
// return a new opaque reference; reads are by reference. Containers bundle
// multiple independently addressable named parts under one reference.
//
// Implementations should be thread-safe. All methods accept a context since
// every call is a potential network round trip.
type BlobStore interface {
	// Read returns the raw bytes stored under ref.
	Read(ctx context.Context, ref string) ([]byte, error)
	// Write stores data and returns its new immutable reference.
	Write(ctx context.Context, data []byte, opts WriteOptions) (string, error)
	// Delete removes a deletable blob. Best-effort callers must tolerate failure.
	Delete(ctx context.Context, ref string) error
	// ListParts enumerates the parts of a container reference.
	ListParts(ctx context.Context, ref string) ([]PartInfo, error)
	// ReadPart resolves one container part by its part id.
	ReadPart(ctx context.Context, partID string) (Part, error)
}
