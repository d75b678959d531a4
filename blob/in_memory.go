package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/hupe1980/agentmem/core"
)

// InMemoryStore is an in-process content-addressed core.BlobStore useful for
// tests, examples and single-process prototypes. References are derived from
// a SHA-256 of the content, so writing identical bytes yields the same
// reference. Data is copied on write / read to avoid accidental external
// mutation of internal buffers.
//
// Containers are written via WriteContainer; their parts become individually
// addressable through ListParts / ReadPart. Reading a container reference as
// a plain blob fails with ErrNotFound, mirroring stores where the two object
// shapes live in different namespaces.
type InMemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string][]byte
	containers map[string][]core.PartInfo
	parts      map[string]core.Part
}

// NewInMemoryStore returns an empty in-memory blob store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		blobs:      make(map[string][]byte),
		containers: make(map[string][]core.PartInfo),
		parts:      make(map[string]core.Part),
	}
}

func contentRef(prefix string, data []byte) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:16])
}

// Write stores data and returns its content-derived reference.
func (s *InMemoryStore) Write(ctx context.Context, data []byte, opts core.WriteOptions) (string, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	ref := contentRef("blob-", data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = cp
	return ref, nil
}

// WriteContainer stores a bundle of named parts under a single reference.
func (s *InMemoryStore) WriteContainer(ctx context.Context, parts []core.Part, opts core.WriteOptions) (string, error) {
	var all []byte
	for _, p := range parts {
		all = append(all, []byte(p.Identifier)...)
		all = append(all, p.Contents...)
	}
	ref := contentRef("container-", all)

	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]core.PartInfo, 0, len(parts))
	for i, p := range parts {
		partID := contentRef(fmt.Sprintf("%s-part%d-", ref, i), p.Contents)
		cp := core.Part{
			Identifier: p.Identifier,
			Tags:       make(map[string]string, len(p.Tags)),
			Contents:   append([]byte(nil), p.Contents...),
		}
		for k, v := range p.Tags {
			cp.Tags[k] = v
		}
		s.parts[partID] = cp
		infos = append(infos, core.PartInfo{PartID: partID, Identifier: p.Identifier})
	}
	s.containers[ref] = infos
	return ref, nil
}

// Read returns a copy of the blob bytes or ErrNotFound. Container references
// are not readable as plain blobs.
func (s *InMemoryStore) Read(ctx context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete removes the blob or container if present or returns ErrNotFound.
func (s *InMemoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[ref]; ok {
		delete(s.blobs, ref)
		return nil
	}
	infos, ok := s.containers[ref]
	if !ok {
		return ErrNotFound
	}
	for _, info := range infos {
		delete(s.parts, info.PartID)
	}
	delete(s.containers, ref)
	return nil
}

// ListParts enumerates the parts of a container reference.
func (s *InMemoryStore) ListParts(ctx context.Context, ref string) ([]core.PartInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	infos, ok := s.containers[ref]
	if !ok {
		if _, isBlob := s.blobs[ref]; isBlob {
			return nil, ErrNotContainer
		}
		return nil, ErrNotFound
	}
	out := make([]core.PartInfo, len(infos))
	copy(out, infos)
	return out, nil
}

// ReadPart resolves one container part by its part id.
func (s *InMemoryStore) ReadPart(ctx context.Context, partID string) (core.Part, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[partID]
	if !ok {
		return core.Part{}, ErrNotFound
	}
	cp := core.Part{
		Identifier: p.Identifier,
		Tags:       make(map[string]string, len(p.Tags)),
		Contents:   append([]byte(nil), p.Contents...),
	}
	for k, v := range p.Tags {
		cp.Tags[k] = v
	}
	return cp, nil
}
