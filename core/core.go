package core

import "time"

// ChatMessage is a single conversational turn exchanged with an agent.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant" or "system"
	Content string `json:"content"`
}

// SourceKind discriminates how an external memory object is stored.
type SourceKind string

const (
	// SourceKindBlob addresses a single immutable blob.
	SourceKindBlob SourceKind = "blob"
	// SourceKindContainerPatch addresses one named part of a container.
	SourceKindContainerPatch SourceKind = "containerPatch"
)

// MemorySource declares an external object an agent identity wants ingested
// into its retrieval store on session bootstrap.
type MemorySource struct {
	ID          string     `json:"id"`
	Kind        SourceKind `json:"kind"`
	Ref         string     `json:"ref"`
	Description string     `json:"description,omitempty"`
}

// Key returns the dedup key used to guard against re-ingesting a source.
// Falls back to a kind-prefixed ref when no explicit id is set.
func (s MemorySource) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return string(s.Kind) + ":" + s.Ref
}

// Document is a unit of retrievable memory. Metadata is an open key/value map
// carrying at least a timestamp and a type; documents ingested from external
// storage additionally carry provenance (see WithProvenance).
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// Provenance links a document back to the immutable stored object it was
// ingested from.
type Provenance struct {
	Ref  string
	Kind SourceKind
}

// provenanceKey is the metadata key provenance is stored under. Stored as a
// plain map so it survives JSON persistence round trips losslessly.
const provenanceKey = "provenance"

// WithProvenance returns metadata with provenance attached. The input map is
// not mutated; a nil map is allocated.
func WithProvenance(metadata map[string]any, p Provenance) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out[provenanceKey] = map[string]any{
		"ref":  p.Ref,
		"kind": string(p.Kind),
	}
	return out
}

// Provenance extracts the document's provenance, if any. It tolerates both
// freshly attached and JSON round-tripped metadata.
func (d Document) Provenance() (Provenance, bool) {
	raw, ok := d.Metadata[provenanceKey]
	if !ok {
		return Provenance{}, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return Provenance{}, false
	}
	ref, _ := m["ref"].(string)
	kind, _ := m["kind"].(string)
	if ref == "" {
		return Provenance{}, false
	}
	return Provenance{Ref: ref, Kind: SourceKind(kind)}, true
}

// Timestamp returns the document's metadata timestamp or the zero time when
// absent or malformed.
func (d Document) Timestamp() time.Time {
	raw, ok := d.Metadata["timestamp"].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// SearchResult is a retrieved document paired with its similarity score.
type SearchResult struct {
	ID         string
	Similarity float64
	Document   Document
}
