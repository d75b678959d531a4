package retrieval

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hupe1980/agentmem/core"
)

// The store file is a single JSON object of id-keyed entry tuples:
//
//	{"documents": [[id, document], ...], "vectors": [[id, vector], ...]}
//
// Entries are written sorted by id so the file is stable across rewrites.

type storePayload struct {
	Documents []documentEntry `json:"documents"`
	Vectors   []vectorEntry   `json:"vectors"`
}

type documentEntry struct {
	ID       string
	Document core.Document
}

func (e documentEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Document})
}

func (e *documentEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &e.ID); err != nil {
		return fmt.Errorf("document entry id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Document); err != nil {
		return fmt.Errorf("document entry %s: %w", e.ID, err)
	}
	return nil
}

type vectorEntry struct {
	ID     string
	Vector []float64
}

func (e vectorEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.ID, e.Vector})
}

func (e *vectorEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &e.ID); err != nil {
		return fmt.Errorf("vector entry id: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Vector); err != nil {
		return fmt.Errorf("vector entry %s: %w", e.ID, err)
	}
	return nil
}

func encodePayload(documents map[string]core.Document, vectors map[string][]float64) ([]byte, error) {
	payload := storePayload{
		Documents: make([]documentEntry, 0, len(documents)),
		Vectors:   make([]vectorEntry, 0, len(vectors)),
	}
	for id, doc := range documents {
		payload.Documents = append(payload.Documents, documentEntry{ID: id, Document: doc})
	}
	for id, vec := range vectors {
		payload.Vectors = append(payload.Vectors, vectorEntry{ID: id, Vector: vec})
	}
	sort.Slice(payload.Documents, func(i, j int) bool { return payload.Documents[i].ID < payload.Documents[j].ID })
	sort.Slice(payload.Vectors, func(i, j int) bool { return payload.Vectors[i].ID < payload.Vectors[j].ID })
	return json.MarshalIndent(payload, "", "  ")
}

func decodePayload(data []byte) (map[string]core.Document, map[string][]float64, error) {
	var payload storePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, err
	}
	documents := make(map[string]core.Document, len(payload.Documents))
	for _, entry := range payload.Documents {
		documents[entry.ID] = entry.Document
	}
	vectors := make(map[string][]float64, len(payload.Vectors))
	for _, entry := range payload.Vectors {
		vectors[entry.ID] = entry.Vector
	}
	return documents, vectors, nil
}
