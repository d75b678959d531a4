// Package pointer defines the versioned index document stored behind an
// agent's registry pointer and the decoding of its on-wire representations.
//
// A pointer historically referenced a flat chat-summary object; it now
// references a versioned index linking the latest chat summary and the run
// history. Decode models the two shapes as an ordered list of attempts
// yielding a tagged result, so callers never deal with nested fallback
// handlers.
package pointer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentmem/core"
)

// Version is the current index document version.
const Version = 1

// ChatIndex tracks the agent's latest chat summary blob.
type ChatIndex struct {
	LatestSummaryRef string    `json:"latestSummaryRef,omitempty"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// ActiveRun references an in-progress run snapshot.
type ActiveRun struct {
	Ref         string    `json:"ref"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// RunRecord is one completed run.
type RunRecord struct {
	Ref          string    `json:"ref"`
	Timestamp    time.Time `json:"timestamp"`
	OutcomeFloor int       `json:"outcomeFloor"`
	Victory      bool      `json:"victory"`
}

// RunIndex tracks the agent's run history under the same pointer as chat.
type RunIndex struct {
	ActiveRun *ActiveRun  `json:"activeRun,omitempty"`
	PastRuns  []RunRecord `json:"pastRuns"`
}

// Index is the single durable source of truth for an agent's latest state.
// It is written only copy-on-write: a new blob followed by a registry
// repoint, never mutated in place remotely.
type Index struct {
	Version int       `json:"version"`
	Chat    ChatIndex `json:"chat"`
	RPG     RunIndex  `json:"rpg"`
}

// NewIndex synthesizes a fresh v1 index. A non-empty seedSummaryRef preserves
// continuity for agents whose pointer predates the indexed format.
func NewIndex(seedSummaryRef string) *Index {
	return &Index{
		Version: Version,
		Chat: ChatIndex{
			LatestSummaryRef: seedSummaryRef,
			LastUpdated:      time.Now().UTC(),
		},
		RPG: RunIndex{PastRuns: []RunRecord{}},
	}
}

// Clone returns a deep copy, so callers can stage mutations without touching
// the cached index until a repoint commits.
func (i *Index) Clone() *Index {
	out := &Index{
		Version: i.Version,
		Chat:    i.Chat,
		RPG:     RunIndex{PastRuns: make([]RunRecord, len(i.RPG.PastRuns))},
	}
	copy(out.RPG.PastRuns, i.RPG.PastRuns)
	if i.RPG.ActiveRun != nil {
		run := *i.RPG.ActiveRun
		out.RPG.ActiveRun = &run
	}
	return out
}

// SummaryPayload is the chat-summary document format. Legacy pointers
// reference this shape directly; indexed pointers reference it through
// Index.Chat.LatestSummaryRef.
type SummaryPayload struct {
	AgentID   string             `json:"agentId"`
	Label     string             `json:"label"`
	Content   string             `json:"content"`
	History   []core.ChatMessage `json:"history"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Kind tags the storage representation a pointer document decoded to.
type Kind int

const (
	// KindUnknown marks a document matching no known representation.
	KindUnknown Kind = iota
	// KindIndex marks a versioned index document.
	KindIndex
	// KindLegacySummary marks the flat pre-index chat-summary shape.
	KindLegacySummary
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindLegacySummary:
		return "legacySummary"
	default:
		return "unknown"
	}
}

// Decoded is the tagged result of decoding a pointer document. Exactly one
// of Index / Summary is set according to Kind.
type Decoded struct {
	Kind    Kind
	Index   *Index
	Summary *SummaryPayload
}

// decodeAttempt probes one representation, reporting whether it matched.
type decodeAttempt func(probe map[string]json.RawMessage, data []byte) (Decoded, bool, error)

// Attempts are ordered: the indexed shape wins over the legacy shape when a
// document could be read as either.
var decodeAttempts = []decodeAttempt{decodeIndex, decodeLegacySummary}

// Decode parses a pointer document into its tagged representation. Documents
// matching neither shape return an error.
func Decode(data []byte) (Decoded, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Decoded{}, fmt.Errorf("pointer document is not an object: %w", err)
	}

	for _, attempt := range decodeAttempts {
		decoded, ok, err := attempt(probe, data)
		if err != nil {
			return Decoded{}, err
		}
		if ok {
			return decoded, nil
		}
	}
	return Decoded{}, fmt.Errorf("pointer document matches no known representation")
}

func decodeIndex(probe map[string]json.RawMessage, data []byte) (Decoded, bool, error) {
	if _, ok := probe["version"]; !ok {
		return Decoded{}, false, nil
	}
	if _, ok := probe["chat"]; !ok {
		return Decoded{}, false, nil
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Decoded{}, false, fmt.Errorf("decode index document: %w", err)
	}
	if idx.RPG.PastRuns == nil {
		idx.RPG.PastRuns = []RunRecord{}
	}
	return Decoded{Kind: KindIndex, Index: &idx}, true, nil
}

func decodeLegacySummary(probe map[string]json.RawMessage, data []byte) (Decoded, bool, error) {
	_, hasContent := probe["content"]
	_, hasLabel := probe["label"]
	_, hasHistory := probe["history"]
	if !hasContent && !hasLabel && !hasHistory {
		return Decoded{}, false, nil
	}
	var payload SummaryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Decoded{}, false, fmt.Errorf("decode summary document: %w", err)
	}
	return Decoded{Kind: KindLegacySummary, Summary: &payload}, true, nil
}
