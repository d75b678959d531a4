package session

import (
	"sync"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/pointer"
	"github.com/hupe1980/agentmem/retrieval"
)

// State is the cached session for a single agent. The identity document and
// retrieval store are fixed for the lifetime of the session; history, the
// latest summary ref, and the pointer index are updated as sync and persist
// operations run.
type State struct {
	AgentID     string
	IdentityRef string
	Identity    *Identity
	Store       *retrieval.Store

	mu               sync.Mutex
	loadedRefs       map[string]bool
	recentHistory    []core.ChatMessage
	latestSummaryRef string
	index            *pointer.Index
}

func newState(agentID, identityRef string, identity *Identity, store *retrieval.Store) *State {
	return &State{
		AgentID:     agentID,
		IdentityRef: identityRef,
		Identity:    identity,
		Store:       store,
		loadedRefs:  make(map[string]bool),
	}
}

// IsLoaded reports whether the given ref (or source key) has already been
// ingested into this session.
func (s *State) IsLoaded(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadedRefs[key]
}

// MarkLoaded records that a ref has been processed so subsequent syncs skip it.
func (s *State) MarkLoaded(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadedRefs[key] = true
}

// History returns a copy of the recovered conversation history.
func (s *State) History() []core.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]core.ChatMessage, len(s.recentHistory))
	copy(history, s.recentHistory)

	return history
}

// SetHistory replaces the conversation history wholesale.
func (s *State) SetHistory(history []core.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentHistory = make([]core.ChatMessage, len(history))
	copy(s.recentHistory, history)
}

// LatestSummaryRef returns the ref of the most recent summary payload the
// session knows about, or "" if none has been seen.
func (s *State) LatestSummaryRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latestSummaryRef
}

func (s *State) setLatestSummaryRef(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latestSummaryRef = ref
}

// Index returns the cached pointer index, or nil if the agent's pointer has
// never resolved to the indexed format.
func (s *State) Index() *pointer.Index {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.index
}

func (s *State) setIndex(idx *pointer.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = idx
}
