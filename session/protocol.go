package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/ingest"
	"github.com/hupe1980/agentmem/pointer"
)

// Sync reconciles a session with the agent's on-chain pointer. knownRef, when
// non-empty, is trusted as the current pointer and saves a registry read.
// Indexed pointers update the cached index and pull in the referenced chat
// summary; legacy flat pointers are applied directly and leave the index
// unset until the next persist migrates them.
func (c *Cache) Sync(ctx context.Context, s *State, knownRef string) error {
	ref := knownRef
	if ref == "" {
		var err error

		ref, err = c.registry.GetPointer(ctx, s.AgentID)
		if err != nil {
			return fmt.Errorf("registry read for %s: %w", s.AgentID, err)
		}
	}

	if ref == "" {
		c.logger.Debug("No pointer set", "agent_id", s.AgentID)
		return nil
	}

	if s.IsLoaded(ref) {
		return nil
	}

	text, err := c.fetchDocumentText(ctx, ref)
	if err != nil {
		return fmt.Errorf("read pointer document %s: %w", ref, err)
	}

	decoded, err := pointer.Decode([]byte(text))
	if err != nil {
		return fmt.Errorf("decode pointer document %s: %w", ref, err)
	}

	c.logger.Debug("Pointer resolved", "agent_id", s.AgentID, "ref", ref, "kind", decoded.Kind.String())

	switch decoded.Kind {
	case pointer.KindIndex:
		if err := c.applyIndex(ctx, s, decoded.Index); err != nil {
			return err
		}
	case pointer.KindLegacySummary:
		if err := c.applySummaryPayload(ctx, s, decoded.Summary, ref); err != nil {
			return err
		}
	}

	s.MarkLoaded(ref)

	return nil
}

func (c *Cache) applyIndex(ctx context.Context, s *State, idx *pointer.Index) error {
	s.setIndex(idx)

	summaryRef := idx.Chat.LatestSummaryRef
	if summaryRef == "" {
		return nil
	}

	s.setLatestSummaryRef(summaryRef)

	if s.IsLoaded(summaryRef) {
		return nil
	}

	adapter := ingest.NewAdapter(s.Store, func(o *ingest.AdapterOptions) {
		o.Logger = c.logger
	})
	if exists, err := adapter.HasBlob(ctx, summaryRef); err == nil && exists {
		s.MarkLoaded(summaryRef)
		return nil
	}

	text, err := c.fetchDocumentText(ctx, summaryRef)
	if err != nil {
		return fmt.Errorf("read summary %s: %w", summaryRef, err)
	}

	var payload pointer.SummaryPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return fmt.Errorf("decode summary %s: %w", summaryRef, err)
	}

	return c.applySummaryPayload(ctx, s, &payload, summaryRef)
}

// applySummaryPayload ingests a summary's content into the retrieval store
// and replaces the session history with the persisted transcript tail.
func (c *Cache) applySummaryPayload(ctx context.Context, s *State, payload *pointer.SummaryPayload, ref string) error {
	if payload.Content != "" {
		label := payload.Label
		if label == "" {
			label = "Latest Summary"
		}

		metadata := map[string]any{
			"source":  "curated-summary",
			"agentId": s.AgentID,
			"label":   label,
		}
		metadata = core.WithProvenance(metadata, core.Provenance{Ref: ref, Kind: core.SourceKindBlob})

		if _, err := s.Store.AddDocument(ctx, payload.Content, metadata); err != nil {
			return fmt.Errorf("ingest summary %s: %w", ref, err)
		}
	}

	if payload.History != nil {
		s.SetHistory(payload.History)
	}

	s.setLatestSummaryRef(ref)
	s.MarkLoaded(ref)

	return nil
}

// fetchDocumentText reads a ref as text, preferring the first container part
// when the ref addresses a container.
func (c *Cache) fetchDocumentText(ctx context.Context, ref string) (string, error) {
	if parts, err := c.blob.ListParts(ctx, ref); err == nil && len(parts) > 0 {
		if part, err := c.blob.ReadPart(ctx, parts[0].PartID); err == nil {
			return ingest.DecodeText(part.Contents), nil
		}
	}

	raw, err := c.blob.Read(ctx, ref)
	if err != nil {
		return "", err
	}

	return ingest.DecodeText(raw), nil
}

// GetOrCreateIndex returns a mutable copy of the session's pointer index,
// synthesizing a fresh one seeded from the known latest summary ref when the
// pointer has never resolved to the indexed format. Mutations take effect
// through SaveIndex.
func (c *Cache) GetOrCreateIndex(s *State) *pointer.Index {
	if idx := s.Index(); idx != nil {
		return idx.Clone()
	}

	return pointer.NewIndex(s.LatestSummaryRef())
}

// loadIndex resolves the current index for an agent without a cached
// session. A legacy flat pointer migrates into a fresh index seeded with the
// legacy summary ref; a missing or unreadable pointer yields an empty index.
func (c *Cache) loadIndex(ctx context.Context, agentID string) *pointer.Index {
	ref, err := c.registry.GetPointer(ctx, agentID)
	if err != nil || ref == "" {
		return pointer.NewIndex("")
	}

	text, err := c.fetchDocumentText(ctx, ref)
	if err != nil {
		c.logger.Warn("Pointer document unreadable, starting fresh index", "agent_id", agentID, "ref", ref, "error", err)
		return pointer.NewIndex("")
	}

	decoded, err := pointer.Decode([]byte(text))
	if err != nil {
		c.logger.Warn("Pointer document undecodable, starting fresh index", "agent_id", agentID, "ref", ref, "error", err)
		return pointer.NewIndex("")
	}

	switch decoded.Kind {
	case pointer.KindIndex:
		return decoded.Index
	case pointer.KindLegacySummary:
		return pointer.NewIndex(ref)
	default:
		return pointer.NewIndex("")
	}
}

// SaveIndex writes the index as a new blob and repoints the agent's registry
// entry at it, returning the new pointer ref. A successful blob write
// followed by a failed repoint returns a RegistryWriteError naming the
// orphaned blob.
func (c *Cache) SaveIndex(ctx context.Context, agentID string, idx *pointer.Index) (string, error) {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}

	ref, err := c.blob.Write(ctx, data, core.WriteOptions{Retention: c.retention, Deletable: true})
	if err != nil {
		return "", fmt.Errorf("write index blob: %w", err)
	}

	tx, err := c.registry.SetPointer(ctx, agentID, ref)
	if err != nil {
		return "", &RegistryWriteError{ContentRef: ref, Err: err}
	}

	c.logger.Info("Pointer updated", "agent_id", agentID, "ref", ref, "tx", tx.Digest)

	return ref, nil
}

// SummaryInput is the material for one persisted chat summary.
type SummaryInput struct {
	// Label defaults to a timestamped chat-summary label.
	Label string
	// Content is the summary text. Required.
	Content string
	// History is the transcript tail persisted alongside the summary. A nil
	// slice leaves the session history untouched on replay.
	History []core.ChatMessage
}

// PersistSummary writes a chat-summary blob, commits an updated index
// pointing at it, and returns the new pointer ref. The superseded summary
// blob is deleted best-effort after the repoint commits; a cached session is
// updated in place so a subsequent sync does not refetch.
func (c *Cache) PersistSummary(ctx context.Context, agentID string, input SummaryInput) (string, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return "", ErrEmptySummary
	}

	now := time.Now().UTC()

	label := input.Label
	if label == "" {
		label = "Chat Summary - " + now.Format(time.RFC3339)
	}

	history := input.History
	if history == nil {
		history = []core.ChatMessage{}
	}

	payload := pointer.SummaryPayload{
		AgentID:   agentID,
		Label:     label,
		Content:   content,
		History:   history,
		CreatedAt: now,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}

	summaryRef, err := c.blob.Write(ctx, data, core.WriteOptions{Retention: c.retention, Deletable: true})
	if err != nil {
		return "", fmt.Errorf("write summary blob: %w", err)
	}

	s := c.Peek(agentID)

	var idx *pointer.Index
	if s != nil {
		idx = c.GetOrCreateIndex(s)
	} else {
		idx = c.loadIndex(ctx, agentID)
	}

	oldSummaryRef := idx.Chat.LatestSummaryRef
	idx.Chat = pointer.ChatIndex{LatestSummaryRef: summaryRef, LastUpdated: now}

	indexRef, err := c.SaveIndex(ctx, agentID, idx)
	if err != nil {
		return "", err
	}

	if s != nil {
		c.applyPersistedSummary(ctx, s, &payload, summaryRef, input.History != nil)
		s.setIndex(idx)
		s.MarkLoaded(indexRef)
	}

	if oldSummaryRef != "" && oldSummaryRef != summaryRef {
		if err := c.blob.Delete(ctx, oldSummaryRef); err != nil {
			c.logger.Warn("Cleanup of superseded summary failed", "agent_id", agentID, "ref", oldSummaryRef, "error", err)
		} else {
			c.logger.Debug("Superseded summary deleted", "agent_id", agentID, "ref", oldSummaryRef)
		}
	}

	return indexRef, nil
}

// applyPersistedSummary mirrors a just-persisted summary into the local
// session. Failures only degrade the cache and are logged.
func (c *Cache) applyPersistedSummary(ctx context.Context, s *State, payload *pointer.SummaryPayload, summaryRef string, replaceHistory bool) {
	metadata := map[string]any{
		"source":  "curated-summary",
		"agentId": s.AgentID,
		"label":   payload.Label,
	}
	metadata = core.WithProvenance(metadata, core.Provenance{Ref: summaryRef, Kind: core.SourceKindBlob})

	if _, err := s.Store.AddDocument(ctx, payload.Content, metadata); err != nil {
		c.logger.Warn("Local summary ingestion failed", "agent_id", s.AgentID, "error", err)
	}

	if replaceHistory {
		s.SetHistory(payload.History)
	}

	s.setLatestSummaryRef(summaryRef)
	s.MarkLoaded(summaryRef)
}

// RunInput is one completed run of the agent's game loop.
type RunInput struct {
	// State is the final run state, stored verbatim as JSON.
	State any
	// OutcomeFloor is the deepest floor reached.
	OutcomeFloor int
	// Victory reports whether the run was won.
	Victory bool
}

// PersistRun archives a completed run: the state snapshot is written as a
// blob, appended to the index's past runs, and the active-run slot is
// cleared. Returns the new pointer ref.
func (c *Cache) PersistRun(ctx context.Context, agentID string, input RunInput) (string, error) {
	now := time.Now().UTC()

	ref, err := c.writeRunState(ctx, input.State)
	if err != nil {
		return "", err
	}

	s := c.Peek(agentID)

	var idx *pointer.Index
	if s != nil {
		idx = c.GetOrCreateIndex(s)
	} else {
		idx = c.loadIndex(ctx, agentID)
	}

	oldActive := idx.RPG.ActiveRun
	idx.RPG.PastRuns = append(idx.RPG.PastRuns, pointer.RunRecord{
		Ref:          ref,
		Timestamp:    now,
		OutcomeFloor: input.OutcomeFloor,
		Victory:      input.Victory,
	})
	idx.RPG.ActiveRun = nil

	indexRef, err := c.SaveIndex(ctx, agentID, idx)
	if err != nil {
		return "", err
	}

	if s != nil {
		s.setIndex(idx)
		s.MarkLoaded(indexRef)
	}

	c.cleanupActiveRun(ctx, agentID, oldActive, ref)

	return indexRef, nil
}

// PersistActiveRun checkpoints an in-progress run, replacing any previous
// active snapshot. Returns the new pointer ref.
func (c *Cache) PersistActiveRun(ctx context.Context, agentID string, state any) (string, error) {
	now := time.Now().UTC()

	ref, err := c.writeRunState(ctx, state)
	if err != nil {
		return "", err
	}

	s := c.Peek(agentID)

	var idx *pointer.Index
	if s != nil {
		idx = c.GetOrCreateIndex(s)
	} else {
		idx = c.loadIndex(ctx, agentID)
	}

	oldActive := idx.RPG.ActiveRun
	idx.RPG.ActiveRun = &pointer.ActiveRun{Ref: ref, LastUpdated: now}

	indexRef, err := c.SaveIndex(ctx, agentID, idx)
	if err != nil {
		return "", err
	}

	if s != nil {
		s.setIndex(idx)
		s.MarkLoaded(indexRef)
	}

	c.cleanupActiveRun(ctx, agentID, oldActive, ref)

	return indexRef, nil
}

func (c *Cache) writeRunState(ctx context.Context, state any) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode run state: %w", err)
	}

	ref, err := c.blob.Write(ctx, data, core.WriteOptions{Retention: c.retention, Deletable: true})
	if err != nil {
		return "", fmt.Errorf("write run state blob: %w", err)
	}

	return ref, nil
}

// cleanupActiveRun deletes a superseded active-run snapshot after the
// repoint commits, unless it was just archived as a past run.
func (c *Cache) cleanupActiveRun(ctx context.Context, agentID string, old *pointer.ActiveRun, newRef string) {
	if old == nil || old.Ref == "" || old.Ref == newRef {
		return
	}

	if err := c.blob.Delete(ctx, old.Ref); err != nil {
		c.logger.Warn("Cleanup of superseded run snapshot failed", "agent_id", agentID, "ref", old.Ref, "error", err)
	}
}
