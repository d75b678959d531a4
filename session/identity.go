package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/ingest"
)

// Persona captures the character traits an identity document declares.
type Persona struct {
	Demeanor string   `json:"demeanor,omitempty"`
	Motto    string   `json:"motto,omitempty"`
	Traits   []string `json:"traits,omitempty"`
	Goals    []string `json:"goals,omitempty"`
}

// ChatProfile holds the behavioral configuration used when driving a chat
// model on behalf of the agent.
type ChatProfile struct {
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Guardrails   []string `json:"guardrails,omitempty"`
	QuickFacts   []string `json:"quickFacts,omitempty"`
}

// CuratedSummary is a hand-written memory embedded directly in the identity
// document. It is ingested into the retrieval store at session bootstrap.
type CuratedSummary struct {
	Label     string `json:"label"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Identity is an agent's identity document as stored in the blob store.
type Identity struct {
	Version          int                 `json:"version,omitempty"`
	Name             string              `json:"name"`
	Archetype        string              `json:"archetype,omitempty"`
	Persona          Persona             `json:"persona,omitempty"`
	Chat             ChatProfile         `json:"chat,omitempty"`
	MemorySources    []core.MemorySource `json:"memorySources,omitempty"`
	CuratedSummaries []CuratedSummary    `json:"curatedSummaries,omitempty"`
}

// identityEnvelope is the wrapped form some publishers use. The inner
// identity wins when present.
type identityEnvelope struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt string    `json:"createdAt,omitempty"`
	Identity  *Identity `json:"identity,omitempty"`
}

func parseIdentity(raw []byte) (*Identity, error) {
	text := ingest.DecodeText(raw)

	var envelope identityEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Identity != nil {
		return envelope.Identity, nil
	}

	identity := &Identity{}
	if err := json.Unmarshal([]byte(text), identity); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}

	if strings.TrimSpace(identity.Name) == "" {
		return nil, errors.New("identity document has no name")
	}

	return identity, nil
}

// fetchIdentity resolves an identity ref, trying a direct blob read first and
// falling back to the first part of a container.
func (c *Cache) fetchIdentity(ctx context.Context, ref string) (*Identity, error) {
	raw, blobErr := c.blob.Read(ctx, ref)
	if blobErr == nil {
		identity, err := parseIdentity(raw)
		if err == nil {
			return identity, nil
		}

		blobErr = err
	}

	var partErr error

	parts, err := c.blob.ListParts(ctx, ref)
	switch {
	case err != nil:
		partErr = err
	case len(parts) == 0:
		partErr = errors.New("container has no parts")
	default:
		part, err := c.blob.ReadPart(ctx, parts[0].PartID)
		if err != nil {
			partErr = err
		} else {
			identity, err := parseIdentity(part.Contents)
			if err == nil {
				return identity, nil
			}

			partErr = err
		}
	}

	return nil, fmt.Errorf("%w: ref %s: %v", ErrIdentityRetrieval, ref, errors.Join(blobErr, partErr))
}
