package pointer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentmem/core"
)

func TestDecode_Index(t *testing.T) {
	data := []byte(`{
		"version": 1,
		"chat": {"latestSummaryRef": "blob-summary", "lastUpdated": "2025-06-01T12:00:00Z"},
		"rpg": {"pastRuns": [{"ref": "blob-run", "timestamp": "2025-05-01T00:00:00Z", "outcomeFloor": 7, "victory": true}]}
	}`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, KindIndex, decoded.Kind)
	require.NotNil(t, decoded.Index)

	assert.Equal(t, 1, decoded.Index.Version)
	assert.Equal(t, "blob-summary", decoded.Index.Chat.LatestSummaryRef)
	require.Len(t, decoded.Index.RPG.PastRuns, 1)
	assert.Equal(t, 7, decoded.Index.RPG.PastRuns[0].OutcomeFloor)
	assert.True(t, decoded.Index.RPG.PastRuns[0].Victory)
	assert.Nil(t, decoded.Index.RPG.ActiveRun)
}

func TestDecode_LegacySummary(t *testing.T) {
	data := []byte(`{
		"label": "Chat Summary",
		"content": "the agent discussed pulsars",
		"history": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]
	}`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, KindLegacySummary, decoded.Kind)
	require.NotNil(t, decoded.Summary)

	assert.Equal(t, "the agent discussed pulsars", decoded.Summary.Content)
	assert.Len(t, decoded.Summary.History, 2)
	assert.Nil(t, decoded.Index)
}

func TestDecode_IndexWinsOverLegacy(t *testing.T) {
	// a document carrying both shapes must decode as an index
	data := []byte(`{
		"version": 1,
		"chat": {"lastUpdated": "2025-06-01T12:00:00Z"},
		"rpg": {"pastRuns": []},
		"content": "stray legacy field"
	}`)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindIndex, decoded.Kind)
}

func TestDecode_UnknownShape(t *testing.T) {
	_, err := Decode([]byte(`{"foo": "bar"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestNewIndex(t *testing.T) {
	idx := NewIndex("blob-seed")

	assert.Equal(t, Version, idx.Version)
	assert.Equal(t, "blob-seed", idx.Chat.LatestSummaryRef)
	assert.False(t, idx.Chat.LastUpdated.IsZero())
	assert.NotNil(t, idx.RPG.PastRuns)
	assert.Empty(t, idx.RPG.PastRuns)

	empty := NewIndex("")
	assert.Empty(t, empty.Chat.LatestSummaryRef)
}

func TestIndex_Roundtrip(t *testing.T) {
	idx := NewIndex("blob-seed")
	idx.RPG.ActiveRun = &ActiveRun{Ref: "blob-active", LastUpdated: time.Now().UTC()}
	idx.RPG.PastRuns = append(idx.RPG.PastRuns, RunRecord{Ref: "blob-run", Timestamp: time.Now().UTC(), OutcomeFloor: 3})

	data, err := json.Marshal(idx)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, KindIndex, decoded.Kind)
	assert.Equal(t, "blob-active", decoded.Index.RPG.ActiveRun.Ref)
	require.Len(t, decoded.Index.RPG.PastRuns, 1)
}

func TestIndex_Clone(t *testing.T) {
	idx := NewIndex("blob-seed")
	idx.RPG.ActiveRun = &ActiveRun{Ref: "blob-active"}
	idx.RPG.PastRuns = append(idx.RPG.PastRuns, RunRecord{Ref: "blob-run"})

	clone := idx.Clone()
	clone.Chat.LatestSummaryRef = "blob-other"
	clone.RPG.ActiveRun.Ref = "blob-changed"
	clone.RPG.PastRuns = append(clone.RPG.PastRuns, RunRecord{Ref: "blob-extra"})

	assert.Equal(t, "blob-seed", idx.Chat.LatestSummaryRef)
	assert.Equal(t, "blob-active", idx.RPG.ActiveRun.Ref)
	assert.Len(t, idx.RPG.PastRuns, 1)
}

func TestSummaryPayload_JSONShape(t *testing.T) {
	payload := SummaryPayload{
		AgentID:   "agent-1",
		Label:     "Chat Summary",
		Content:   "facts",
		History:   []core.ChatMessage{{Role: "user", Content: "hi"}},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"agentId", "label", "content", "history", "createdAt"} {
		assert.Contains(t, raw, key)
	}
}
