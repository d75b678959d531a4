package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/model"
	"github.com/hupe1980/agentmem/session"
)

const (
	// DefaultThreshold is the number of exchanges after which a buffer is
	// summarized automatically.
	DefaultThreshold = 10
	// persistTail is how many trailing messages are stored with a summary.
	persistTail = 10
	// trimTail is how many trailing messages survive an automatic
	// summarization for conversational continuity.
	trimTail = 2
)

// Options configures a Pipeline.
type Options struct {
	// Threshold is the exchange count that triggers automatic summarization.
	Threshold int
	// Logger receives pipeline diagnostics, including detached failures.
	Logger logging.Logger
	// OnAutoSummary, when set, is invoked after every detached summarization
	// attempt with the resulting pointer ref or error.
	OnAutoSummary func(agentID, ref string, err error)
}

// Pipeline accumulates per-agent conversation buffers and turns them into
// persisted summaries. At most one summarization runs per agent at a time;
// a second trigger while one is in flight is dropped, not queued.
type Pipeline struct {
	mu       sync.Mutex
	buffers  map[string][]core.ChatMessage
	locks    map[string]bool
	sessions *session.Cache
	model    model.Completer
	limit    int
	logger   logging.Logger
	onAuto   func(agentID, ref string, err error)
}

// NewPipeline creates a pipeline persisting through the given session cache
// and summarizing with the given completer.
func NewPipeline(sessions *session.Cache, completer model.Completer, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		Threshold: DefaultThreshold,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pipeline{
		buffers:  make(map[string][]core.ChatMessage),
		locks:    make(map[string]bool),
		sessions: sessions,
		model:    completer,
		limit:    opts.Threshold,
		logger:   logging.OrNoOp(opts.Logger),
		onAuto:   opts.OnAutoSummary,
	}
}

// History seeds the agent's buffer if it is empty and returns a copy of it.
// A non-empty callerHistory wins over the session's recovered history and is
// mirrored back into the session state.
func (p *Pipeline) History(s *session.State, callerHistory []core.ChatMessage) []core.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	buffer := p.buffers[s.AgentID]
	if len(buffer) == 0 {
		seed := callerHistory
		if len(seed) > 0 {
			s.SetHistory(seed)
		} else {
			seed = s.History()
		}

		buffer = make([]core.ChatMessage, len(seed))
		copy(buffer, seed)
		p.buffers[s.AgentID] = buffer
	}

	out := make([]core.ChatMessage, len(buffer))
	copy(out, buffer)

	return out
}

// Buffered reports the number of messages currently buffered for an agent.
func (p *Pipeline) Buffered(agentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.buffers[agentID])
}

// Record appends one user/assistant exchange to the agent's buffer. When the
// buffer reaches twice the threshold and no summarization is in flight, one
// is started detached; Record itself never blocks on model or storage calls,
// and detached failures are logged only.
func (p *Pipeline) Record(ctx context.Context, s *session.State, userMsg, assistantMsg string) {
	p.mu.Lock()

	buffer := p.buffers[s.AgentID]
	if len(buffer) == 0 {
		buffer = s.History()
	}

	buffer = append(buffer,
		core.ChatMessage{Role: "user", Content: userMsg},
		core.ChatMessage{Role: "assistant", Content: assistantMsg},
	)
	p.buffers[s.AgentID] = buffer

	trigger := len(buffer) >= 2*p.limit && !p.locks[s.AgentID]
	p.mu.Unlock()

	if !trigger {
		return
	}

	go p.autoSummarize(context.WithoutCancel(ctx), s.AgentID)
}

func (p *Pipeline) autoSummarize(ctx context.Context, agentID string) {
	if !p.tryLock(agentID) {
		return
	}
	defer p.unlock(agentID)

	history := p.snapshot(agentID)
	if len(history) == 0 {
		return
	}

	p.logger.Info("Auto-summarizing conversation", "agent_id", agentID, "messages", len(history))

	summary, err := p.generate(ctx, history)
	if err != nil {
		p.logger.Error("Auto-summarization failed", "agent_id", agentID, "error", err)
		p.notify(agentID, "", err)

		return
	}

	ref, err := p.sessions.PersistSummary(ctx, agentID, session.SummaryInput{
		Label:   "Chat Summary - " + time.Now().UTC().Format(time.RFC3339),
		Content: summary,
		History: tail(history, persistTail),
	})
	if err != nil {
		p.logger.Error("Auto-summary persist failed", "agent_id", agentID, "error", err)
		p.notify(agentID, "", err)

		return
	}

	p.mu.Lock()
	if buffer := p.buffers[agentID]; len(buffer) >= 2*p.limit {
		p.buffers[agentID] = tail(buffer, trimTail)
	}
	p.mu.Unlock()

	p.logger.Info("Auto-summary persisted", "agent_id", agentID, "ref", ref)
	p.notify(agentID, ref, nil)
}

// Flush summarizes and persists whatever is buffered for an agent, clearing
// the buffer on success and returning the new pointer ref. An empty buffer
// or an in-flight summarization returns "" without doing any work.
func (p *Pipeline) Flush(ctx context.Context, agentID string) (string, error) {
	p.mu.Lock()
	if p.locks[agentID] {
		p.mu.Unlock()
		p.logger.Debug("Flush skipped, summarization in flight", "agent_id", agentID)

		return "", nil
	}

	buffer := p.buffers[agentID]
	if len(buffer) == 0 {
		p.mu.Unlock()
		return "", nil
	}

	history := make([]core.ChatMessage, len(buffer))
	copy(history, buffer)
	p.locks[agentID] = true
	p.mu.Unlock()

	defer p.unlock(agentID)

	summary, err := p.generate(ctx, history)
	if err != nil {
		return "", err
	}

	ref, err := p.sessions.PersistSummary(ctx, agentID, session.SummaryInput{
		Label:   "Chat Summary (End of Session) - " + time.Now().UTC().Format(time.RFC3339),
		Content: summary,
		History: tail(history, persistTail),
	})
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	delete(p.buffers, agentID)
	p.mu.Unlock()

	p.logger.Info("Session flushed", "agent_id", agentID, "ref", ref)

	return ref, nil
}

// generate asks the model for a condensed factual summary of the transcript.
func (p *Pipeline) generate(ctx context.Context, history []core.ChatMessage) (string, error) {
	var sb strings.Builder

	sb.WriteString("Summarize the following conversation segment into a concise, factual memory log.\n")
	sb.WriteString("Focus on key events, facts learned, and decisions made.\n")
	sb.WriteString("Do not include \"User said\" or \"AI said\", write it as a narrative or list of facts.\n\n")

	for _, msg := range history {
		sb.WriteString(strings.ToUpper(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	summary, err := p.model.Complete(ctx, "", []core.ChatMessage{{Role: "user", Content: sb.String()}})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("generate summary: model returned no content")
	}

	return summary, nil
}

func (p *Pipeline) tryLock(agentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.locks[agentID] {
		return false
	}

	p.locks[agentID] = true

	return true
}

func (p *Pipeline) unlock(agentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.locks, agentID)
}

func (p *Pipeline) snapshot(agentID string) []core.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	buffer := p.buffers[agentID]
	out := make([]core.ChatMessage, len(buffer))
	copy(out, buffer)

	return out
}

func (p *Pipeline) notify(agentID, ref string, err error) {
	if p.onAuto != nil {
		p.onAuto(agentID, ref, err)
	}
}

func tail(messages []core.ChatMessage, n int) []core.ChatMessage {
	if len(messages) <= n {
		out := make([]core.ChatMessage, len(messages))
		copy(out, messages)

		return out
	}

	out := make([]core.ChatMessage, n)
	copy(out, messages[len(messages)-n:])

	return out
}
