// Package model defines the language-generation collaborator used by the
// summarization pipeline. It is treated as a pure prompt-to-text function;
// provider adapters live in subpackages.
package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentmem/core"
)

// Completer turns a system prompt plus conversation into text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []core.ChatMessage) (string, error)
}

// MockCompleter is a lightweight in-memory Completer useful for tests and
// examples. Responses are keyed on the last message content.
type MockCompleter struct {
	responses map[string]string
}

// NewMockCompleter constructs an empty MockCompleter.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for an input.
func (m *MockCompleter) AddResponse(input, response string) { m.responses[input] = response }

// Complete implements Completer; unknown inputs get a generic echo response.
func (m *MockCompleter) Complete(ctx context.Context, systemPrompt string, messages []core.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	last := messages[len(messages)-1].Content
	if resp, ok := m.responses[last]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", last), nil
}
