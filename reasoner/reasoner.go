// Package reasoner contains implementations of the core.Reasoner boundary:
// the pluggable natural-language capability agents call out to. The canonical
// interface lives in core to keep domain contracts central; provider-backed
// adapters live in the subpackages (anthropic, openai) and a deterministic
// MockReasoner lives here for tests and examples.
package reasoner

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/graphmind/core"
)

// MockReasoner is a lightweight in-memory Reasoner useful for tests and
// examples. Responses are canned per prompt; unknown prompts receive a
// deterministic fallback. A forced error simulates capability failure.
type MockReasoner struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	calls     int
}

var _ core.Reasoner = (*MockReasoner)(nil)

// NewMockReasoner constructs an empty mock.
func NewMockReasoner() *MockReasoner {
	return &MockReasoner{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockReasoner) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Generate call return err (nil restores
// normal operation).
func (m *MockReasoner) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many Generate invocations were made.
func (m *MockReasoner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate implements core.Reasoner.
func (m *MockReasoner) Generate(ctx context.Context, prompt string, _ []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return fmt.Sprintf("Mock response to: %s", prompt), nil
}
