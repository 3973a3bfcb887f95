// Package history records the passed outputs of the engine. The validation
// pipeline consults it for consistency (prior passed outputs touching
// overlapping nodes) and novelty (an agent's recent claims); the orchestrator
// uses it to mark conflicting outputs as needing human resolution and to
// track explicit feedback. The canonical History interface lives here with
// the in-memory implementation; swap in a durable backend for retention.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/graphmind/core"
)

// ErrNotFound is returned when no insight exists for the given output id.
var ErrNotFound = fmt.Errorf("insight not found")

// Insight is one passed output together with its validation verdict and the
// lifecycle markers accumulated afterwards.
type Insight struct {
	Output     *core.AgentOutput
	Result     *core.ValidationResult
	RecordedAt time.Time
	Escalated  bool
	Feedback   []core.FeedbackAction
}

// History stores passed outputs for later cross-validation and feedback.
type History interface {
	// Record stores a passed output with its validation result.
	Record(out *core.AgentOutput, res *core.ValidationResult) error

	// Get returns the insight for an output id or ErrNotFound.
	Get(outputID string) (*Insight, error)

	// Recent returns up to limit of the agent's most recent insights,
	// newest first.
	Recent(agentID string, limit int) []*Insight

	// Touching returns all insights whose evidence or assertions reference
	// any of the given nodes, oldest first.
	Touching(ids []core.NodeID) []*Insight

	// MarkEscalated tags the output as needing human resolution.
	MarkEscalated(outputID string) error

	// Resolve clears the escalation marker after an external decision.
	Resolve(outputID string) error

	// Escalated lists all currently escalated insights.
	Escalated() []*Insight

	// AddFeedback appends an explicit user feedback action.
	AddFeedback(outputID string, action core.FeedbackAction) error
}

// InMemoryHistory is a process-local History guarded by an RWMutex. Per-agent
// recency lists are bounded so memory stays proportional to the population,
// not to total runtime.
type InMemoryHistory struct {
	mu       sync.RWMutex
	insights map[string]*Insight // outputID -> insight
	order    []string            // record order, oldest first
	byAgent  map[string][]string // agentID -> outputIDs, oldest first
	window   int
}

var _ History = (*InMemoryHistory)(nil)

// Options configures an InMemoryHistory.
type Options struct {
	// Window bounds how many insights are retained per agent.
	Window int
}

// NewInMemoryHistory constructs an empty history.
func NewInMemoryHistory(optFns ...func(o *Options)) *InMemoryHistory {
	opts := Options{Window: 64}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryHistory{
		insights: make(map[string]*Insight),
		byAgent:  make(map[string][]string),
		window:   opts.Window,
	}
}

// Record stores a passed output. Recording the same output id twice replaces
// the stored verdict but keeps the original position.
func (h *InMemoryHistory) Record(out *core.AgentOutput, res *core.ValidationResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.insights[out.ID]; !exists {
		h.order = append(h.order, out.ID)
		ids := append(h.byAgent[out.AgentID], out.ID)
		if len(ids) > h.window {
			// Escalated insights are pinned until resolved; the victim is
			// the oldest unescalated entry, and the window runs over while
			// every older insight awaits a human decision.
			for i := 0; i < len(ids)-1; i++ {
				if ins, ok := h.insights[ids[i]]; ok && ins.Escalated {
					continue
				}
				h.dropLocked(ids[i])
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		h.byAgent[out.AgentID] = ids
	}

	h.insights[out.ID] = &Insight{Output: out, Result: res, RecordedAt: time.Now().UTC()}
	return nil
}

// Get returns the insight for an output id or ErrNotFound.
func (h *InMemoryHistory) Get(outputID string) (*Insight, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ins, ok := h.insights[outputID]
	if !ok {
		return nil, ErrNotFound
	}
	return ins, nil
}

// Recent returns up to limit insights of one agent, newest first.
func (h *InMemoryHistory) Recent(agentID string, limit int) []*Insight {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := h.byAgent[agentID]
	result := make([]*Insight, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(result) < limit; i-- {
		if ins, ok := h.insights[ids[i]]; ok {
			result = append(result, ins)
		}
	}
	return result
}

// Touching returns insights referencing any of the given nodes, oldest first.
func (h *InMemoryHistory) Touching(ids []core.NodeID) []*Insight {
	wanted := make(map[core.NodeID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []*Insight
	for _, oid := range h.order {
		ins, ok := h.insights[oid]
		if !ok {
			continue
		}
		if touchesAny(ins.Output, wanted) {
			result = append(result, ins)
		}
	}
	return result
}

// MarkEscalated tags the output as needing human resolution.
func (h *InMemoryHistory) MarkEscalated(outputID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ins, ok := h.insights[outputID]
	if !ok {
		return ErrNotFound
	}
	ins.Escalated = true
	return nil
}

// Resolve clears the escalation marker after an external decision.
func (h *InMemoryHistory) Resolve(outputID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ins, ok := h.insights[outputID]
	if !ok {
		return ErrNotFound
	}
	ins.Escalated = false
	return nil
}

// Escalated lists all currently escalated insights, oldest first.
func (h *InMemoryHistory) Escalated() []*Insight {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var result []*Insight
	for _, oid := range h.order {
		if ins, ok := h.insights[oid]; ok && ins.Escalated {
			result = append(result, ins)
		}
	}
	return result
}

// AddFeedback appends an explicit user feedback action to the insight.
func (h *InMemoryHistory) AddFeedback(outputID string, action core.FeedbackAction) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ins, ok := h.insights[outputID]
	if !ok {
		return ErrNotFound
	}
	ins.Feedback = append(ins.Feedback, action)
	return nil
}

// dropLocked removes an evicted insight from the lookup and order structures.
func (h *InMemoryHistory) dropLocked(outputID string) {
	delete(h.insights, outputID)
	for i, oid := range h.order {
		if oid == outputID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

func touchesAny(out *core.AgentOutput, wanted map[core.NodeID]bool) bool {
	for _, id := range out.Evidence {
		if wanted[id] {
			return true
		}
	}
	for _, a := range out.Assertions {
		if wanted[a.Subject] || wanted[a.Object] {
			return true
		}
	}
	return false
}
