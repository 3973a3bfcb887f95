package core

import "context"

// CapabilityType fixes an agent's analysis role at construction. The set is
// closed; new capabilities are added as variants of one factory rather than
// through subclassing chains.
type CapabilityType string

// Known capability types.
const (
	CapabilityResearch  CapabilityType = "research"
	CapabilityPattern   CapabilityType = "pattern_detection"
	CapabilitySynthesis CapabilityType = "synthesis"
)

// LifecycleState tracks where an agent is in the orchestrator's state
// machine: Sleeping -> (wake) -> Active -> (sleep) -> Sleeping and
// Active -> (kill) -> Terminated. Terminated is terminal; a replacement is a
// new identity, never a resurrection.
type LifecycleState string

// Agent lifecycle states.
const (
	StateSleeping   LifecycleState = "sleeping"
	StateActive     LifecycleState = "active"
	StateTerminated LifecycleState = "terminated"
)

// Specialization carries the tunable parameters that differentiate agents of
// the same capability. Unit-range params (thresholds, confidences) stay in
// [0,1] under evolutionary perturbation; count-valued params above 1 scale
// proportionally and never drop below 1.
type Specialization struct {
	Focus          string             `json:"focus,omitempty"`
	PromptTemplate string             `json:"prompt_template,omitempty"`
	Params         map[string]float64 `json:"params,omitempty"`
}

// Clone deep-copies the specialization so parent traits can diverge from a
// spawned child's without aliasing.
func (s Specialization) Clone() Specialization {
	cp := s
	if s.Params != nil {
		cp.Params = make(map[string]float64, len(s.Params))
		for k, v := range s.Params {
			cp.Params[k] = v
		}
	}
	return cp
}

// Agent is the uniform capability interface every specialization implements.
//
// Process must not mutate the graph store directly: all graph writes return
// through the orchestrator so provenance and events stay centralized. It may
// consult the graph and call out to an injected Reasoner; a capability
// failure surfaces as a ProcessingError which the orchestrator treats as a
// fitness penalty, never as a fatal error.
type Agent interface {
	// ID returns the stable identity of this agent. Identity persists
	// across sleep/wake and is destroyed permanently on termination.
	ID() string

	// Capability reports the fixed analysis role of this agent.
	Capability() CapabilityType

	// Specialization returns a copy of the agent's tunable parameters.
	Specialization() Specialization

	// Subscriptions lists the event types this agent reacts to.
	Subscriptions() []EventType

	// Wake begins accepting events. It returns once the agent is ready for
	// dispatch; waking an already awake agent is an error.
	Wake() error

	// Sleep stops acceptance of new events. Already-dispatched work may
	// still complete.
	Sleep() error

	// Process reacts to a single event, returning zero or one output.
	// A nil output with nil error means the agent had nothing to say.
	Process(ctx context.Context, ev Event) (*AgentOutput, error)
}

// Reasoner is the pluggable natural-language reasoning boundary each agent
// capability calls out to. Implementations may fail or time out; the caller
// owns retry and penalty policy.
type Reasoner interface {
	// Generate produces free text for a prompt given supporting context
	// extracted from the graph.
	Generate(ctx context.Context, prompt string, context []string) (string, error)
}
