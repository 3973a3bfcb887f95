// Package agent contains the Agent Runtime: the closed set of capability
// variants (research, pattern-detection, synthesis) behind the uniform
// core.Agent lifecycle. Agents never mutate the graph store directly and
// never touch their own fitness; they read the graph, call out to an injected
// reasoning capability and hand candidate outputs back to the orchestrator.
package agent

import (
	"errors"
	"sync"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/logging"
)

// BaseAgent bundles the shared identity, specialization and wake/sleep
// lifecycle. Embed it in concrete capability implementations and supply a
// Process method to satisfy core.Agent. All exported methods are
// goroutine-safe.
type BaseAgent struct {
	id         string
	capability core.CapabilityType
	spec       core.Specialization
	subs       []core.EventType

	mu    sync.Mutex
	awake bool
}

func newBaseAgent(capability core.CapabilityType, spec core.Specialization, subs []core.EventType) BaseAgent {
	return BaseAgent{
		id:         core.NewID(),
		capability: capability,
		spec:       spec,
		subs:       subs,
	}
}

// ID returns the stable identity of this agent.
func (b *BaseAgent) ID() string { return b.id }

// Capability reports the fixed analysis role of this agent.
func (b *BaseAgent) Capability() core.CapabilityType { return b.capability }

// Specialization returns a copy of the agent's tunable parameters.
func (b *BaseAgent) Specialization() core.Specialization { return b.spec.Clone() }

// Subscriptions lists the event types this agent reacts to.
func (b *BaseAgent) Subscriptions() []core.EventType {
	subs := make([]core.EventType, len(b.subs))
	copy(subs, b.subs)
	return subs
}

// Wake transitions the agent into the accepting state. Only the first call on
// a sleeping agent succeeds; waking an awake agent is an error.
func (b *BaseAgent) Wake() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.awake {
		return errors.New("agent is already awake")
	}
	b.awake = true
	return nil
}

// Sleep stops acceptance of new events. Already-dispatched work may still
// complete; sleeping an already sleeping agent is an error.
func (b *BaseAgent) Sleep() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.awake {
		return errors.New("agent is not awake")
	}
	b.awake = false
	return nil
}

// Awake reports whether the agent currently accepts events.
func (b *BaseAgent) Awake() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awake
}

// param returns a specialization parameter or the given default when unset.
func (b *BaseAgent) param(key string, def float64) float64 {
	if v, ok := b.spec.Params[key]; ok {
		return v
	}
	return def
}

// deps carries the injected collaborators shared by all capability variants.
type deps struct {
	graph    core.GraphStore
	reasoner core.Reasoner
	logger   logging.Logger
}
