// Package graphmind provides a high-level façade over the knowledge graph,
// event bus, validation pipeline, and agent orchestrator, enabling rapid
// construction of self-organizing knowledge systems. Most applications
// interact with this package by:
//  1. Creating a GraphMind via New() (optionally overriding default in-memory services)
//  2. Spawning and waking agents with the desired capabilities
//  3. Feeding knowledge in through CreateNode/CreateEdge and consuming
//     validated insights via OnInsight
//
// The façade delegates supervision to orchestrator.Orchestrator while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a real
// reasoner backend and a structured logger.
package graphmind

import (
	"context"

	"github.com/hupe1980/graphmind/bus"
	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/graph"
	"github.com/hupe1980/graphmind/history"
	"github.com/hupe1980/graphmind/logging"
	"github.com/hupe1980/graphmind/orchestrator"
	"github.com/hupe1980/graphmind/reasoner"
	"github.com/hupe1980/graphmind/validate"
)

// Options configures the GraphMind instance.
type Options struct {
	// OrchestratorConfig tunes supervision: dispatch concurrency, queue
	// sizing, and evolutionary pressure.
	OrchestratorConfig orchestrator.Config

	// BusQueueSize sets the per-subscriber event buffer.
	BusQueueSize int

	// Reasoner is the generative backend handed to agents. Defaults to the
	// deterministic mock, which keeps local setups free of credentials.
	Reasoner core.Reasoner

	// History stores validated insights. Defaults to in-memory.
	History history.History

	// Pipeline validates agent outputs. Defaults to the standard battery.
	Pipeline *validate.Pipeline

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// GraphMind is the high-level façade aggregating the graph store, event bus,
// and orchestrator.
type GraphMind struct {
	opts  Options
	bus   *bus.InMemoryBus
	graph *graph.InMemoryStore
	hist  history.History
	orch  *orchestrator.Orchestrator
}

// New creates a new GraphMind instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*GraphMind, error) {
	opts := Options{
		OrchestratorConfig: orchestrator.DefaultConfig,
		BusQueueSize:       256,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Reasoner == nil {
		opts.Reasoner = reasoner.NewMockReasoner()
	}

	if opts.History == nil {
		opts.History = history.NewInMemoryHistory()
	}

	eventBus := bus.New(func(o *bus.Options) {
		o.QueueSize = opts.BusQueueSize
		o.Logger = opts.Logger
	})

	store := graph.New(func(o *graph.Options) {
		o.Bus = eventBus
		o.Logger = opts.Logger
	})

	orch, err := orchestrator.New(func(o *orchestrator.Options) {
		o.Config = opts.OrchestratorConfig
		o.Graph = store
		o.Bus = eventBus
		o.History = opts.History
		o.Pipeline = opts.Pipeline
		o.Reasoner = opts.Reasoner
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &GraphMind{
		opts:  opts,
		bus:   eventBus,
		graph: store,
		hist:  opts.History,
		orch:  orch,
	}, nil
}

// Start launches the orchestrator's workers. Agents spawned beforehand begin
// receiving events once woken.
func (m *GraphMind) Start(ctx context.Context) error {
	return m.orch.Start(ctx)
}

// Stop shuts down the orchestrator and then the event bus, in that order so
// in-flight outputs drain before delivery stops.
func (m *GraphMind) Stop() {
	m.orch.Stop()
	m.bus.Close()
}

// CreateNode adds a knowledge node through the ingestion boundary and
// returns its assigned identity. The resulting event fans out to subscribed
// agents.
func (m *GraphMind) CreateNode(spec core.NodeSpec) (core.NodeID, error) {
	return m.graph.AddNode(spec)
}

// UpdateNode revises a node's content, bumping its version and archiving the
// prior payload.
func (m *GraphMind) UpdateNode(id core.NodeID, payload []byte, text string, embedding []float32) error {
	return m.graph.UpdateNode(id, payload, text, embedding)
}

// CreateEdge adds a typed relationship between two existing nodes.
func (m *GraphMind) CreateEdge(spec core.EdgeSpec) (core.EdgeID, error) {
	return m.graph.AddEdge(spec)
}

// SpawnAgent creates a new agent in the Sleeping state and returns its ID.
func (m *GraphMind) SpawnAgent(capability core.CapabilityType, spec core.Specialization) (string, error) {
	return m.orch.SpawnAgent(capability, spec)
}

// WakeAgent activates an agent so it starts receiving events.
func (m *GraphMind) WakeAgent(agentID string) error { return m.orch.WakeAgent(agentID) }

// SleepAgent suspends an agent without losing its fitness or specialization.
func (m *GraphMind) SleepAgent(agentID string) error { return m.orch.SleepAgent(agentID) }

// KillAgent permanently terminates an agent.
func (m *GraphMind) KillAgent(agentID string) error { return m.orch.KillAgent(agentID) }

// RecordFeedback reports downstream usage of an insight, feeding the
// producing agent's fitness.
func (m *GraphMind) RecordFeedback(outputID string, action core.FeedbackAction) error {
	return m.orch.RecordFeedback(outputID, action)
}

// ResolveConflict records a human decision on an escalated insight.
func (m *GraphMind) ResolveConflict(outputID string) error {
	return m.orch.ResolveConflict(outputID)
}

// OnInsight registers a callback for every validated insight that survives
// conflict resolution.
func (m *GraphMind) OnInsight(fn func(out *core.AgentOutput, res *core.ValidationResult)) {
	m.bus.Subscribe(core.EventInsightReady, func(ev core.Event) error {
		fn(ev.Output, ev.Result)
		return nil
	})
}

// OnConflict registers a callback for conflicts escalated to human
// resolution.
func (m *GraphMind) OnConflict(fn func(outputs []*core.AgentOutput)) {
	m.bus.Subscribe(core.EventConflictEscalated, func(ev core.Event) error {
		fn(ev.Outputs)
		return nil
	})
}

// Graph exposes the underlying knowledge graph store.
func (m *GraphMind) Graph() core.GraphStore { return m.graph }

// History exposes the insight history.
func (m *GraphMind) History() history.History { return m.hist }

// Orchestrator exposes the underlying orchestrator for advanced supervision,
// such as manual evolution cycles.
func (m *GraphMind) Orchestrator() *orchestrator.Orchestrator { return m.orch }
