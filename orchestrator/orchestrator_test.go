package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/graphmind/bus"
	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/graph"
	"github.com/hupe1980/graphmind/history"
	"github.com/hupe1980/graphmind/internal/testutil"
	"github.com/hupe1980/graphmind/reasoner"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testEngine struct {
	orch  *Orchestrator
	bus   *bus.InMemoryBus
	graph *graph.InMemoryStore
	hist  *history.InMemoryHistory
	mock  *reasoner.MockReasoner
}

func newTestEngine(t *testing.T, cfgFns ...func(cfg *Config)) *testEngine {
	t.Helper()

	eventBus := bus.New()
	store := graph.New(func(o *graph.Options) { o.Bus = eventBus })
	hist := history.NewInMemoryHistory()
	mock := reasoner.NewMockReasoner()

	cfg := DefaultConfig
	cfg.EvolutionInterval = 0 // cycles run manually in tests
	cfg.GraceTimeout = 0
	cfg.DispatchTimeout = 2 * time.Second
	for _, fn := range cfgFns {
		fn(&cfg)
	}

	orch, err := New(func(o *Options) {
		o.Config = cfg
		o.Graph = store
		o.Bus = eventBus
		o.History = hist
		o.Reasoner = mock
	})
	require.NoError(t, err)

	t.Cleanup(eventBus.Close)
	return &testEngine{orch: orch, bus: eventBus, graph: store, hist: hist, mock: mock}
}

// insightSink collects surfaced insight and conflict events.
type insightSink struct {
	mu        sync.Mutex
	insights  []*core.AgentOutput
	conflicts [][]*core.AgentOutput
}

func (s *insightSink) attach(b *bus.InMemoryBus) {
	b.Subscribe(core.EventInsightReady, func(ev core.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.insights = append(s.insights, ev.Output)
		return nil
	})
	b.Subscribe(core.EventConflictEscalated, func(ev core.Event) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.conflicts = append(s.conflicts, ev.Outputs)
		return nil
	})
}

func (s *insightSink) insightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.insights)
}

func (s *insightSink) conflictCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conflicts)
}

func TestNew_RequiresGraphAndBus(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(func(o *Options) { o.Graph = graph.New() })
	assert.Error(t, err)
}

func TestLifecycle_SpawnWakeSleepKill(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{Focus: "storage"})
	require.NoError(t, err)

	fitness, ok := e.orch.Fitness(id)
	require.True(t, ok)
	assert.Equal(t, 1.0, fitness, "fitness starts neutral")

	infos := e.orch.Agents()
	require.Len(t, infos, 1)
	assert.Equal(t, core.StateSleeping, infos[0].State)

	require.NoError(t, e.orch.WakeAgent(id))
	require.NoError(t, e.orch.SleepAgent(id))
	require.NoError(t, e.orch.WakeAgent(id))

	require.NoError(t, e.orch.KillAgent(id))
	assert.Error(t, e.orch.WakeAgent(id), "terminated is terminal")
	assert.Error(t, e.orch.KillAgent(id), "double kill")
	assert.Equal(t, 0, e.orch.Population())

	assert.Error(t, e.orch.WakeAgent("missing"))
}

func TestSpawnAgent_PopulationCap(t *testing.T) {
	e := newTestEngine(t, func(cfg *Config) { cfg.PopulationMax = 2 })

	_, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	_, err = e.orch.SpawnAgent(core.CapabilityPattern, core.Specialization{})
	require.NoError(t, err)

	_, err = e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	assert.Error(t, err, "population cap reached")

	// Terminations free capacity.
	infos := e.orch.Agents()
	require.NoError(t, e.orch.KillAgent(infos[0].ID))
	_, err = e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	assert.NoError(t, err)
}

func TestRouting_ValidatedOutputSurfacesAndRewards(t *testing.T) {
	e := newTestEngine(t)
	sink := &insightSink{}
	sink.attach(e.bus)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	require.NoError(t, e.orch.WakeAgent(id))

	// Seeded before Start so only the second node's event is dispatched.
	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "raft leader election", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)

	require.NoError(t, e.orch.Start(context.Background()))
	defer e.orch.Stop()

	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "paxos quorum rounds", Embedding: []float32{0.9, 0.1}, Confidence: 0.9})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return sink.insightCount() == 1
	}, 3*time.Second, 10*time.Millisecond, "validated output must surface as an insight")

	fitness, ok := e.orch.Fitness(id)
	require.True(t, ok)
	assert.InDelta(t, 1.1, fitness, 1e-9, "validation pass rewards the producer")

	// The insight is recorded for later cross-validation.
	sink.mu.Lock()
	outID := sink.insights[0].ID
	sink.mu.Unlock()
	_, err = e.hist.Get(outID)
	assert.NoError(t, err)
}

func TestRouting_SleepingAgentReceivesNothing(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.orch.Start(context.Background()))
	defer e.orch.Stop()

	_, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)

	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "entry", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, e.mock.Calls(), "sleeping agents are not dispatched")
}

func TestRouting_ProcessingFailurePenalizes(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	require.NoError(t, e.orch.WakeAgent(id))

	// Seed a neighbor before Start so only the trigger event is dispatched;
	// its reasoner call then fails.
	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "seed", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)
	e.mock.FailWith(errors.New("model unavailable"))

	require.NoError(t, e.orch.Start(context.Background()))
	defer e.orch.Stop()

	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "trigger", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		f, _ := e.orch.Fitness(id)
		return f < 1.0-1e-12
	}, 3*time.Second, 10*time.Millisecond)

	f, _ := e.orch.Fitness(id)
	assert.InDelta(t, 0.9, f, 1e-9, "a processing error costs less than a validation failure")
}

func TestValidationFailure_SuppressesAndPenalizes(t *testing.T) {
	e := newTestEngine(t)
	sink := &insightSink{}
	sink.attach(e.bus)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)

	// An ungrounded output fails the pipeline outright.
	out := testutil.NewOutputBuilder(id).Claim("free-floating").Build()
	e.orch.processOutput(context.Background(), out)

	f, _ := e.orch.Fitness(id)
	assert.InDelta(t, 0.85, f, 1e-9)

	_, err = e.hist.Get(out.ID)
	assert.ErrorIs(t, err, history.ErrNotFound, "rejected outputs are not recorded")
	assert.Zero(t, sink.insightCount(), "rejected outputs never surface")
}

func TestFitness_ClampedToBounds(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		e.orch.adjustFitness(id, rewardValidated)
	}
	f, _ := e.orch.Fitness(id)
	assert.Equal(t, 2.0, f, "fitness caps at the upper bound")

	for i := 0; i < 40; i++ {
		e.orch.adjustFitness(id, -penaltyRejected)
	}
	f, _ = e.orch.Fitness(id)
	assert.Equal(t, 0.0, f, "fitness floors at zero")
}

func TestRecordFeedback_AdjustsProducerFitness(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)

	out := testutil.NewOutputBuilder(id).Build()
	require.NoError(t, e.hist.Record(out, &core.ValidationResult{OutputID: out.ID, Passed: true}))

	require.NoError(t, e.orch.RecordFeedback(out.ID, core.FeedbackUsed))
	f, _ := e.orch.Fitness(id)
	assert.InDelta(t, 1.1, f, 1e-9)

	require.NoError(t, e.orch.RecordFeedback(out.ID, core.FeedbackDismissed))
	f, _ = e.orch.Fitness(id)
	assert.InDelta(t, 1.05, f, 1e-9)

	ins, err := e.hist.Get(out.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.FeedbackAction{core.FeedbackUsed, core.FeedbackDismissed}, ins.Feedback)

	assert.Error(t, e.orch.RecordFeedback("missing", core.FeedbackUsed))
	assert.Error(t, e.orch.RecordFeedback(out.ID, "shrugged"))

	// A rejected action leaves no trace on the insight.
	ins, err = e.hist.Get(out.ID)
	require.NoError(t, err)
	assert.Equal(t, []core.FeedbackAction{core.FeedbackUsed, core.FeedbackDismissed}, ins.Feedback)
}

func TestConflict_ReconciledInsightSurfaces(t *testing.T) {
	e := newTestEngine(t)
	sink := &insightSink{}
	sink.attach(e.bus)

	require.NoError(t, e.orch.Start(context.Background()))
	defer e.orch.Stop()

	a, err := e.graph.AddNode(core.NodeSpec{Type: "document", Text: "a", Confidence: 0.9})
	require.NoError(t, err)
	b, err := e.graph.AddNode(core.NodeSpec{Type: "document", Text: "b", Confidence: 0.9})
	require.NoError(t, err)

	priorAgent, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	prior := testutil.NewOutputBuilder(priorAgent).
		Claim("a supports b").
		Evidence(a).
		Assert(a, core.RelSupports, b).Build()
	require.NoError(t, e.hist.Record(prior, &core.ValidationResult{OutputID: prior.ID, Passed: true}))

	challengerAgent, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	challenger := testutil.NewOutputBuilder(challengerAgent).
		Claim("a actually undermines b").
		Evidence(a, b).
		Assert(a, core.RelContradicts, b).Build()

	e.orch.processOutput(context.Background(), challenger)

	// The challenger passed and rewarded, the conflict was reconciled and
	// the merged claim surfaces instead of either side.
	assert.Eventually(t, func() bool {
		return sink.insightCount() == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, sink.conflictCount())

	sink.mu.Lock()
	merged := sink.insights[0]
	sink.mu.Unlock()
	assert.NotEqual(t, challenger.ID, merged.ID)
	assert.NotEqual(t, prior.ID, merged.ID)
	assert.ElementsMatch(t, []core.NodeID{a, b}, merged.Evidence)

	f, _ := e.orch.Fitness(challengerAgent)
	assert.InDelta(t, 1.1, f, 1e-9, "passing validation rewards even when conflicted")
}

// failingReconciler simulates an unavailable synthesis capability.
type failingReconciler struct{}

func (failingReconciler) Reconcile(context.Context, []*core.AgentOutput) (*core.AgentOutput, error) {
	return nil, errors.New("synthesis unavailable")
}

func TestConflict_EscalatesWhenReconciliationFails(t *testing.T) {
	eventBus := bus.New()
	t.Cleanup(eventBus.Close)
	store := graph.New(func(o *graph.Options) { o.Bus = eventBus })
	hist := history.NewInMemoryHistory()

	cfg := DefaultConfig
	cfg.EvolutionInterval = 0
	cfg.GraceTimeout = 0

	orch, err := New(func(o *Options) {
		o.Config = cfg
		o.Graph = store
		o.Bus = eventBus
		o.History = hist
		o.Reasoner = reasoner.NewMockReasoner()
		o.Reconciler = failingReconciler{}
	})
	require.NoError(t, err)

	sink := &insightSink{}
	sink.attach(eventBus)

	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop()

	a, err := store.AddNode(core.NodeSpec{Type: "document", Text: "a", Confidence: 0.9})
	require.NoError(t, err)
	b, err := store.AddNode(core.NodeSpec{Type: "document", Text: "b", Confidence: 0.9})
	require.NoError(t, err)

	agentID, err := orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)

	prior := testutil.NewOutputBuilder(agentID).
		Claim("a supports b").
		Evidence(a).
		Assert(a, core.RelSupports, b).Build()
	require.NoError(t, hist.Record(prior, &core.ValidationResult{OutputID: prior.ID, Passed: true}))

	challenger := testutil.NewOutputBuilder(agentID).
		Claim("evidence shows a undermines b").
		Evidence(a, b).
		Assert(a, core.RelContradicts, b).Build()

	orch.processOutput(context.Background(), challenger)

	assert.Eventually(t, func() bool {
		return sink.conflictCount() == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, sink.insightCount(), "neither side surfaces while escalated")

	// Both sides carry the needs-human-resolution marker until resolved.
	escalated := hist.Escalated()
	require.Len(t, escalated, 2)

	require.NoError(t, orch.ResolveConflict(prior.ID))
	require.NoError(t, orch.ResolveConflict(challenger.ID))
	assert.Empty(t, hist.Escalated())
}

func TestStartStop_Clean(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.orch.Start(context.Background()))
	assert.Error(t, e.orch.Start(context.Background()), "double start")

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	require.NoError(t, e.orch.WakeAgent(id))

	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "entry", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)

	e.orch.Stop()
	e.orch.Stop() // idempotent

	infos := e.orch.Agents()
	require.Len(t, infos, 1)
	assert.Equal(t, core.StateSleeping, infos[0].State, "stop puts active agents to sleep")
}

func TestRestart_DoesNotDuplicateDispatches(t *testing.T) {
	e := newTestEngine(t)
	sink := &insightSink{}
	sink.attach(e.bus)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	require.NoError(t, e.orch.WakeAgent(id))

	// Seeded before the first Start so its event is never dispatched.
	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "seed entry", Embedding: []float32{1, 0}, Confidence: 0.9})
	require.NoError(t, err)

	require.NoError(t, e.orch.Start(context.Background()))
	e.orch.Stop()
	require.NoError(t, e.orch.Start(context.Background()))
	defer e.orch.Stop()
	require.NoError(t, e.orch.WakeAgent(id))

	_, err = e.graph.AddNode(core.NodeSpec{Type: "document", Text: "fresh entry", Embedding: []float32{0.9, 0.1}, Confidence: 0.9})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return sink.insightCount() == 1 },
		3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	// One event, one dispatch: a doubled subscription would call the
	// reasoner twice and the duplicate's novelty failure would cost -0.15.
	assert.Equal(t, 1, e.mock.Calls())
	assert.Equal(t, 1, sink.insightCount())
	f, _ := e.orch.Fitness(id)
	assert.InDelta(t, 1.1, f, 1e-9)
}

func TestStop_WaitsOutConcurrentRouting(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.orch.SpawnAgent(core.CapabilityResearch, core.Specialization{})
	require.NoError(t, err)
	require.NoError(t, e.orch.WakeAgent(id))
	require.NoError(t, e.orch.Start(context.Background()))

	// Keep mutations flowing while Stop runs so routing races shutdown;
	// goleak fails the package if a dispatch goroutine escapes Stop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_, _ = e.graph.AddNode(core.NodeSpec{
				Type:       "document",
				Text:       fmt.Sprintf("entry %d", i),
				Embedding:  []float32{1, float32(i) * 0.01},
				Confidence: 0.9,
			})
		}
	}()

	time.Sleep(5 * time.Millisecond)
	e.orch.Stop()
	<-done
}
