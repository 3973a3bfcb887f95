package graphmind_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphmind"
	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/internal/testutil"
	"github.com/hupe1980/graphmind/orchestrator"
)

func newQuietMind(t *testing.T) *graphmind.GraphMind {
	t.Helper()
	mind, err := graphmind.New(func(o *graphmind.Options) {
		cfg := orchestrator.DefaultConfig
		cfg.EvolutionInterval = 0
		cfg.GraceTimeout = 0
		o.OrchestratorConfig = cfg
	})
	require.NoError(t, err)
	return mind
}

func TestGraphMind_EndToEndInsight(t *testing.T) {
	mind := newQuietMind(t)

	var (
		mu       sync.Mutex
		insights []*core.AgentOutput
	)
	mind.OnInsight(func(out *core.AgentOutput, res *core.ValidationResult) {
		mu.Lock()
		defer mu.Unlock()
		insights = append(insights, out)
	})

	agentID, err := mind.SpawnAgent(core.CapabilityResearch, core.Specialization{
		Focus:  "distributed systems",
		Params: map[string]float64{"evidence_floor": 0.5},
	})
	require.NoError(t, err)
	require.NoError(t, mind.WakeAgent(agentID))

	// Seeded before Start so only the second node triggers a dispatch.
	_, err = mind.CreateNode(testutil.NewNodeBuilder().
		Text("Raft elects a single leader per term.").
		Embedding(0.9, 0.1, 0.0).
		Build())
	require.NoError(t, err)

	require.NoError(t, mind.Start(context.Background()))
	defer mind.Stop()

	_, err = mind.CreateNode(testutil.NewNodeBuilder().
		Text("Paxos reaches agreement through quorum voting.").
		Embedding(0.85, 0.15, 0.0).
		Build())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(insights) == 1
	}, 3*time.Second, 10*time.Millisecond, "the woken agent should surface one validated insight")

	mu.Lock()
	out := insights[0]
	mu.Unlock()
	assert.Equal(t, agentID, out.AgentID)
	assert.NotEmpty(t, out.Evidence)

	// The surfaced insight is on the record and feedback reaches its producer.
	require.NoError(t, mind.RecordFeedback(out.ID, core.FeedbackUsed))
	rec, err := mind.History().Get(out.ID)
	require.NoError(t, err)
	assert.Len(t, rec.Feedback, 1)
}

func TestGraphMind_AgentLifecycleThroughFacade(t *testing.T) {
	mind := newQuietMind(t)
	require.NoError(t, mind.Start(context.Background()))
	defer mind.Stop()

	id, err := mind.SpawnAgent(core.CapabilityPattern, core.Specialization{Focus: "clusters"})
	require.NoError(t, err)

	require.NoError(t, mind.WakeAgent(id))
	require.NoError(t, mind.SleepAgent(id))
	require.NoError(t, mind.KillAgent(id))
	assert.Error(t, mind.WakeAgent(id), "terminated agents stay terminated")
}

func TestGraphMind_GraphAccessorSharesStore(t *testing.T) {
	mind := newQuietMind(t)
	defer mind.Stop()

	spec := testutil.NewNodeBuilder().Text("shared store").Build()
	id, err := mind.CreateNode(spec)
	require.NoError(t, err)

	node, err := mind.Graph().GetNode(id)
	require.NoError(t, err)
	assert.Equal(t, "shared store", node.Text)

	other, err := mind.CreateNode(testutil.NewNodeBuilder().Text("neighbor").Build())
	require.NoError(t, err)

	_, err = mind.CreateEdge(core.EdgeSpec{
		From:       id,
		To:         other,
		Rel:        core.RelRelatedTo,
		Confidence: 0.7,
	})
	require.NoError(t, err)

	nodes, err := mind.Graph().Traverse(id, 1)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}
