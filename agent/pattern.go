package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/graphmind/core"
)

// PatternAgent reacts to new edges. It walks the neighborhood of the edge
// source and, when the reachable cluster is large enough, asks the reasoner
// to describe the emerging structure, citing every cluster member.
//
// Specialization params:
//   - "depth": traversal depth from the edge source (default 2)
//   - "min_cluster": minimum cluster size worth reporting (default 3)
//   - "confidence": base declared confidence (0.55)
type PatternAgent struct {
	BaseAgent
	deps
}

var _ core.Agent = (*PatternAgent)(nil)

func newPatternAgent(spec core.Specialization, d deps) *PatternAgent {
	return &PatternAgent{
		BaseAgent: newBaseAgent(core.CapabilityPattern, spec, []core.EventType{core.EventEdgeCreated}),
		deps:      d,
	}
}

// Process inspects the neighborhood created by a new edge and reports a
// cluster when it crosses the configured size.
func (a *PatternAgent) Process(ctx context.Context, ev core.Event) (*core.AgentOutput, error) {
	if ev.Edge == nil {
		return nil, nil
	}

	depth := int(a.param("depth", 2))
	cluster, err := a.graph.Traverse(ev.Edge.From, depth)
	if err != nil {
		return nil, NewProcessingError(a.ID(), fmt.Errorf("traverse: %w", err))
	}
	if len(cluster) < int(a.param("min_cluster", 3)) {
		return nil, nil
	}

	evidence := make([]core.NodeID, 0, len(cluster))
	contexts := make([]string, 0, len(cluster))
	for _, n := range cluster {
		evidence = append(evidence, n.ID)
		contexts = append(contexts, n.Text)
	}

	prompt := fmt.Sprintf("Describe the pattern connecting %d related entries rooted at a new %s relationship.", len(cluster), ev.Edge.Rel)

	start := time.Now()
	claim, err := a.reasoner.Generate(ctx, prompt, contexts)
	if err != nil {
		a.logger.Warn("reasoner call failed", "agent_id", a.ID(), "duration", time.Since(start), "error", err)
		return nil, NewProcessingError(a.ID(), err)
	}

	out := core.NewAgentOutput(a.ID(), a.param("confidence", 0.55), claim, evidence)
	out.Assertions = []core.Assertion{{Subject: ev.Edge.From, Predicate: core.RelRelatedTo, Object: ev.Edge.To}}
	out.Actions = []core.SuggestedAction{{Kind: "review_cluster", Target: ev.Edge.From, Detail: fmt.Sprintf("cluster of %d", len(cluster))}}
	return out, nil
}
