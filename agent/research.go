package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/internal/util"
)

const defaultResearchPrompt = `Relate the new {{.Type}} entry to the existing knowledge{{if .Focus}} about {{.Focus}}{{end}}. New entry: {{.Text}}`

// ResearchAgent reacts to node creation and update events. It looks up the
// most similar existing nodes, asks the reasoner to relate the new entry to
// them and emits a claim citing the consulted nodes as evidence.
//
// Specialization params:
//   - "neighbors": how many similar nodes to consult (default 3)
//   - "evidence_floor": minimum similarity for a neighbor to be cited (0.5)
//   - "confidence": base declared confidence (0.6)
type ResearchAgent struct {
	BaseAgent
	deps
}

var _ core.Agent = (*ResearchAgent)(nil)

func newResearchAgent(spec core.Specialization, d deps) *ResearchAgent {
	if spec.PromptTemplate == "" {
		spec.PromptTemplate = defaultResearchPrompt
	}
	return &ResearchAgent{
		BaseAgent: newBaseAgent(core.CapabilityResearch, spec, []core.EventType{core.EventNodeCreated, core.EventNodeUpdated}),
		deps:      d,
	}
}

// Process produces zero or one output for a node event. Capability failures
// surface as *ProcessingError; the agent never mutates the graph.
func (a *ResearchAgent) Process(ctx context.Context, ev core.Event) (*core.AgentOutput, error) {
	if ev.Node == nil {
		return nil, nil
	}

	topK := int(a.param("neighbors", 3))
	similar, err := a.graph.FindSimilar(ev.Node.ID, topK)
	if err != nil {
		return nil, NewProcessingError(a.ID(), fmt.Errorf("similarity lookup: %w", err))
	}
	if len(similar) == 0 {
		// nothing to relate the new entry to
		return nil, nil
	}

	evidenceFloor := a.param("evidence_floor", 0.5)
	evidence := []core.NodeID{ev.Node.ID}
	var assertions []core.Assertion
	var contexts []string
	var scoreSum float64

	for _, sim := range similar {
		contexts = append(contexts, sim.Node.Text)
		if sim.Score < evidenceFloor {
			continue
		}
		evidence = append(evidence, sim.Node.ID)
		assertions = append(assertions, core.Assertion{Subject: ev.Node.ID, Predicate: core.RelRelatedTo, Object: sim.Node.ID})
		scoreSum += sim.Score
	}

	prompt, err := util.RenderTemplate(a.spec.PromptTemplate, map[string]any{
		"Type":  string(ev.Node.Type),
		"Focus": a.spec.Focus,
		"Text":  ev.Node.Text,
	})
	if err != nil {
		return nil, NewProcessingError(a.ID(), fmt.Errorf("render prompt: %w", err))
	}

	start := time.Now()
	claim, err := a.reasoner.Generate(ctx, prompt, contexts)
	if err != nil {
		a.logger.Warn("reasoner call failed", "agent_id", a.ID(), "duration", time.Since(start), "error", err)
		return nil, NewProcessingError(a.ID(), err)
	}
	a.logger.Debug("reasoner call completed", "agent_id", a.ID(), "duration", time.Since(start))

	confidence := a.param("confidence", 0.6)
	if cited := len(evidence) - 1; cited > 0 {
		confidence = clamp01(confidence + 0.2*(scoreSum/float64(cited)))
	}

	out := core.NewAgentOutput(a.ID(), confidence, claim, evidence)
	out.Assertions = assertions
	if len(similar) > 0 {
		out.Actions = []core.SuggestedAction{{Kind: "link", Target: similar[0].Node.ID, Detail: "closest existing entry"}}
	}
	return out, nil
}
