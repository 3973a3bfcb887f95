package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/history"
)

// GroundingCheck requires every claim to cite at least one existing node as
// evidence. An output citing no evidence, or citing an unknown identifier,
// fails.
type GroundingCheck struct {
	Graph core.GraphStore
}

// Name returns the check identifier used in diagnostics.
func (c *GroundingCheck) Name() string { return "grounding" }

// Evaluate verifies the cited evidence resolves to live nodes.
func (c *GroundingCheck) Evaluate(_ context.Context, out *core.AgentOutput) Verdict {
	if len(out.Evidence) == 0 {
		return Verdict{Issues: []core.Issue{{
			Check:    c.Name(),
			Severity: core.SeverityHigh,
			Message:  "claim cites no evidence",
		}}}
	}

	for _, id := range out.Evidence {
		if !c.Graph.HasNodes(id) {
			return Verdict{Issues: []core.Issue{{
				Check:    c.Name(),
				Severity: core.SeverityHigh,
				Message:  fmt.Sprintf("cited node %s does not exist", id),
			}}}
		}
	}
	return Verdict{Passed: true}
}

// ConsistencyCheck compares the output against prior passed outputs touching
// overlapping nodes. A direct contradiction is flagged at medium severity and
// reported as a conflict for the orchestrator to resolve, but the check still
// counts as passed: a contradiction by itself never dooms the output, it
// escalates it.
type ConsistencyCheck struct {
	History history.History
}

// Name returns the check identifier used in diagnostics.
func (c *ConsistencyCheck) Name() string { return "consistency" }

// Evaluate flags contradictions against overlapping prior insights.
func (c *ConsistencyCheck) Evaluate(_ context.Context, out *core.AgentOutput) Verdict {
	touched := make([]core.NodeID, 0, len(out.Evidence)+2*len(out.Assertions))
	touched = append(touched, out.Evidence...)
	for _, a := range out.Assertions {
		touched = append(touched, a.Subject, a.Object)
	}

	v := Verdict{Passed: true}
	for _, prior := range c.History.Touching(touched) {
		if prior.Output.ID == out.ID {
			continue
		}
		if contradicts(out, prior.Output) {
			v.Conflicting = append(v.Conflicting, prior.Output.ID)
			v.Issues = append(v.Issues, core.Issue{
				Check:    c.Name(),
				Severity: core.SeverityMedium,
				Message:  fmt.Sprintf("contradicts prior output %s", prior.Output.ID),
			})
		}
	}
	return v
}

func contradicts(a, b *core.AgentOutput) bool {
	for _, x := range a.Assertions {
		for _, y := range b.Assertions {
			if x.Contradicts(y) {
				return true
			}
		}
	}
	return false
}

// NoveltyCheck rejects near-duplicates: the claim is compared against the
// same agent's recent passed outputs using token-set Jaccard similarity and
// fails as redundant above the threshold.
type NoveltyCheck struct {
	History   history.History
	Threshold float64
	Window    int
}

// Name returns the check identifier used in diagnostics.
func (c *NoveltyCheck) Name() string { return "novelty" }

// Evaluate compares the claim against the agent's recent insights.
func (c *NoveltyCheck) Evaluate(_ context.Context, out *core.AgentOutput) Verdict {
	tokens := tokenSet(out.Claim)
	for _, prior := range c.History.Recent(out.AgentID, c.Window) {
		if prior.Output.ID == out.ID {
			continue
		}
		if sim := jaccard(tokens, tokenSet(prior.Output.Claim)); sim >= c.Threshold {
			return Verdict{Issues: []core.Issue{{
				Check:    c.Name(),
				Severity: core.SeverityLow,
				Message:  fmt.Sprintf("near-duplicate of output %s (similarity %.2f)", prior.Output.ID, sim),
			}}}
		}
	}
	return Verdict{Passed: true}
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for tok := range a {
		if b[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
