package agent

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/graphmind/core"
)

// SynthesisAgent is the designated reconciliation capability. It does not
// subscribe to graph events; the orchestrator invokes Reconcile when two or
// more passed outputs make incompatible claims about the same node set.
//
// Specialization params:
//   - "confidence": base declared confidence for reconciled claims (0.5)
type SynthesisAgent struct {
	BaseAgent
	deps
}

var _ core.Agent = (*SynthesisAgent)(nil)

func newSynthesisAgent(spec core.Specialization, d deps) *SynthesisAgent {
	return &SynthesisAgent{
		BaseAgent: newBaseAgent(core.CapabilitySynthesis, spec, nil),
		deps:      d,
	}
}

// Process is a no-op: synthesis work arrives through Reconcile.
func (a *SynthesisAgent) Process(_ context.Context, _ core.Event) (*core.AgentOutput, error) {
	return nil, nil
}

// Reconcile produces a single output merging the conflicting claims. The
// union of the inputs' evidence is cited; assertions that contradict an
// already retained assertion are dropped so the reconciliation itself is
// internally consistent. The result must be re-validated by the caller.
func (a *SynthesisAgent) Reconcile(ctx context.Context, conflicting []*core.AgentOutput) (*core.AgentOutput, error) {
	if len(conflicting) < 2 {
		return nil, NewProcessingError(a.ID(), errors.New("reconcile requires at least two outputs"))
	}

	var claims []string
	var contexts []string
	seen := make(map[core.NodeID]bool)
	var evidence []core.NodeID
	var assertions []core.Assertion
	var confSum float64

	for _, out := range conflicting {
		claims = append(claims, out.Claim)
		contexts = append(contexts, out.Claim)
		confSum += out.Confidence
		for _, id := range out.Evidence {
			if !seen[id] {
				seen[id] = true
				evidence = append(evidence, id)
			}
		}
	next:
		for _, cand := range out.Assertions {
			for _, kept := range assertions {
				if cand.Contradicts(kept) {
					continue next
				}
			}
			assertions = append(assertions, cand)
		}
	}

	prompt := "Reconcile the following contradictory findings into one consistent statement:\n" + strings.Join(claims, "\n")

	start := time.Now()
	claim, err := a.reasoner.Generate(ctx, prompt, contexts)
	if err != nil {
		a.logger.Warn("reasoner call failed", "agent_id", a.ID(), "duration", time.Since(start), "error", err)
		return nil, NewProcessingError(a.ID(), err)
	}

	// blend the base confidence with the mean of the conflicting claims
	confidence := clamp01(0.5*a.param("confidence", 0.5) + 0.5*confSum/float64(len(conflicting)))
	out := core.NewAgentOutput(a.ID(), confidence, claim, evidence)
	out.Assertions = assertions
	return out, nil
}
