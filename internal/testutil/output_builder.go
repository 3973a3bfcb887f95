package testutil

import (
	"github.com/hupe1980/graphmind/core"
)

// OutputBuilder provides a fluent helper for constructing agent outputs in
// tests. Example:
//
//	out := NewOutputBuilder("agent-1").Claim("A relates to B").Evidence(nodeID).Build()
type OutputBuilder struct {
	out *core.AgentOutput
}

// NewOutputBuilder creates a builder for the given agent with confidence 0.8.
func NewOutputBuilder(agentID string) *OutputBuilder {
	return &OutputBuilder{out: core.NewAgentOutput(agentID, 0.8, "claim", nil)}
}

// ID overrides the auto-generated output ID (chainable). Use mainly in tests
// where determinism matters.
func (b *OutputBuilder) ID(id string) *OutputBuilder { b.out.ID = id; return b }

// Claim sets the human-readable claim (chainable).
func (b *OutputBuilder) Claim(c string) *OutputBuilder { b.out.Claim = c; return b }

// Confidence sets the declared confidence (chainable).
func (b *OutputBuilder) Confidence(c float64) *OutputBuilder { b.out.Confidence = c; return b }

// Evidence appends cited node ids (chainable).
func (b *OutputBuilder) Evidence(ids ...core.NodeID) *OutputBuilder {
	b.out.Evidence = append(b.out.Evidence, ids...)
	return b
}

// Assert appends a subject-predicate-object assertion (chainable).
func (b *OutputBuilder) Assert(subject core.NodeID, predicate core.RelType, object core.NodeID) *OutputBuilder {
	b.out.Assertions = append(b.out.Assertions, core.Assertion{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	})
	return b
}

// Build returns the assembled output.
func (b *OutputBuilder) Build() *core.AgentOutput { return b.out }
