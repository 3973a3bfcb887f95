package testutil

import (
	"github.com/hupe1980/graphmind/core"
)

// NodeBuilder provides a fluent helper for constructing node specs in tests.
// Example:
//
//	spec := NewNodeBuilder().Text("raft consensus notes").Confidence(0.9).Build()
//
// Chain only the parts you need; sensible defaults are applied.
type NodeBuilder struct {
	spec core.NodeSpec
}

// NewNodeBuilder creates a builder with type "document" and confidence 0.8.
func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{spec: core.NodeSpec{Type: "document", Confidence: 0.8}}
}

// Type sets the node type (chainable).
func (b *NodeBuilder) Type(t core.NodeType) *NodeBuilder { b.spec.Type = t; return b }

// Text sets the extracted text (chainable).
func (b *NodeBuilder) Text(t string) *NodeBuilder { b.spec.Text = t; return b }

// Payload sets the opaque content blob (chainable).
func (b *NodeBuilder) Payload(p []byte) *NodeBuilder { b.spec.Payload = p; return b }

// Embedding sets the embedding vector (chainable).
func (b *NodeBuilder) Embedding(e ...float32) *NodeBuilder { b.spec.Embedding = e; return b }

// Confidence sets the source confidence (chainable).
func (b *NodeBuilder) Confidence(c float64) *NodeBuilder { b.spec.Confidence = c; return b }

// Source sets the provenance source (chainable).
func (b *NodeBuilder) Source(s string) *NodeBuilder { b.spec.Source = s; return b }

// Build returns the assembled spec.
func (b *NodeBuilder) Build() core.NodeSpec { return b.spec }
