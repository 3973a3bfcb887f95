package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the payload carried by an Event.
type EventType string

// Event types published by the graph store and the orchestrator.
const (
	// EventNodeCreated is published once per successful AddNode.
	EventNodeCreated EventType = "node_created"
	// EventNodeUpdated is published once per successful UpdateNode.
	EventNodeUpdated EventType = "node_updated"
	// EventNodeRemoved is published once per successful RemoveNode.
	EventNodeRemoved EventType = "node_removed"
	// EventEdgeCreated is published once per successful AddEdge.
	EventEdgeCreated EventType = "edge_created"
	// EventEdgeRemoved is published for every edge dropped by a cascade.
	EventEdgeRemoved EventType = "edge_removed"
	// EventInsightReady carries a validated output to the surfacing boundary.
	EventInsightReady EventType = "insight_ready"
	// EventConflictEscalated marks outputs that need human resolution.
	EventConflictEscalated EventType = "conflict_escalated"
)

// Event is the unit of communication between the graph store, the
// orchestrator and external subscribers. After publication it must be
// treated as immutable. Exactly one of the payload pointers is set for
// graph events; InsightReady and ConflictEscalated carry outputs.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Node    *Node          `json:"node,omitempty"`
	Edge    *Edge          `json:"edge,omitempty"`
	Output  *AgentOutput   `json:"output,omitempty"`
	Outputs []*AgentOutput `json:"outputs,omitempty"` // conflict escalations
	Result  *ValidationResult
}

// NewEvent creates a bare event of the given type with a fresh id and a UTC
// timestamp. Prefer the typed constructors below.
func NewEvent(t EventType) Event {
	return Event{ID: NewID(), Type: t, Timestamp: time.Now().UTC()}
}

// NewNodeEvent creates a node lifecycle event carrying a copy of the node.
func NewNodeEvent(t EventType, n *Node) Event {
	ev := NewEvent(t)
	ev.Node = n.Clone()
	return ev
}

// NewEdgeEvent creates an edge lifecycle event carrying a copy of the edge.
func NewEdgeEvent(t EventType, e *Edge) Event {
	ev := NewEvent(t)
	ev.Edge = e.Clone()
	return ev
}

// NewInsightEvent wraps a validated output for the surfacing boundary.
func NewInsightEvent(out *AgentOutput, res *ValidationResult) Event {
	ev := NewEvent(EventInsightReady)
	ev.Output = out
	ev.Result = res
	return ev
}

// NewConflictEvent marks a set of passed-but-contradictory outputs as needing
// human resolution. None of the outputs is dropped or silently merged.
func NewConflictEvent(outputs []*AgentOutput) Event {
	ev := NewEvent(EventConflictEscalated)
	ev.Outputs = outputs
	return ev
}

// NewID generates a new unique identifier used for nodes, edges, agents,
// outputs and events throughout the engine.
func NewID() string { return uuid.NewString() }

// Handler consumes a single event. A non-nil error is logged and counted by
// the bus but never propagated to the publisher or to other handlers.
type Handler func(ev Event) error

// Bus is the in-process publish/subscribe dispatcher decoupling graph
// mutation from agent reaction. Delivery is fan-out to all handlers
// registered for the event type at publish time; there is no replay.
// For a single publishing goroutine, events reach each handler in publish
// order; no ordering is guaranteed across independent publishers.
type Bus interface {
	Subscribe(t EventType, h Handler)
	Publish(ev Event)
}
