package core

import (
	"errors"
	"time"
)

// Common graph error taxonomy. Store errors are returned synchronously to the
// caller that attempted the mutation; they are never retried internally.
var (
	// ErrNodeNotFound is returned when a node id does not resolve to a live node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an edge id does not resolve to a live edge.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrUnknownEndpoint is returned when an edge references a node that does
	// not exist at commit time. The insert is rejected atomically; the store
	// never holds a dangling reference.
	ErrUnknownEndpoint = errors.New("unknown edge endpoint")

	// ErrStoreCorrupted indicates an invariant violation (e.g. a duplicate
	// identifier) was detected. The store halts ingestion for this instance;
	// all subsequent mutations fail with this error.
	ErrStoreCorrupted = errors.New("graph store corrupted")

	// ErrInvalidNode is returned when a node candidate is structurally invalid.
	ErrInvalidNode = errors.New("invalid node")
)

// NodeID is a strongly typed unique identifier for graph nodes. Identifiers
// are immutable once assigned and never reused.
type NodeID string

// EdgeID is a strongly typed unique identifier for graph edges.
type EdgeID string

// NodeType tags the kind of entity a node represents.
type NodeType string

// Known node types. The set is open; ingestion may introduce further tags.
const (
	NodeTypeDocument NodeType = "document"
	NodeTypeConcept  NodeType = "concept"
	NodeTypeCodeUnit NodeType = "code_unit"
	NodeTypePerson   NodeType = "person"
	NodeTypeProject  NodeType = "project"
)

// RelType categorizes the directed relationship an edge asserts.
type RelType string

// Known relationship types.
const (
	RelReference   RelType = "reference"
	RelDerivesFrom RelType = "derives_from"
	RelImplements  RelType = "implements"
	RelAuthoredBy  RelType = "authored_by"
	RelRelatedTo   RelType = "related_to"
	RelContradicts RelType = "contradicts"
	RelSupports    RelType = "supports"
)

// Node is a versioned entity in the knowledge graph. Nodes are append-mostly:
// content updates bump Version and preserve the prior payload for diffing
// rather than destructively overwriting it.
type Node struct {
	ID         NodeID    `json:"id"`
	Type       NodeType  `json:"type"`
	Payload    []byte    `json:"payload,omitempty"` // opaque content blob
	Text       string    `json:"text,omitempty"`    // extracted text
	Embedding  []float32 `json:"embedding,omitempty"`
	Confidence float64   `json:"confidence"` // 0.0 - 1.0
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source,omitempty"`
	Author     string    `json:"author,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate store-internal state.
func (n *Node) Clone() *Node {
	cp := *n
	if n.Payload != nil {
		cp.Payload = append([]byte(nil), n.Payload...)
	}
	if n.Embedding != nil {
		cp.Embedding = append([]float32(nil), n.Embedding...)
	}
	return &cp
}

// Edge is a directed, typed relationship between two live nodes. Both
// endpoints must exist at commit time and an edge never outlives either
// endpoint (node removal cascades edge removal).
type Edge struct {
	ID         EdgeID    `json:"id"`
	From       NodeID    `json:"from"`
	To         NodeID    `json:"to"`
	Rel        RelType   `json:"rel"`
	Strength   float64   `json:"strength"`   // 0.0 - 1.0
	Provenance string    `json:"provenance"` // agent id or ingestion path
	Confidence float64   `json:"confidence"` // 0.0 - 1.0
	CreatedAt  time.Time `json:"created_at"`
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	cp := *e
	return &cp
}

// Similarity pairs a node with its similarity score for FindSimilar results.
type Similarity struct {
	Node  *Node   `json:"node"`
	Score float64 `json:"score"`
}

// NodeSpec carries the caller-supplied fields for node creation at the
// ingestion boundary. The store assigns ID, Version and CreatedAt.
type NodeSpec struct {
	Type       NodeType
	Payload    []byte
	Text       string
	Embedding  []float32
	Confidence float64
	Source     string
	Author     string
}

// EdgeSpec carries the caller-supplied fields for edge creation.
type EdgeSpec struct {
	From       NodeID
	To         NodeID
	Rel        RelType
	Strength   float64
	Provenance string
	Confidence float64
}

// GraphStore is the one shared mutable resource of the engine. Implementations
// must serialize writes while allowing unlimited concurrent reads, and a
// reader must never observe an edge whose endpoint node is not yet visible.
// Every successful mutation emits exactly one event on the bus before the
// call returns, in program order per store instance.
type GraphStore interface {
	// AddNode commits a new node and returns its freshly assigned id.
	AddNode(spec NodeSpec) (NodeID, error)

	// UpdateNode replaces a node's content, bumping the version and
	// preserving the prior payload for diffing.
	UpdateNode(id NodeID, payload []byte, text string, embedding []float32) error

	// AddEdge commits a directed edge. Fails with ErrUnknownEndpoint if
	// either endpoint does not exist at commit time.
	AddEdge(spec EdgeSpec) (EdgeID, error)

	// GetNode returns a copy of the node or ErrNodeNotFound.
	GetNode(id NodeID) (*Node, error)

	// GetEdge returns a copy of the edge or ErrEdgeNotFound.
	GetEdge(id EdgeID) (*Edge, error)

	// RemoveNode deletes a node and cascades removal of every edge touching
	// it, atomically with respect to concurrent readers.
	RemoveNode(id NodeID) error

	// Traverse walks breadth-first from id up to maxDepth (inclusive),
	// visiting each node at most once, and returns nodes in visit order.
	Traverse(id NodeID, maxDepth int) ([]*Node, error)

	// FindSimilar returns up to topK nodes ranked by cosine similarity of
	// embeddings against the given node, descending by score, ties broken
	// by insertion order. The anchor node itself is excluded.
	FindSimilar(id NodeID, topK int) ([]Similarity, error)

	// HasNodes reports whether every given id resolves to a live node.
	HasNodes(ids ...NodeID) bool
}
