// Package graph contains the in-memory Knowledge Graph Store, the one shared
// mutable resource of the engine. Writes are serialized through a single
// RWMutex while reads proceed concurrently; every mutation is atomic, so a
// reader never observes an edge whose endpoint node is not yet visible.
// Each successful mutation publishes exactly one event per changed element on
// the bus before the call returns, in program order for this store instance.
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/graphmind/archive"
	"github.com/hupe1980/graphmind/core"
	"github.com/hupe1980/graphmind/logging"
)

// Options configures an InMemoryStore.
type Options struct {
	// Bus receives one event per successful mutation. Required for the
	// engine; a nil bus disables publication (tests of pure graph logic).
	Bus core.Bus

	// Archive preserves superseded payload versions. Defaults to the
	// in-memory archive.
	Archive archive.Archive

	// Logger receives store diagnostics.
	Logger logging.Logger
}

type nodeEntry struct {
	node *core.Node
	seq  uint64 // insertion order, used for similarity tie-breaks
}

// InMemoryStore implements core.GraphStore for a single process.
//
// A duplicate identifier is treated as store corruption: the instance halts
// and every subsequent mutation fails with core.ErrStoreCorrupted. Reads stay
// available so the damage can be inspected.
type InMemoryStore struct {
	mu     sync.RWMutex
	nodes  map[core.NodeID]*nodeEntry
	edges  map[core.EdgeID]*core.Edge
	out    map[core.NodeID][]core.EdgeID // adjacency in insertion order
	in     map[core.NodeID][]core.EdgeID
	seq    uint64
	halted bool

	bus     core.Bus
	archive archive.Archive
	logger  logging.Logger
}

var _ core.GraphStore = (*InMemoryStore)(nil)

// New constructs an empty store with optional overrides.
func New(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		Archive: archive.NewInMemoryArchive(),
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{
		nodes:   make(map[core.NodeID]*nodeEntry),
		edges:   make(map[core.EdgeID]*core.Edge),
		out:     make(map[core.NodeID][]core.EdgeID),
		in:      make(map[core.NodeID][]core.EdgeID),
		bus:     opts.Bus,
		archive: opts.Archive,
		logger:  opts.Logger,
	}
}

// AddNode commits a new node with a freshly assigned identifier and publishes
// a NodeCreated event before returning.
func (s *InMemoryStore) AddNode(spec core.NodeSpec) (core.NodeID, error) {
	if spec.Confidence < 0 || spec.Confidence > 1 {
		return "", fmt.Errorf("%w: confidence %f outside [0,1]", core.ErrInvalidNode, spec.Confidence)
	}

	node := &core.Node{
		ID:         core.NodeID(core.NewID()),
		Type:       spec.Type,
		Payload:    append([]byte(nil), spec.Payload...),
		Text:       spec.Text,
		Embedding:  append([]float32(nil), spec.Embedding...),
		Confidence: spec.Confidence,
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		Source:     spec.Source,
		Author:     spec.Author,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(node); err != nil {
		return "", err
	}
	return node.ID, nil
}

// ImportNode commits a node that already carries an identifier, as produced
// by an external ingestion path. A duplicate identifier corrupts and halts
// the store: identifiers are never reused.
func (s *InMemoryStore) ImportNode(node *core.Node) error {
	if node.ID == "" {
		return fmt.Errorf("%w: missing id", core.ErrInvalidNode)
	}

	cp := node.Clone()
	if cp.Version == 0 {
		cp.Version = 1
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(cp)
}

func (s *InMemoryStore) insertLocked(node *core.Node) error {
	if s.halted {
		return core.ErrStoreCorrupted
	}
	if _, exists := s.nodes[node.ID]; exists {
		s.halted = true
		s.logger.Error("duplicate node identifier, halting store", "node_id", string(node.ID))
		return fmt.Errorf("%w: duplicate node id %s", core.ErrStoreCorrupted, node.ID)
	}

	s.seq++
	s.nodes[node.ID] = &nodeEntry{node: node, seq: s.seq}
	s.publishLocked(core.NewNodeEvent(core.EventNodeCreated, node))
	return nil
}

// UpdateNode replaces a node's content. The prior payload is archived under
// the superseded version so it remains available for diffing; the node's
// version is bumped and a NodeUpdated event published.
func (s *InMemoryStore) UpdateNode(id core.NodeID, payload []byte, text string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return core.ErrStoreCorrupted
	}
	entry, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNodeNotFound, id)
	}

	if err := s.archive.Save(id, entry.node.Version, entry.node.Payload); err != nil {
		return fmt.Errorf("archive prior payload: %w", err)
	}

	entry.node.Payload = append([]byte(nil), payload...)
	entry.node.Text = text
	if embedding != nil {
		entry.node.Embedding = append([]float32(nil), embedding...)
	}
	entry.node.Version++

	s.publishLocked(core.NewNodeEvent(core.EventNodeUpdated, entry.node))
	return nil
}

// AddEdge commits a directed edge after checking both endpoints exist. The
// insert is atomic: on ErrUnknownEndpoint nothing is stored and no event is
// published.
func (s *InMemoryStore) AddEdge(spec core.EdgeSpec) (core.EdgeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return "", core.ErrStoreCorrupted
	}
	if _, ok := s.nodes[spec.From]; !ok {
		return "", fmt.Errorf("%w: from node %s", core.ErrUnknownEndpoint, spec.From)
	}
	if _, ok := s.nodes[spec.To]; !ok {
		return "", fmt.Errorf("%w: to node %s", core.ErrUnknownEndpoint, spec.To)
	}

	edge := &core.Edge{
		ID:         core.EdgeID(core.NewID()),
		From:       spec.From,
		To:         spec.To,
		Rel:        spec.Rel,
		Strength:   spec.Strength,
		Provenance: spec.Provenance,
		Confidence: spec.Confidence,
		CreatedAt:  time.Now().UTC(),
	}

	if _, exists := s.edges[edge.ID]; exists {
		s.halted = true
		s.logger.Error("duplicate edge identifier, halting store", "edge_id", string(edge.ID))
		return "", fmt.Errorf("%w: duplicate edge id %s", core.ErrStoreCorrupted, edge.ID)
	}

	s.edges[edge.ID] = edge
	s.out[spec.From] = append(s.out[spec.From], edge.ID)
	s.in[spec.To] = append(s.in[spec.To], edge.ID)

	s.publishLocked(core.NewEdgeEvent(core.EventEdgeCreated, edge))
	return edge.ID, nil
}

// GetNode returns a copy of the node or core.ErrNodeNotFound.
func (s *InMemoryStore) GetNode(id core.NodeID) (*core.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNodeNotFound, id)
	}
	return entry.node.Clone(), nil
}

// GetEdge returns a copy of the edge or core.ErrEdgeNotFound.
func (s *InMemoryStore) GetEdge(id core.EdgeID) (*core.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrEdgeNotFound, id)
	}
	return edge.Clone(), nil
}

// HasNodes reports whether every given id resolves to a live node.
func (s *InMemoryStore) HasNodes(ids ...core.NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range ids {
		if _, ok := s.nodes[id]; !ok {
			return false
		}
	}
	return true
}

// RemoveNode deletes the node and cascades removal of every edge touching it
// in a single atomic step, so no edge ever outlives an endpoint. One
// EdgeRemoved event is published per dropped edge, then the NodeRemoved.
func (s *InMemoryStore) RemoveNode(id core.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.halted {
		return core.ErrStoreCorrupted
	}
	entry, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNodeNotFound, id)
	}

	touching := make([]core.EdgeID, 0, len(s.out[id])+len(s.in[id]))
	touching = append(touching, s.out[id]...)
	for _, eid := range s.in[id] {
		// self-loops appear in both adjacency lists once
		if edge := s.edges[eid]; edge != nil && edge.From != id {
			touching = append(touching, eid)
		}
	}

	for _, eid := range touching {
		edge, ok := s.edges[eid]
		if !ok {
			continue
		}
		delete(s.edges, eid)
		s.out[edge.From] = removeEdgeID(s.out[edge.From], eid)
		s.in[edge.To] = removeEdgeID(s.in[edge.To], eid)
		s.publishLocked(core.NewEdgeEvent(core.EventEdgeRemoved, edge))
	}

	delete(s.nodes, id)
	delete(s.out, id)
	delete(s.in, id)

	s.publishLocked(core.NewNodeEvent(core.EventNodeRemoved, entry.node))
	return nil
}

// Traverse walks breadth-first along outgoing edges from id, visiting each
// node at most once up to maxDepth (inclusive, 0 = only the start node), and
// returns node copies in visit order. Neighbor order follows edge insertion
// order, keeping traversal deterministic.
func (s *InMemoryStore) Traverse(id core.NodeID, maxDepth int) ([]*core.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNodeNotFound, id)
	}

	type frame struct {
		id    core.NodeID
		depth int
	}

	visited := map[core.NodeID]bool{id: true}
	queue := []frame{{id: id, depth: 0}}
	result := []*core.Node{start.node.Clone()}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= maxDepth {
			continue
		}
		for _, eid := range s.out[cur.id] {
			edge := s.edges[eid]
			if edge == nil || visited[edge.To] {
				continue
			}
			visited[edge.To] = true
			next := s.nodes[edge.To]
			result = append(result, next.node.Clone())
			queue = append(queue, frame{id: edge.To, depth: cur.depth + 1})
		}
	}

	return result, nil
}

// FindSimilar ranks all other embedded nodes by cosine similarity against the
// anchor, descending by score with ties broken by insertion order, and
// returns up to topK results.
func (s *InMemoryStore) FindSimilar(id core.NodeID, topK int) ([]core.Similarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anchor, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNodeNotFound, id)
	}
	if len(anchor.node.Embedding) == 0 || topK <= 0 {
		return []core.Similarity{}, nil
	}

	type scored struct {
		entry *nodeEntry
		score float64
	}

	candidates := make([]scored, 0, len(s.nodes))
	for nid, entry := range s.nodes {
		if nid == id || len(entry.node.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{
			entry: entry,
			score: CosineSimilarity(anchor.node.Embedding, entry.node.Embedding),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	result := make([]core.Similarity, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, core.Similarity{Node: c.entry.node.Clone(), Score: c.score})
	}
	return result, nil
}

// PriorPayload returns the archived payload the node carried at the given
// superseded version.
func (s *InMemoryStore) PriorPayload(id core.NodeID, version int) ([]byte, error) {
	return s.archive.Get(id, version)
}

// NodeCount returns the number of live nodes.
func (s *InMemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of live edges.
func (s *InMemoryStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Halted reports whether the store detected corruption and stopped accepting
// mutations.
func (s *InMemoryStore) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.halted
}

// publishLocked emits one event while holding the write lock. Bus enqueueing
// is non-blocking, so handlers can read the store without deadlocking; the
// lock guarantees publication order matches mutation order per instance.
func (s *InMemoryStore) publishLocked(ev core.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

func removeEdgeID(ids []core.EdgeID, target core.EdgeID) []core.EdgeID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
