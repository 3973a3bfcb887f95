// Package archive preserves prior node payload versions. The graph store is
// append-mostly: a content update never destroys the previous payload, it
// archives it under (node id, version) so diffing against history stays
// possible. The canonical Archive interface lives here together with the
// in-memory implementation; swap in a durable backend for persistence.
package archive

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/graphmind/core"
)

// ErrNotFound is returned when no archived payload exists for the given
// node/version pair.
var ErrNotFound = fmt.Errorf("archived payload not found")

// Archive stores superseded node payloads keyed by node id and version.
type Archive interface {
	// Save stores the payload a node carried at the given version.
	Save(id core.NodeID, version int, payload []byte) error

	// Get returns a copy of the archived payload or ErrNotFound.
	Get(id core.NodeID, version int) ([]byte, error)

	// Versions lists the archived versions for a node in ascending order.
	Versions(id core.NodeID) ([]int, error)
}

// InMemoryArchive is a trivial in-process Archive useful for tests, examples
// and single-process deployments. Payloads are copied on save and retrieval
// to avoid accidental external mutation of internal buffers.
type InMemoryArchive struct {
	mu       sync.RWMutex
	payloads map[core.NodeID]map[int][]byte
}

var _ Archive = (*InMemoryArchive)(nil)

// NewInMemoryArchive returns an empty in-memory archive.
func NewInMemoryArchive() *InMemoryArchive {
	return &InMemoryArchive{payloads: make(map[core.NodeID]map[int][]byte)}
}

// Save stores (or overwrites) the payload for the given node and version.
// The input slice is copied before storage.
func (a *InMemoryArchive) Save(id core.NodeID, version int, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.payloads[id]; !exists {
		a.payloads[id] = make(map[int][]byte)
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	a.payloads[id][version] = cp
	return nil
}

// Get returns a copy of the archived payload or ErrNotFound.
func (a *InMemoryArchive) Get(id core.NodeID, version int) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.payloads[id]
	if !ok {
		return nil, ErrNotFound
	}
	payload, ok := m[version]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, nil
}

// Versions lists archived versions for the node in ascending order.
func (a *InMemoryArchive) Versions(id core.NodeID) ([]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.payloads[id]
	if !ok {
		return []int{}, nil
	}
	versions := make([]int, 0, len(m))
	for v := range m {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}
