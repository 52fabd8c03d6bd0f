// Package delta turns cumulative runtime counters into per-cycle increments.
package delta

import (
	"sync"

	"go.uber.org/zap"
)

// Kind names one counter family. Each kind has its own previous-value map.
type Kind int

const (
	NetworkRx Kind = iota
	NetworkTx
	BlockRead
	BlockWrite

	numKinds
)

// Kinds lists every counter family in a stable order.
var Kinds = []Kind{NetworkRx, NetworkTx, BlockRead, BlockWrite}

func (k Kind) String() string {
	switch k {
	case NetworkRx:
		return "network_rx"
	case NetworkTx:
		return "network_tx"
	case BlockRead:
		return "block_read"
	case BlockWrite:
		return "block_write"
	default:
		return "unknown"
	}
}

// ResetHook is called whenever a counter is observed going backwards.
type ResetHook func(kind Kind, id string, previous, current uint64)

// Engine owns the previous observed value of every counter of every entity.
// It keeps exactly one value per (kind, entity) and is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	prev    [numKinds]map[string]uint64
	log     *zap.Logger
	onReset ResetHook
}

// NewEngine creates an engine with empty stores.
func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{log: log}
	for k := range e.prev {
		e.prev[k] = make(map[string]uint64)
	}
	return e
}

// OnReset registers a hook invoked (under the engine lock) on counter resets.
func (e *Engine) OnReset(h ResetHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReset = h
}

// Delta returns the increment of counter kind for entity id since the last
// call and records current as the new previous value.
//
// A first observation has an implicit previous value of 0. When current is
// lower than the previous value the counter is assumed to have restarted from
// zero and current itself is returned.
func (e *Engine) Delta(kind Kind, id string, current uint64) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	store := e.prev[kind]
	previous := store[id]
	store[id] = current

	if current >= previous {
		return current - previous
	}

	e.log.Debug("counter reset detected",
		zap.Stringer("kind", kind),
		zap.String("container_id", id),
		zap.Uint64("previous", previous),
		zap.Uint64("current", current),
	)
	if e.onReset != nil {
		e.onReset(kind, id, previous, current)
	}
	return current
}

// Prune drops every entry whose id is not in live from all stores and returns
// how many entries were removed in total.
func (e *Engine) Prune(live map[string]struct{}) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for _, store := range e.prev {
		for id := range store {
			if _, ok := live[id]; !ok {
				delete(store, id)
				removed++
			}
		}
	}
	return removed
}

// Value returns the stored previous value of a counter.
func (e *Engine) Value(kind Kind, id string) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.prev[kind][id]
	return v, ok
}

// Len returns the number of entities tracked for kind.
func (e *Engine) Len(kind Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prev[kind])
}

// Tracked returns the number of distinct entities present in any store.
func (e *Engine) Tracked() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]struct{})
	for _, store := range e.prev {
		for id := range store {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
