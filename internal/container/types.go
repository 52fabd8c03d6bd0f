// Package container models the container runtime as seen by the collector:
// inventory records, raw stats snapshots and the capability interface used to
// obtain them.
package container

import (
	"context"
	"errors"
)

// StatusRunning is the runtime state of a container whose stats can be queried.
const StatusRunning = "running"

// ErrNoStats is returned when the runtime answered a stats request without data.
var ErrNoStats = errors.New("no stats received")

// Entity is one inventory record. Records are produced fresh every cycle.
type Entity struct {
	ID     string
	Name   string
	Image  string
	Status string
}

// Running reports whether the entity is in the active state.
func (e Entity) Running() bool {
	return e.Status == StatusRunning
}

// NetworkCounters holds cumulative byte counters of one interface.
type NetworkCounters struct {
	Interface string
	RxBytes   uint64
	TxBytes   uint64
}

// BlockIOEntry is one block I/O service-bytes record, e.g. {"Read", 4096}.
type BlockIOEntry struct {
	Op    string
	Value uint64
}

// RawSnapshot is a single one-shot stats reading as returned by the runtime.
// The Pre* fields are the runtime's own previous sample, not ours.
type RawSnapshot struct {
	CPUTotal     uint64
	PreCPUTotal  uint64
	SystemCPU    uint64
	PreSystemCPU uint64
	OnlineCPUs   uint64

	MemoryUsage uint64
	MemoryLimit uint64

	Networks []NetworkCounters
	BlockIO  []BlockIOEntry

	Pids uint64
}

// Runtime is the capability the collector needs from a container runtime.
type Runtime interface {
	// ListAll returns every container, including ones that are not running.
	ListAll(ctx context.Context) ([]Entity, error)
	// FetchStats returns a single, non-streamed stats reading.
	FetchStats(ctx context.Context, id string) (*RawSnapshot, error)
}
