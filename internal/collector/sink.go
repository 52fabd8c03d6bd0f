package collector

import "context"

// Entity count status labels.
const (
	StatusRunning    = "running"
	StatusNotRunning = "not_running"
)

// Labels identify the container a measurement belongs to.
type Labels struct {
	ContainerID   string
	ContainerName string
	Image         string
}

// Sink receives the per-cycle results. Implementations must be safe to call
// from the collector goroutine while their exporter runs elsewhere.
type Sink interface {
	RecordCPU(ctx context.Context, l Labels, percent float64)
	RecordMemory(ctx context.Context, l Labels, used, limit uint64, percent float64)
	// AddNetwork and AddBlockIO receive per-interval increments. A zero
	// component is not emitted.
	AddNetwork(ctx context.Context, l Labels, rx, tx uint64)
	AddBlockIO(ctx context.Context, l Labels, read, write uint64)
	// SetEntityCount reports the current number of in-scope containers with
	// the given status.
	SetEntityCount(ctx context.Context, status string, n int)
}

// Observer is notified once per finished cycle, successful or not.
type Observer interface {
	ObserveCycle(r *Report)
}

type nopSink struct{}

func (nopSink) RecordCPU(context.Context, Labels, float64) {}
func (nopSink) RecordMemory(context.Context, Labels, uint64, uint64, float64) {}
func (nopSink) AddNetwork(context.Context, Labels, uint64, uint64) {}
func (nopSink) AddBlockIO(context.Context, Labels, uint64, uint64) {}
func (nopSink) SetEntityCount(context.Context, string, int) {}
