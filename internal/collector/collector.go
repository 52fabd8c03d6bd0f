// Package collector runs collection cycles: list the inventory, select the
// in-scope containers, fetch their stats concurrently, turn cumulative
// counters into deltas and hand everything to a Sink.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"

	constants "contmon/config"
	"contmon/internal/container"
	"contmon/internal/delta"
	"contmon/internal/filter"
	"contmon/internal/stats"
)

// ErrInventory wraps any failure to enumerate containers. It fails the whole
// cycle and nothing is emitted.
var ErrInventory = errors.New("inventory listing failed")

// Families toggles emission of each metric family. Parsing and delta
// computation happen regardless.
type Families struct {
	CPU     bool
	Memory  bool
	Network bool
	Disk    bool
}

// AllFamilies enables every metric family.
func AllFamilies() Families {
	return Families{CPU: true, Memory: true, Network: true, Disk: true}
}

// Options configures a Collector.
type Options struct {
	Interval       time.Duration
	Filter         filter.Spec
	Families       Families
	MaxConcurrency int
	FetchTimeout   time.Duration

	// Clock drives the interval ticker. Defaults to the wall clock.
	Clock     clock.Clock
	Observers []Observer
}

// Collector owns the delta engine and the cycle lock. Cycles never overlap.
type Collector struct {
	mu sync.Mutex // held for a whole cycle

	rt      container.Runtime
	fetcher *container.Fetcher
	engine  *delta.Engine
	sink    Sink
	opts    Options
	clock   clock.Clock
	log     *zap.Logger

	cycles uint64 // guarded by mu
	state  atomic.Int32
	last   atomic.Pointer[Report]
}

// New creates a collector. A nil engine gets a fresh one, a nil sink drops
// all measurements.
func New(rt container.Runtime, sink Sink, engine *delta.Engine, opts Options, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	if engine == nil {
		engine = delta.NewEngine(log)
	}
	if sink == nil {
		sink = nopSink{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Interval <= 0 {
		opts.Interval = constants.DEFAULT_COLLECTION_INTERVAL * time.Second
	}

	fetcher := container.NewFetcher(rt, log)
	fetcher.MaxConcurrency = opts.MaxConcurrency
	fetcher.FetchTimeout = opts.FetchTimeout

	return &Collector{
		rt:      rt,
		fetcher: fetcher,
		engine:  engine,
		sink:    sink,
		opts:    opts,
		clock:   opts.Clock,
		log:     log,
	}
}

// State returns the phase of the current cycle, or StateIdle between cycles.
func (c *Collector) State() State {
	return State(c.state.Load())
}

func (c *Collector) setState(s State) {
	c.state.Store(int32(s))
}

// Last returns the report of the most recent finished cycle, or nil.
func (c *Collector) Last() *Report {
	return c.last.Load()
}

// Engine exposes the delta engine for inspection.
func (c *Collector) Engine() *delta.Engine {
	return c.engine
}

// Run executes a cycle immediately and then one per interval until ctx is
// cancelled. A failed cycle is logged and the loop waits for the next tick.
// Ticks that fire while a cycle is running collapse into at most one.
func (c *Collector) Run(ctx context.Context) error {
	ticker := c.clock.Ticker(c.opts.Interval)
	defer ticker.Stop()

	c.log.Info("collector started", zap.Duration("interval", c.opts.Interval))

	for {
		if ctx.Err() == nil {
			_, _ = c.RunCycle(ctx)
		}

		select {
		case <-ctx.Done():
			c.log.Info("collector stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one complete cycle. Concurrent callers are serialized.
// The returned report is never nil.
func (c *Collector) RunCycle(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cycles++
	start := c.clock.Now()
	r := &Report{Cycle: c.cycles, StartedAt: start}

	err := c.cycle(ctx, r)
	r.Duration = c.clock.Since(start)

	if err != nil {
		r.Error = err.Error()
		c.setState(StateFailed)
		c.log.Error("collection cycle failed", zap.Uint64("cycle", r.Cycle), zap.Error(err))
	} else {
		c.log.Debug("collection cycle finished",
			zap.Uint64("cycle", r.Cycle),
			zap.Int("listed", r.Listed),
			zap.Int("in_scope", r.InScope),
			zap.Int("running", r.Running),
			zap.Int("fetch_errors", r.FetchErrors),
			zap.Int("pruned", r.Pruned),
			zap.Duration("duration", r.Duration),
		)
	}

	c.last.Store(r)
	for _, o := range c.opts.Observers {
		o.ObserveCycle(r)
	}
	c.setState(StateIdle)

	return r, err
}

func (c *Collector) cycle(ctx context.Context, r *Report) error {
	c.setState(StateListing)
	all, err := c.rt.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInventory, err)
	}
	r.Listed = len(all)

	c.setState(StateFiltering)
	inScope := filter.Select(all, c.opts.Filter)
	running := lo.Filter(inScope, func(e container.Entity, _ int) bool {
		return e.Running()
	})
	r.InScope = len(inScope)
	r.Running = len(running)
	r.NotRunning = r.InScope - r.Running

	c.sink.SetEntityCount(ctx, StatusRunning, r.Running)
	c.sink.SetEntityCount(ctx, StatusNotRunning, r.NotRunning)

	c.setState(StateFetching)
	results := c.fetcher.FetchMany(ctx, running)
	if err := ctx.Err(); err != nil {
		return err
	}

	c.setState(StateRecording)
	for _, e := range running {
		res, ok := results[e.ID]
		if !ok || res.Err != nil {
			r.FetchErrors++
			continue
		}
		r.Containers = append(r.Containers, c.record(ctx, e, res.Snapshot))
	}

	c.setState(StatePruning)
	live := lo.SliceToMap(inScope, func(e container.Entity) (string, struct{}) {
		return e.ID, struct{}{}
	})
	r.Pruned = c.engine.Prune(live)
	r.Tracked = c.engine.Tracked()

	return nil
}

func (c *Collector) record(ctx context.Context, e container.Entity, raw *container.RawSnapshot) ContainerReport {
	u := stats.Parse(*raw)
	cr := ContainerReport{
		ID:              e.ID,
		Name:            e.Name,
		Image:           e.Image,
		Usage:           u,
		NetRxDelta:      c.engine.Delta(delta.NetworkRx, e.ID, u.NetRxBytes),
		NetTxDelta:      c.engine.Delta(delta.NetworkTx, e.ID, u.NetTxBytes),
		BlockReadDelta:  c.engine.Delta(delta.BlockRead, e.ID, u.BlockReadBytes),
		BlockWriteDelta: c.engine.Delta(delta.BlockWrite, e.ID, u.BlockWriteBytes),
	}

	l := Labels{ContainerID: e.ID, ContainerName: e.Name, Image: e.Image}
	f := c.opts.Families

	if f.CPU {
		c.sink.RecordCPU(ctx, l, u.CPUPercent)
	}
	if f.Memory {
		c.sink.RecordMemory(ctx, l, u.MemoryUsedBytes, u.MemoryLimitBytes, u.MemoryPercent)
	}
	if f.Network && (cr.NetRxDelta > 0 || cr.NetTxDelta > 0) {
		c.sink.AddNetwork(ctx, l, cr.NetRxDelta, cr.NetTxDelta)
	}
	if f.Disk && (cr.BlockReadDelta > 0 || cr.BlockWriteDelta > 0) {
		c.sink.AddBlockIO(ctx, l, cr.BlockReadDelta, cr.BlockWriteDelta)
	}

	return cr
}
