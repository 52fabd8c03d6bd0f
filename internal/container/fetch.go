package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one stats query. Exactly one of Snapshot and Err
// is set.
type Result struct {
	Snapshot *RawSnapshot
	Err      error
}

// Fetcher queries stats for many containers in parallel.
type Fetcher struct {
	rt  Runtime
	log *zap.Logger

	// MaxConcurrency caps in-flight queries. 0 means one goroutine per entity.
	MaxConcurrency int
	// FetchTimeout bounds each individual query. 0 means no deadline.
	FetchTimeout time.Duration
}

func NewFetcher(rt Runtime, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{rt: rt, log: log}
}

// FetchMany queries every running entity and waits for all of them. Entities
// that are not running are skipped and have no Result. A failure affects only
// its own entity and never cancels the others.
func (f *Fetcher) FetchMany(ctx context.Context, entities []Entity) map[string]Result {
	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(entities))
		g       errgroup.Group
	)
	if f.MaxConcurrency > 0 {
		g.SetLimit(f.MaxConcurrency)
	}

	for _, e := range entities {
		if !e.Running() {
			continue
		}
		e := e
		g.Go(func() error {
			r := f.fetch(ctx, e)
			mu.Lock()
			results[e.ID] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (f *Fetcher) fetch(ctx context.Context, e Entity) Result {
	if f.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.FetchTimeout)
		defer cancel()
	}

	snap, err := f.rt.FetchStats(ctx, e.ID)
	if err == nil && snap == nil {
		err = ErrNoStats
	}
	if err != nil {
		err = fmt.Errorf("container %s: %w", e.ID, err)
		f.log.Warn("stats fetch failed",
			zap.String("container_id", e.ID),
			zap.String("container_name", e.Name),
			zap.Error(err),
		)
		return Result{Err: err}
	}
	return Result{Snapshot: snap}
}
