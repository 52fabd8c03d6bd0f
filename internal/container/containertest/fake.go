// Package containertest provides an in-memory container.Runtime for tests.
package containertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"contmon/internal/container"
)

// ErrUnknown is returned for stats of an id that was never registered.
var ErrUnknown = errors.New("unknown container")

// FakeRuntime is a scriptable container.Runtime. All methods are safe for
// concurrent use.
type FakeRuntime struct {
	mu        sync.Mutex
	entities  []container.Entity
	snapshots map[string]*container.RawSnapshot
	statsErr  map[string]error
	listErr   error

	// Block, when set, is waited on by every FetchStats call before it
	// answers. Closing it releases all callers.
	Block chan struct{}

	listCalls  atomic.Int64
	statsCalls atomic.Int64
	inFlight   atomic.Int64
	maxFlight  atomic.Int64
}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		snapshots: make(map[string]*container.RawSnapshot),
		statsErr:  make(map[string]error),
	}
}

// SetEntities replaces the inventory.
func (f *FakeRuntime) SetEntities(entities ...container.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entities = append([]container.Entity(nil), entities...)
}

// SetSnapshot sets the stats returned for id. A nil snapshot makes FetchStats
// return (nil, nil).
func (f *FakeRuntime) SetSnapshot(id string, s *container.RawSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[id] = s
	delete(f.statsErr, id)
}

// SetStatsError makes FetchStats fail for id.
func (f *FakeRuntime) SetStatsError(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsErr[id] = err
}

// SetListError makes ListAll fail. nil clears it.
func (f *FakeRuntime) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *FakeRuntime) ListAll(ctx context.Context) ([]container.Entity, error) {
	f.listCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]container.Entity(nil), f.entities...), nil
}

func (f *FakeRuntime) FetchStats(ctx context.Context, id string) (*container.RawSnapshot, error) {
	f.statsCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxFlight.Load()
		if n <= seen || f.maxFlight.CompareAndSwap(seen, n) {
			break
		}
	}

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.statsErr[id]; ok {
		return nil, err
	}
	s, ok := f.snapshots[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	if s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// ListCalls returns how many times ListAll was called.
func (f *FakeRuntime) ListCalls() int { return int(f.listCalls.Load()) }

// StatsCalls returns how many times FetchStats was called.
func (f *FakeRuntime) StatsCalls() int { return int(f.statsCalls.Load()) }

// MaxInFlight returns the highest number of concurrent FetchStats calls seen.
func (f *FakeRuntime) MaxInFlight() int { return int(f.maxFlight.Load()) }
