package container_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"contmon/internal/container"
	"contmon/internal/container/containertest"
)

func running(id string) container.Entity {
	return container.Entity{ID: id, Name: "n-" + id, Image: "img", Status: container.StatusRunning}
}

func TestFetchMany_OnlyRunningEntities(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	rt.SetSnapshot("c1", &container.RawSnapshot{MemoryUsage: 1})
	rt.SetSnapshot("c2", &container.RawSnapshot{MemoryUsage: 2})

	f := container.NewFetcher(rt, zaptest.NewLogger(t))
	results := f.FetchMany(context.Background(), []container.Entity{
		running("c1"),
		{ID: "c2", Status: "exited"},
		{ID: "c3", Status: "paused"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results["c1"].Snapshot.MemoryUsage)
	assert.Equal(t, 1, rt.StatsCalls())
}

func TestFetchMany_FailureIsIsolated(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	boom := errors.New("boom")
	rt.SetSnapshot("ok", &container.RawSnapshot{Pids: 3})
	rt.SetStatsError("bad", boom)
	rt.SetSnapshot("empty", nil)

	f := container.NewFetcher(rt, zaptest.NewLogger(t))
	results := f.FetchMany(context.Background(), []container.Entity{running("ok"), running("bad"), running("empty")})

	require.Len(t, results, 3)

	assert.NoError(t, results["ok"].Err)
	assert.Equal(t, uint64(3), results["ok"].Snapshot.Pids)

	assert.Nil(t, results["bad"].Snapshot)
	assert.ErrorIs(t, results["bad"].Err, boom)
	assert.Contains(t, results["bad"].Err.Error(), "bad")

	assert.Nil(t, results["empty"].Snapshot)
	assert.ErrorIs(t, results["empty"].Err, container.ErrNoStats)
}

func TestFetchMany_NoEntities(t *testing.T) {
	f := container.NewFetcher(containertest.NewFakeRuntime(), nil)
	assert.Empty(t, f.FetchMany(context.Background(), nil))
}

func TestFetchMany_RunsInParallel(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	rt.Block = make(chan struct{})

	var entities []container.Entity
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("c%d", i)
		rt.SetSnapshot(id, &container.RawSnapshot{})
		entities = append(entities, running(id))
	}

	f := container.NewFetcher(rt, nil)
	done := make(chan map[string]container.Result)
	go func() { done <- f.FetchMany(context.Background(), entities) }()

	require.Eventually(t, func() bool { return rt.MaxInFlight() == 8 }, time.Second, time.Millisecond)
	close(rt.Block)

	results := <-done
	assert.Len(t, results, 8)
}

func TestFetchMany_ConcurrencyCap(t *testing.T) {
	rt := containertest.NewFakeRuntime()

	var entities []container.Entity
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("c%d", i)
		rt.SetSnapshot(id, &container.RawSnapshot{})
		entities = append(entities, running(id))
	}

	f := container.NewFetcher(rt, nil)
	f.MaxConcurrency = 3
	results := f.FetchMany(context.Background(), entities)

	assert.Len(t, results, 20)
	assert.LessOrEqual(t, rt.MaxInFlight(), 3)
}

func TestFetchMany_FetchTimeout(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	rt.Block = make(chan struct{})
	defer close(rt.Block)
	rt.SetSnapshot("slow", &container.RawSnapshot{})

	f := container.NewFetcher(rt, nil)
	f.FetchTimeout = 20 * time.Millisecond
	results := f.FetchMany(context.Background(), []container.Entity{running("slow")})

	require.Contains(t, results, "slow")
	assert.ErrorIs(t, results["slow"].Err, context.DeadlineExceeded)
}

func TestFetchMany_CancelledContext(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	rt.Block = make(chan struct{})
	defer close(rt.Block)
	rt.SetSnapshot("c1", &container.RawSnapshot{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := container.NewFetcher(rt, nil).FetchMany(ctx, []container.Entity{running("c1")})
	assert.ErrorIs(t, results["c1"].Err, context.Canceled)
}
