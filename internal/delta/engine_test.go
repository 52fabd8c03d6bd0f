package delta

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDelta_FirstObservation(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))

	assert.Equal(t, uint64(1000), e.Delta(NetworkRx, "c1", 1000))

	v, ok := e.Value(NetworkRx, "c1")
	require.True(t, ok)
	assert.Equal(t, uint64(1000), v)
}

func TestDelta_Increasing(t *testing.T) {
	e := NewEngine(nil)

	e.Delta(NetworkRx, "c1", 1000)
	assert.Equal(t, uint64(500), e.Delta(NetworkRx, "c1", 1500))

	v, _ := e.Value(NetworkRx, "c1")
	assert.Equal(t, uint64(1500), v)
}

func TestDelta_Unchanged(t *testing.T) {
	e := NewEngine(nil)

	e.Delta(BlockRead, "c1", 42)
	assert.Equal(t, uint64(0), e.Delta(BlockRead, "c1", 42))
}

func TestDelta_ResetReportsCurrent(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))

	var resets []string
	e.OnReset(func(kind Kind, id string, previous, current uint64) {
		resets = append(resets, fmt.Sprintf("%s/%s/%d/%d", kind, id, previous, current))
	})

	e.Delta(NetworkTx, "c1", 5000)
	assert.Equal(t, uint64(120), e.Delta(NetworkTx, "c1", 120))

	v, _ := e.Value(NetworkTx, "c1")
	assert.Equal(t, uint64(120), v)
	assert.Equal(t, []string{"network_tx/c1/5000/120"}, resets)

	// Counting continues from the reset value.
	assert.Equal(t, uint64(80), e.Delta(NetworkTx, "c1", 200))
}

func TestDelta_ResetToZero(t *testing.T) {
	e := NewEngine(nil)

	e.Delta(BlockWrite, "c1", 10)
	assert.Equal(t, uint64(0), e.Delta(BlockWrite, "c1", 0))
}

func TestDelta_Properties(t *testing.T) {
	values := []uint64{0, 1, 7, 1000, 1 << 40, ^uint64(0)}
	for _, prev := range values {
		for _, cur := range values {
			e := NewEngine(nil)
			e.Delta(NetworkRx, "x", prev)
			got := e.Delta(NetworkRx, "x", cur)

			want := cur
			if cur >= prev {
				want = cur - prev
			}
			assert.Equal(t, want, got, "prev=%d cur=%d", prev, cur)

			stored, _ := e.Value(NetworkRx, "x")
			assert.Equal(t, cur, stored)
		}
	}
}

func TestDelta_KindsAreIndependent(t *testing.T) {
	e := NewEngine(nil)

	e.Delta(NetworkRx, "c1", 100)
	assert.Equal(t, uint64(100), e.Delta(NetworkTx, "c1", 100))
	assert.Equal(t, uint64(100), e.Delta(BlockRead, "c1", 100))
	assert.Equal(t, uint64(100), e.Delta(BlockWrite, "c1", 100))
	assert.Equal(t, uint64(0), e.Delta(NetworkRx, "c1", 100))
}

func TestDelta_EntitiesAreIndependent(t *testing.T) {
	e := NewEngine(nil)

	e.Delta(NetworkRx, "c1", 100)
	assert.Equal(t, uint64(300), e.Delta(NetworkRx, "c2", 300))
	assert.Equal(t, uint64(50), e.Delta(NetworkRx, "c1", 150))
}

func TestPrune(t *testing.T) {
	e := NewEngine(nil)

	for _, id := range []string{"a", "b", "c"} {
		for _, k := range Kinds {
			e.Delta(k, id, 1)
		}
	}
	// d only has network counters.
	e.Delta(NetworkRx, "d", 1)
	e.Delta(NetworkTx, "d", 1)

	removed := e.Prune(map[string]struct{}{"a": {}, "c": {}})

	// b: 4 entries, d: 2 entries.
	assert.Equal(t, 6, removed)
	for _, k := range Kinds {
		assert.Equal(t, 2, e.Len(k), k.String())
		_, ok := e.Value(k, "b")
		assert.False(t, ok)
	}
	assert.Equal(t, 2, e.Tracked())
}

func TestPrune_EmptyLiveSetClearsEverything(t *testing.T) {
	e := NewEngine(nil)
	e.Delta(NetworkRx, "a", 1)
	e.Delta(BlockRead, "b", 1)

	assert.Equal(t, 2, e.Prune(nil))
	assert.Equal(t, 0, e.Tracked())
}

func TestPrune_NothingToRemove(t *testing.T) {
	e := NewEngine(nil)
	e.Delta(NetworkRx, "a", 1)

	assert.Equal(t, 0, e.Prune(map[string]struct{}{"a": {}, "z": {}}))
	assert.Equal(t, 1, e.Len(NetworkRx))
}

func TestPrune_ThenReappearCountsAsFirstObservation(t *testing.T) {
	e := NewEngine(nil)
	e.Delta(NetworkRx, "a", 1000)
	e.Prune(map[string]struct{}{})

	assert.Equal(t, uint64(1200), e.Delta(NetworkRx, "a", 1200))
}

func TestEngine_ConcurrentUse(t *testing.T) {
	e := NewEngine(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			for v := uint64(0); v < 100; v++ {
				e.Delta(Kinds[i%len(Kinds)], id, v)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, e.Tracked())
	for i := 0; i < 16; i++ {
		v, ok := e.Value(Kinds[i%len(Kinds)], fmt.Sprintf("c%d", i))
		require.True(t, ok)
		assert.Equal(t, uint64(99), v)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "network_rx", NetworkRx.String())
	assert.Equal(t, "block_write", BlockWrite.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
