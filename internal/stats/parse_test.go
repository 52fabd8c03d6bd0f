package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"contmon/internal/container"
)

func TestParse_CPUPercent(t *testing.T) {
	tests := []struct {
		name string
		raw  container.RawSnapshot
		want float64
	}{
		{
			name: "two cpus",
			raw:  container.RawSnapshot{PreCPUTotal: 100, CPUTotal: 150, PreSystemCPU: 1000, SystemCPU: 1500, OnlineCPUs: 2},
			want: 20.0,
		},
		{
			name: "missing online cpus counts as one",
			raw:  container.RawSnapshot{PreCPUTotal: 100, CPUTotal: 150, PreSystemCPU: 1000, SystemCPU: 1500},
			want: 10.0,
		},
		{
			name: "no system delta",
			raw:  container.RawSnapshot{PreCPUTotal: 100, CPUTotal: 150, PreSystemCPU: 1500, SystemCPU: 1500, OnlineCPUs: 4},
			want: 0,
		},
		{
			name: "no cpu delta",
			raw:  container.RawSnapshot{PreCPUTotal: 150, CPUTotal: 150, PreSystemCPU: 1000, SystemCPU: 1500, OnlineCPUs: 4},
			want: 0,
		},
		{
			name: "cpu counter went backwards",
			raw:  container.RawSnapshot{PreCPUTotal: 200, CPUTotal: 150, PreSystemCPU: 1000, SystemCPU: 1500, OnlineCPUs: 4},
			want: 0,
		},
		{
			name: "first sample has empty previous reading",
			raw:  container.RawSnapshot{CPUTotal: 0, SystemCPU: 0},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Parse(tt.raw).CPUPercent, 1e-9)
		})
	}
}

func TestParse_Memory(t *testing.T) {
	u := Parse(container.RawSnapshot{MemoryUsage: 50_000_000, MemoryLimit: 100_000_000})
	assert.Equal(t, uint64(50_000_000), u.MemoryUsedBytes)
	assert.Equal(t, uint64(100_000_000), u.MemoryLimitBytes)
	assert.InDelta(t, 50.0, u.MemoryPercent, 1e-9)

	u = Parse(container.RawSnapshot{MemoryUsage: 1024})
	assert.Equal(t, 0.0, u.MemoryPercent, "zero limit yields zero percent")
}

func TestParse_NetworkSumsInterfaces(t *testing.T) {
	u := Parse(container.RawSnapshot{Networks: []container.NetworkCounters{
		{Interface: "eth0", RxBytes: 1000, TxBytes: 10},
		{Interface: "eth1", RxBytes: 500, TxBytes: 5},
	}})
	assert.Equal(t, uint64(1500), u.NetRxBytes)
	assert.Equal(t, uint64(15), u.NetTxBytes)
}

func TestParse_BlockIOExactLabels(t *testing.T) {
	u := Parse(container.RawSnapshot{BlockIO: []container.BlockIOEntry{
		{Op: "Read", Value: 4096},
		{Op: "Write", Value: 8192},
		{Op: "Read", Value: 4},
		{Op: "read", Value: 1 << 20},
		{Op: "Total", Value: 12292},
		{Op: "Sync", Value: 3},
		{Op: "", Value: 7},
	}})
	assert.Equal(t, uint64(4100), u.BlockReadBytes)
	assert.Equal(t, uint64(8192), u.BlockWriteBytes)
}

func TestParse_EmptySnapshot(t *testing.T) {
	assert.Equal(t, Usage{}, Parse(container.RawSnapshot{}))
}

func TestParse_ProcessCount(t *testing.T) {
	assert.Equal(t, uint64(12), Parse(container.RawSnapshot{Pids: 12}).ProcessCount)
}

func TestParse_IsDeterministic(t *testing.T) {
	raw := container.RawSnapshot{
		PreCPUTotal: 1, CPUTotal: 9, PreSystemCPU: 10, SystemCPU: 90, OnlineCPUs: 8,
		MemoryUsage: 3, MemoryLimit: 7,
		Networks: []container.NetworkCounters{{RxBytes: 1, TxBytes: 2}},
		BlockIO:  []container.BlockIOEntry{{Op: "Read", Value: 5}},
	}
	assert.Equal(t, Parse(raw), Parse(raw))
}
