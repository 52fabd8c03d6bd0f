// Package stats normalizes raw runtime readings into usage figures.
package stats

import "contmon/internal/container"

// Block I/O operation labels that are accounted. Anything else is ignored.
const (
	opRead  = "Read"
	opWrite = "Write"
)

// Usage is the canonical per-container reading for one cycle.
type Usage struct {
	CPUPercent float64

	MemoryUsedBytes  uint64
	MemoryLimitBytes uint64
	MemoryPercent    float64

	NetRxBytes uint64
	NetTxBytes uint64

	BlockReadBytes  uint64
	BlockWriteBytes uint64

	ProcessCount uint64
}

// Parse converts a raw snapshot. It has no side effects.
func Parse(raw container.RawSnapshot) Usage {
	u := Usage{
		CPUPercent:       cpuPercent(raw),
		MemoryUsedBytes:  raw.MemoryUsage,
		MemoryLimitBytes: raw.MemoryLimit,
		ProcessCount:     raw.Pids,
	}

	if raw.MemoryLimit > 0 {
		u.MemoryPercent = float64(raw.MemoryUsage) / float64(raw.MemoryLimit) * 100
	}

	for _, n := range raw.Networks {
		u.NetRxBytes += n.RxBytes
		u.NetTxBytes += n.TxBytes
	}

	for _, e := range raw.BlockIO {
		switch e.Op {
		case opRead:
			u.BlockReadBytes += e.Value
		case opWrite:
			u.BlockWriteBytes += e.Value
		}
	}

	return u
}

// cpuPercent computes the share of host CPU used between the runtime's two
// samples, scaled by the number of online CPUs. Deltas are taken in float64
// so a counter that went backwards yields a negative delta and 0%.
func cpuPercent(raw container.RawSnapshot) float64 {
	cpuDelta := float64(raw.CPUTotal) - float64(raw.PreCPUTotal)
	sysDelta := float64(raw.SystemCPU) - float64(raw.PreSystemCPU)

	if sysDelta <= 0 || cpuDelta <= 0 {
		return 0
	}

	cpus := float64(raw.OnlineCPUs)
	if cpus == 0 {
		cpus = 1
	}

	return cpuDelta / sysDelta * cpus * 100
}
