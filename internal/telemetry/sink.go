package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"contmon/internal/collector"
)

// Instrument names exported for every container.
const (
	MetricCPUPercent    = "container_cpu_usage_percent"
	MetricMemoryUsage   = "container_memory_usage_bytes"
	MetricMemoryLimit   = "container_memory_limit_bytes"
	MetricMemoryPercent = "container_memory_usage_percent"
	MetricNetRx         = "container_network_receive_bytes_total"
	MetricNetTx         = "container_network_transmit_bytes_total"
	MetricFsReads       = "container_fs_reads_bytes_total"
	MetricFsWrites      = "container_fs_writes_bytes_total"
	MetricCount         = "container_count"
)

// Attribute keys.
const (
	AttrContainerID   = attribute.Key("container_id")
	AttrContainerName = attribute.Key("container_name")
	AttrImage         = attribute.Key("image")
	AttrStatus        = attribute.Key("status")
)

// OTelSink records collector results on OpenTelemetry instruments.
type OTelSink struct {
	cpuPercent    metric.Float64Histogram
	memoryUsage   metric.Int64Gauge
	memoryLimit   metric.Int64Gauge
	memoryPercent metric.Float64Histogram
	netRx         metric.Int64Counter
	netTx         metric.Int64Counter
	fsReads       metric.Int64Counter
	fsWrites      metric.Int64Counter
	count         metric.Int64UpDownCounter

	mu         sync.Mutex
	lastCounts map[string]int64
}

var _ collector.Sink = (*OTelSink)(nil)

// NewOTelSink creates all instruments on meter.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	s := &OTelSink{lastCounts: make(map[string]int64)}

	var err error
	if s.cpuPercent, err = meter.Float64Histogram(MetricCPUPercent,
		metric.WithDescription("Container CPU usage as a percentage of host CPU"),
		metric.WithUnit("%")); err != nil {
		return nil, instrumentErr(MetricCPUPercent, err)
	}
	if s.memoryUsage, err = meter.Int64Gauge(MetricMemoryUsage,
		metric.WithDescription("Container memory usage"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricMemoryUsage, err)
	}
	if s.memoryLimit, err = meter.Int64Gauge(MetricMemoryLimit,
		metric.WithDescription("Container memory limit"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricMemoryLimit, err)
	}
	if s.memoryPercent, err = meter.Float64Histogram(MetricMemoryPercent,
		metric.WithDescription("Container memory usage as a percentage of its limit"),
		metric.WithUnit("%")); err != nil {
		return nil, instrumentErr(MetricMemoryPercent, err)
	}
	if s.netRx, err = meter.Int64Counter(MetricNetRx,
		metric.WithDescription("Bytes received by the container"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricNetRx, err)
	}
	if s.netTx, err = meter.Int64Counter(MetricNetTx,
		metric.WithDescription("Bytes transmitted by the container"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricNetTx, err)
	}
	if s.fsReads, err = meter.Int64Counter(MetricFsReads,
		metric.WithDescription("Bytes read from block devices by the container"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricFsReads, err)
	}
	if s.fsWrites, err = meter.Int64Counter(MetricFsWrites,
		metric.WithDescription("Bytes written to block devices by the container"),
		metric.WithUnit("By")); err != nil {
		return nil, instrumentErr(MetricFsWrites, err)
	}
	if s.count, err = meter.Int64UpDownCounter(MetricCount,
		metric.WithDescription("Number of in-scope containers by status"),
		metric.WithUnit("{container}")); err != nil {
		return nil, instrumentErr(MetricCount, err)
	}

	return s, nil
}

func instrumentErr(name string, err error) error {
	return fmt.Errorf("failed to create instrument %s: %w", name, err)
}

func (s *OTelSink) RecordCPU(ctx context.Context, l collector.Labels, percent float64) {
	s.cpuPercent.Record(ctx, percent, labelOpt(l))
}

func (s *OTelSink) RecordMemory(ctx context.Context, l collector.Labels, used, limit uint64, percent float64) {
	opt := labelOpt(l)
	s.memoryUsage.Record(ctx, toInt64(used), opt)
	s.memoryLimit.Record(ctx, toInt64(limit), opt)
	s.memoryPercent.Record(ctx, percent, opt)
}

func (s *OTelSink) AddNetwork(ctx context.Context, l collector.Labels, rx, tx uint64) {
	opt := labelOpt(l)
	if rx > 0 {
		s.netRx.Add(ctx, toInt64(rx), opt)
	}
	if tx > 0 {
		s.netTx.Add(ctx, toInt64(tx), opt)
	}
}

func (s *OTelSink) AddBlockIO(ctx context.Context, l collector.Labels, read, write uint64) {
	opt := labelOpt(l)
	if read > 0 {
		s.fsReads.Add(ctx, toInt64(read), opt)
	}
	if write > 0 {
		s.fsWrites.Add(ctx, toInt64(write), opt)
	}
}

// SetEntityCount moves the up/down counter by the difference to the last
// reported value so the exported sum is the current count.
func (s *OTelSink) SetEntityCount(ctx context.Context, status string, n int) {
	s.mu.Lock()
	diff := int64(n) - s.lastCounts[status]
	s.lastCounts[status] = int64(n)
	s.mu.Unlock()

	s.count.Add(ctx, diff, metric.WithAttributes(AttrStatus.String(status)))
}

func labelOpt(l collector.Labels) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		AttrContainerID.String(l.ContainerID),
		AttrContainerName.String(l.ContainerName),
		AttrImage.String(l.Image),
	))
}

func toInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
