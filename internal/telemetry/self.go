package telemetry

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"contmon/internal/collector"
	"contmon/internal/delta"
)

const selfNamespace = "contmon"

// SelfMetrics is the collector's own health, exposed in Prometheus format.
type SelfMetrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	fetchErrors   prometheus.Counter
	resets        *prometheus.CounterVec
	pruned        prometheus.Counter
	tracked       prometheus.Gauge
	inScope       *prometheus.GaugeVec
}

var _ collector.Observer = (*SelfMetrics)(nil)

// NewSelfMetrics creates a registry with the collector metrics plus the Go
// runtime and process collectors.
func NewSelfMetrics() *SelfMetrics {
	m := &SelfMetrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: selfNamespace,
			Name:      "cycles_total",
			Help:      "Collection cycles by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: selfNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of collection cycles.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: selfNamespace,
			Name:      "fetch_errors_total",
			Help:      "Per-container stats fetches that failed.",
		}),
		resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: selfNamespace,
			Name:      "counter_resets_total",
			Help:      "Cumulative counters observed going backwards, by kind.",
		}, []string{"kind"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: selfNamespace,
			Name:      "pruned_entries_total",
			Help:      "Previous-value entries dropped for vanished containers.",
		}),
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: selfNamespace,
			Name:      "tracked_entities",
			Help:      "Containers with stored previous counter values.",
		}),
		inScope: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: selfNamespace,
			Name:      "in_scope_containers",
			Help:      "Containers selected by the filters in the last cycle, by status.",
		}, []string{"status"}),
	}

	for _, r := range []string{"success", "failure"} {
		m.cycles.WithLabelValues(r)
	}
	for _, k := range delta.Kinds {
		m.resets.WithLabelValues(k.String())
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.fetchErrors,
		m.resets,
		m.pruned,
		m.tracked,
		m.inScope,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *SelfMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCycle records the outcome of one cycle.
func (m *SelfMetrics) ObserveCycle(r *collector.Report) {
	m.cycleDuration.Observe(r.Duration.Seconds())
	if r.Failed() {
		m.cycles.WithLabelValues("failure").Inc()
		return
	}
	m.cycles.WithLabelValues("success").Inc()
	m.fetchErrors.Add(float64(r.FetchErrors))
	m.pruned.Add(float64(r.Pruned))
	m.tracked.Set(float64(r.Tracked))
	m.inScope.WithLabelValues(collector.StatusRunning).Set(float64(r.Running))
	m.inScope.WithLabelValues(collector.StatusNotRunning).Set(float64(r.NotRunning))
}

// CounterReset matches delta.ResetHook.
func (m *SelfMetrics) CounterReset(kind delta.Kind, _ string, _, _ uint64) {
	m.resets.WithLabelValues(kind.String()).Inc()
}

// WriteText writes every metric family in the Prometheus text format.
func (m *SelfMetrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather self metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
