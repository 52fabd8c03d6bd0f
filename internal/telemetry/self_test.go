package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"contmon/internal/collector"
	"contmon/internal/delta"
)

func TestSelfMetrics_ObserveCycle(t *testing.T) {
	m := NewSelfMetrics()

	m.ObserveCycle(&collector.Report{
		Duration:    150 * time.Millisecond,
		Running:     3,
		NotRunning:  1,
		FetchErrors: 1,
		Pruned:      4,
		Tracked:     3,
	})
	m.ObserveCycle(&collector.Report{Error: "inventory listing failed"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pruned))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tracked))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.inScope.WithLabelValues(collector.StatusRunning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inScope.WithLabelValues(collector.StatusNotRunning)))

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), "contmon_cycle_duration_seconds_count 2")
}

func TestSelfMetrics_CounterResetHook(t *testing.T) {
	m := NewSelfMetrics()
	e := delta.NewEngine(zaptest.NewLogger(t))
	e.OnReset(m.CounterReset)

	e.Delta(delta.NetworkRx, "c1", 100)
	e.Delta(delta.NetworkRx, "c1", 10)
	e.Delta(delta.BlockWrite, "c1", 5)
	e.Delta(delta.BlockWrite, "c1", 1)
	e.Delta(delta.BlockWrite, "c1", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resets.WithLabelValues("network_rx")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resets.WithLabelValues("block_write")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.resets.WithLabelValues("network_tx")))
}

func TestSelfMetrics_WriteText(t *testing.T) {
	m := NewSelfMetrics()
	m.ObserveCycle(&collector.Report{Tracked: 2})

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, `contmon_cycles_total{result="success"} 1`)
	assert.Contains(t, out, "contmon_tracked_entities 2")
	assert.Contains(t, out, "# TYPE contmon_cycle_duration_seconds histogram")
}

func TestServer_MetricsAndHealth(t *testing.T) {
	m := NewSelfMetrics()
	m.ObserveCycle(&collector.Report{})

	var failing atomic.Bool
	health := func() error {
		if failing.Load() {
			return errors.New("last cycle failed")
		}
		return nil
	}
	srv := httptest.NewServer(newMux(m.Registry(), health, zaptest.NewLogger(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "contmon_cycles_total")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	failing.Store(true)
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewSelfMetrics().Registry(), nil, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	assert.NoError(t, s.Shutdown(ctx))
}
