package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contmon/internal/collector"
	"contmon/internal/config"
	"contmon/internal/container"
	"contmon/internal/container/containertest"
	"contmon/internal/filter"
	"contmon/internal/status"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("ping without deadline")
	}
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForRuntime_RetriesUntilReachable(t *testing.T) {
	p := &flakyPinger{failures: 2}
	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)

	require.NoError(t, waitForRuntime(context.Background(), p, time.Second, b))
	assert.Equal(t, 3, p.calls)
}

func TestWaitForRuntime_GivesUp(t *testing.T) {
	p := &flakyPinger{failures: 100}
	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)

	err := waitForRuntime(context.Background(), p, time.Second, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConnectBackOff_ZeroIsSingleAttempt(t *testing.T) {
	p := &flakyPinger{failures: 1}
	err := waitForRuntime(context.Background(), p, time.Second, connectBackOff(0))
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)

	exp, ok := connectBackOff(time.Minute).(*backoff.ExponentialBackOff)
	require.True(t, ok)
	assert.Equal(t, time.Minute, exp.MaxElapsedTime)
}

func TestCollectorOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Collector.Interval = 30 * time.Second
	cfg.Collector.MaxConcurrency = 4
	cfg.Filters = filter.Spec{NamePatterns: []string{"web*"}}
	cfg.Metrics.EnableDisk = false

	opts := collectorOptions(cfg, status.NewWriter("unused", nil))

	assert.Equal(t, 30*time.Second, opts.Interval)
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.Equal(t, []string{"web*"}, opts.Filter.NamePatterns)
	assert.Equal(t, collector.Families{CPU: true, Memory: true, Network: true}, opts.Families)
	assert.Len(t, opts.Observers, 1)
}

func runningWeb() *containertest.FakeRuntime {
	rt := containertest.NewFakeRuntime()
	rt.SetEntities(container.Entity{ID: "c1", Name: "web", Image: "nginx", Status: container.StatusRunning}, container.Entity{ID: "c2", Name: "db", Image: "postgres", Status: "exited"})
	rt.SetSnapshot("c1", &container.RawSnapshot{
		PreCPUTotal:  100,
		CPUTotal:     150,
		PreSystemCPU: 1000,
		SystemCPU:    1500,
		OnlineCPUs:   2,
		MemoryUsage:  50 << 20,
		MemoryLimit:  100 << 20,
		Networks:     []container.NetworkCounters{{Interface: "eth0", RxBytes: 1000}},
		Pids:         3,
	})
	return rt
}

func TestRunOnce(t *testing.T) {
	rt := runningWeb()
	var out bytes.Buffer

	require.NoError(t, runOnce(context.Background(), rt, config.Default(), onceOptions{dumpTelemetry: true}, &out))

	s := out.String()
	assert.Contains(t, s, "2 (1 running, 1 not running)")
	assert.Contains(t, s, "web")
	assert.Contains(t, s, "20.0%")
	assert.Contains(t, s, "1000 B / 0 B")
	assert.Contains(t, s, `contmon_cycles_total{result="success"} 1`)
	assert.Equal(t, 1, rt.ListCalls())
}

func TestRunOnce_WindowReportsIncrements(t *testing.T) {
	rt := runningWeb()
	var out bytes.Buffer

	require.NoError(t, runOnce(context.Background(), rt, config.Default(), onceOptions{window: time.Millisecond}, &out))

	assert.Equal(t, 2, rt.ListCalls())
	assert.Contains(t, out.String(), "#2")
	assert.Contains(t, out.String(), "0 B / 0 B")
}

func TestRunOnce_NoMatch(t *testing.T) {
	rt := runningWeb()
	cfg := config.Default()
	cfg.Filters = filter.Spec{IDs: []string{"nope"}}
	var out bytes.Buffer

	require.NoError(t, runOnce(context.Background(), rt, cfg, onceOptions{}, &out))
	assert.Contains(t, out.String(), "No running container matched the filters")
}

func TestRunOnce_InventoryFailure(t *testing.T) {
	rt := containertest.NewFakeRuntime()
	rt.SetListError(errors.New("daemon gone"))

	err := runOnce(context.Background(), rt, config.Default(), onceOptions{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, collector.ErrInventory)
}

func TestHealthCheck(t *testing.T) {
	rt := runningWeb()
	c := collector.New(rt, nil, nil, collectorOptions(config.Default()), nil)
	now := time.Now()
	clockAt := func(t time.Time) func() time.Time { return func() time.Time { return t } }

	assert.NoError(t, healthCheck(c, 15*time.Second, clockAt(now))(), "no cycle yet")

	_, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.NoError(t, healthCheck(c, 15*time.Second, clockAt(time.Now()))())
	assert.Error(t, healthCheck(c, 15*time.Second, clockAt(time.Now().Add(time.Minute)))(), "stalled")

	rt.SetListError(errors.New("daemon gone"))
	_, _ = c.RunCycle(context.Background())
	assert.ErrorContains(t, healthCheck(c, 15*time.Second, clockAt(time.Now()))(), "cycle 2 failed")
}

func TestPrintStatus(t *testing.T) {
	cfg := config.Default()
	cfg.Collector.StatusFile = filepath.Join(t.TempDir(), "status.cbor")
	now := time.Now()

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, cfg, false, 0, now))
	assert.Contains(t, out.String(), "Not running")
	assert.Contains(t, out.String(), "No cycle recorded yet")

	require.NoError(t, status.Write(cfg.Collector.StatusFile, &collector.Report{
		Cycle:      9,
		InScope:    1,
		Running:    1,
		Containers: []collector.ContainerReport{{ID: "c1", Name: "web", Image: "nginx"}},
	}))

	out.Reset()
	require.NoError(t, printStatus(&out, cfg, true, 4242, now))
	assert.Contains(t, out.String(), "Running (PID 4242)")
	assert.Contains(t, out.String(), "#9")
	assert.Contains(t, out.String(), "web")

	out.Reset()
	require.NoError(t, printStatus(&out, cfg, true, 4242, now.Add(time.Hour)))
	assert.Contains(t, out.String(), "expected every 15s")
}

func TestPrintStatus_Disabled(t *testing.T) {
	cfg := config.Default()
	cfg.Collector.StatusFile = ""

	var out bytes.Buffer
	require.NoError(t, printStatus(&out, cfg, false, 0, time.Now()))
	assert.Contains(t, out.String(), "disabled")
}

func TestConfigCmd_PrintsEffectiveYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collector:\n  interval: 45s\n"), 0644))
	t.Cleanup(func() { flags = globalFlags{} })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path, "--log-level", "debug"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "interval: 45s")
	assert.Contains(t, out.String(), "level: debug")
}

func TestConfigCmd_RejectsBadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))
	t.Cleanup(func() { flags = globalFlags{} })

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", path, "--log-level", "loud"})

	assert.Error(t, root.Execute())
}

func TestVersionCmd(t *testing.T) {
	original := GetCurrentVersion
	GetCurrentVersion = func() string { return "1.2.3" }
	t.Cleanup(func() { GetCurrentVersion = original })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "contmon v1.2.3")
}
