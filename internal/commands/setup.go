package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"contmon/internal/collector"
	"contmon/internal/config"
	"contmon/internal/container"
	"contmon/internal/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// connectBackOff bounds start-up retries by maxElapsed. Zero means a single
// attempt.
func connectBackOff(maxElapsed time.Duration) backoff.BackOff {
	if maxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxElapsed
	return b
}

// waitForRuntime pings the runtime until it answers or b gives up.
func waitForRuntime(ctx context.Context, p pinger, pingTimeout time.Duration, b backoff.BackOff) error {
	attempts := 0
	op := func() error {
		attempts++
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return p.Ping(pctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warning("Container runtime not reachable (attempt %d): %v, retrying in %s", attempts, err, next.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("container runtime unreachable after %d attempt(s): %w", attempts, err)
	}
	return nil
}

// connectDocker creates the Docker adapter and waits for the daemon.
func connectDocker(ctx context.Context, cfg *config.Config) (*container.DockerRuntime, error) {
	rt, err := container.NewDockerRuntime(container.DockerOptions{
		Host:       cfg.Docker.Host,
		APIVersion: cfg.Docker.APIVersion,
	})
	if err != nil {
		return nil, err
	}

	if err := waitForRuntime(ctx, rt, cfg.Docker.PingTimeout, connectBackOff(cfg.Docker.ConnectMaxElapsed)); err != nil {
		rt.Close()
		return nil, err
	}

	info, err := rt.Info(ctx)
	if err != nil {
		logger.Warning("Failed to query runtime info: %v", err)
		return rt, nil
	}
	logger.Info("Connected to Docker %s (%s, storage driver %s): %d containers (%d running), %d images",
		info.ServerVersion, info.OperatingSystem, info.Driver, info.Containers, info.ContainersRunning, info.Images)
	return rt, nil
}

// collectorOptions maps the configuration onto the collector.
func collectorOptions(cfg *config.Config, observers ...collector.Observer) collector.Options {
	return collector.Options{
		Interval: cfg.Collector.Interval,
		Filter:   cfg.Filters,
		Families: collector.Families{
			CPU:     cfg.Metrics.EnableCPU,
			Memory:  cfg.Metrics.EnableMemory,
			Network: cfg.Metrics.EnableNetwork,
			Disk:    cfg.Metrics.EnableDisk,
		},
		MaxConcurrency: cfg.Collector.MaxConcurrency,
		FetchTimeout:   cfg.Collector.FetchTimeout,
		Observers:      observers,
	}
}
