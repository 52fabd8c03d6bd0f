package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contmon/internal/collector"
	"contmon/internal/config"
	"contmon/internal/delta"
	"contmon/internal/logger"
	"contmon/internal/process"
	"contmon/internal/service"
	"contmon/internal/status"
	"contmon/internal/telemetry"
)

const telemetryShutdownTimeout = 10 * time.Second

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Collect container metrics until interrupted",
		Long: `Run the collection loop in the foreground. This is what the installed
service executes. A cycle runs immediately and then once per collector.interval.
SIGINT or SIGTERM stops the loop; in-flight fetches are abandoned.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := setupLogger(cfg); err != nil {
				return err
			}
			defer logger.Close()

			return runDaemon(cmd.Context(), cfg)
		},
	}
}

func runDaemon(parent context.Context, cfg *config.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			logger.Error("Panic: %v\n%s", r, string(buf[:n]))
			service.NotifyStopping()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	logger.Info("Starting contmon %s (PID %d)", GetCurrentVersion(), os.Getpid())

	if cfg.Collector.Lock {
		lock, err := process.Acquire()
		if err != nil {
			if errors.Is(err, process.ErrAlreadyRunning) {
				if running, pid, _ := process.Check(); running && pid > 0 {
					return fmt.Errorf("%w (PID %d)", err, pid)
				}
			}
			return err
		}
		defer lock.Release()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := connectDocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	provider, err := telemetry.NewProvider(ctx, telemetry.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: GetCurrentVersion(),
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
		ExportInterval: cfg.Telemetry.ExportInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to set up metrics export: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warning("Failed to flush metrics on shutdown: %v", err)
		}
	}()

	sink, err := telemetry.NewOTelSink(provider.Meter())
	if err != nil {
		return err
	}

	self := telemetry.NewSelfMetrics()
	engine := delta.NewEngine(logger.L().Named("delta"))
	engine.OnReset(self.CounterReset)

	observers := []collector.Observer{self, service.Notifier{}}
	if cfg.Collector.StatusFile != "" {
		observers = append(observers, status.NewWriter(cfg.Collector.StatusFile, logger.L()))
	}
	coll := collector.New(rt, sink, engine, collectorOptions(cfg, observers...), logger.L().Named("collector"))

	if cfg.Telemetry.ListenAddr != "" {
		srv := telemetry.NewServer(cfg.Telemetry.ListenAddr, self.Registry(),
			healthCheck(coll, cfg.Collector.Interval, time.Now), logger.L().Named("telemetry"))
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start self telemetry server: %w", err)
		}
		defer srv.Shutdown(context.Background())
	}

	logger.Info("Collector initialized:")
	logger.Info("  Interval: %s", cfg.Collector.Interval)
	logger.Info("  Filters: %d ids, %d name patterns, %d image patterns",
		len(cfg.Filters.IDs), len(cfg.Filters.NamePatterns), len(cfg.Filters.ImagePatterns))
	logger.Info("  Export: %s %s", cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)

	service.NotifyReady()
	service.NotifyStatus("Collecting")

	err = coll.Run(ctx)
	logger.Info("Shutting down after %d cycle(s)", lastCycle(coll))
	service.NotifyStopping()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func lastCycle(c *collector.Collector) uint64 {
	if r := c.Last(); r != nil {
		return r.Cycle
	}
	return 0
}

// healthCheck fails when the last cycle failed or no cycle finished for
// three intervals.
func healthCheck(c *collector.Collector, interval time.Duration, now func() time.Time) telemetry.HealthFunc {
	return func() error {
		r := c.Last()
		if r == nil {
			return nil
		}
		if r.Failed() {
			return fmt.Errorf("cycle %d failed: %s", r.Cycle, r.Error)
		}
		if age := now().Sub(r.StartedAt); age > 3*interval {
			return fmt.Errorf("no cycle finished for %s", age.Round(time.Second))
		}
		return nil
	}
}
