package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contmon/internal/collector"
	"contmon/internal/config"
	"contmon/internal/container"
	"contmon/internal/delta"
	"contmon/internal/logger"
	"contmon/internal/telemetry"
	"contmon/internal/ui"
)

type onceOptions struct {
	window        time.Duration
	dumpTelemetry bool
}

// NewOnceCmd creates the once command
func NewOnceCmd() *cobra.Command {
	var opts onceOptions
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single collection cycle and print per-container usage",
		Long: `Run one cycle against the configured runtime and print what it measured.
Nothing is exported. Network and block I/O columns of a single cycle show the
cumulative counters; pass --window to prime the counters first and report the
increments over that window instead.

Examples:
  contmon once
  contmon once --window 10s
  contmon once --dump-telemetry`,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var rt *container.DockerRuntime
			err = ui.WithSpinner(cmd.ErrOrStderr(), "Connecting to "+cfg.Docker.Host, func() error {
				var cerr error
				rt, cerr = connectDocker(ctx, cfg)
				return cerr
			})
			if err != nil {
				return err
			}
			defer rt.Close()

			return runOnce(ctx, rt, cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&opts.window, "window", 0, "prime the counters, wait this long and report the second cycle")
	cmd.Flags().BoolVar(&opts.dumpTelemetry, "dump-telemetry", false, "also print the self telemetry in Prometheus text format")
	return cmd
}

func runOnce(ctx context.Context, rt container.Runtime, cfg *config.Config, opts onceOptions, w io.Writer) error {
	self := telemetry.NewSelfMetrics()
	engine := delta.NewEngine(logger.L())
	engine.OnReset(self.CounterReset)
	coll := collector.New(rt, nil, engine, collectorOptions(cfg, self), logger.L())

	if opts.window > 0 {
		if _, err := coll.RunCycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.window):
		}
	}

	r, err := coll.RunCycle(ctx)
	if err != nil {
		return err
	}

	ui.PrintSection(w, "Cycle")
	fmt.Fprint(w, ui.ReportSummary(r))
	ui.PrintSectionEnd(w)

	if len(r.Containers) == 0 {
		ui.PrintStatus(w, "warning", "No running container matched the filters")
	} else {
		fmt.Fprint(w, ui.ContainerTable(r.Containers))
	}
	if r.FetchErrors > 0 {
		ui.PrintStatus(w, "warning", fmt.Sprintf("%d container(s) could not be sampled, see log", r.FetchErrors))
	}

	if opts.dumpTelemetry {
		fmt.Fprintln(w)
		return self.WriteText(w)
	}
	return nil
}
