package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"contmon/internal/config"
	"contmon/internal/process"
	"contmon/internal/status"
	"contmon/internal/ui"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last cycle recorded by the running collector",
		Long: `Read collector.status_file written by 'contmon run' after every cycle and
print its summary, together with whether a collector currently holds the
single-instance lock.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			running, pid, err := process.Check()
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), cfg, running, pid, time.Now())
		},
	}
}

func printStatus(w io.Writer, cfg *config.Config, running bool, pid int, now time.Time) error {
	ui.PrintSection(w, "Collector")
	if running {
		ui.PrintStatus(w, "success", fmt.Sprintf("Running (PID %d)", pid))
	} else {
		ui.PrintStatus(w, "warning", "Not running")
	}

	if cfg.Collector.StatusFile == "" {
		ui.PrintStatus(w, "info", "collector.status_file is disabled")
		ui.PrintSectionEnd(w)
		return nil
	}

	snap, err := status.Read(cfg.Collector.StatusFile)
	if errors.Is(err, status.ErrNoStatus) {
		ui.PrintStatus(w, "info", "No cycle recorded yet")
		ui.PrintSectionEnd(w)
		return nil
	}
	if err != nil {
		ui.PrintSectionEnd(w)
		return err
	}

	age := snap.Age(now).Round(time.Second)
	switch {
	case snap.Report.Failed():
		ui.PrintStatus(w, "error", fmt.Sprintf("Last cycle failed %s ago: %s", age, snap.Report.Error))
	case snap.Stale(now, cfg.Collector.Interval):
		ui.PrintStatus(w, "warning", fmt.Sprintf("Last cycle finished %s ago, expected every %s", age, cfg.Collector.Interval))
	default:
		ui.PrintStatus(w, "success", fmt.Sprintf("Last cycle finished %s ago", age))
	}
	fmt.Fprint(w, ui.ReportSummary(snap.Report))
	ui.PrintSectionEnd(w)

	if len(snap.Report.Containers) > 0 {
		fmt.Fprint(w, ui.ContainerTable(snap.Report.Containers))
	}
	return nil
}
