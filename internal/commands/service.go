package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"contmon/internal/service"
	"contmon/internal/ui"
)

// NewServiceCmd creates the service command with subcommands
func NewServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the contmon system service",
		Long: `Manage contmon as a background service (systemd on Linux, launchd on macOS).
The installed unit runs 'contmon run'; --config, when given, is passed on.

Examples:
  contmon service install --config /etc/contmon/config.yaml
  contmon service start
  contmon service status
  contmon service stop
  contmon service remove`,
	}

	cmd.AddCommand(newServiceActionCmd("install", "Install contmon as a system service", func(s *service.Service) (string, error) {
		var extra []string
		if flags.configPath != "" {
			abs, err := filepath.Abs(flags.configPath)
			if err != nil {
				return "", err
			}
			extra = append(extra, "--config", abs)
		}
		return s.Install(extra...)
	}))
	cmd.AddCommand(newServiceActionCmd("remove", "Remove the contmon system service", (*service.Service).Remove))
	cmd.AddCommand(newServiceActionCmd("start", "Start the contmon service", (*service.Service).Start))
	cmd.AddCommand(newServiceActionCmd("stop", "Stop the contmon service", (*service.Service).Stop))
	cmd.AddCommand(newServiceActionCmd("status", "Show the service manager's status", (*service.Service).Status))

	return cmd
}

func newServiceActionCmd(use, short string, action func(*service.Service) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			svc, err := service.New()
			if err != nil {
				return err
			}

			result, err := action(svc)
			if err != nil {
				ui.PrintStatus(w, "error", fmt.Sprintf("service %s: %v", use, err))
				return err
			}
			ui.PrintStatus(w, "success", result)
			return nil
		},
	}
}
