package commands

import (
	"github.com/spf13/cobra"

	"contmon/internal/config"
	"contmon/internal/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

var flags globalFlags

// NewRootCmd assembles the contmon command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contmon",
		Short: "Container resource collector",
		Long: `contmon periodically inventories the containers of a Docker host, selects
the ones matching the configured filters, samples their CPU, memory, network
and block I/O usage and exports the results as OpenTelemetry metrics.

Examples:
  contmon run                       # collect until interrupted
  contmon once                      # one cycle, print per-container usage
  contmon status                    # last cycle of the running collector
  contmon config --config ./c.yaml  # print the effective configuration`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true,
		CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default $HOME/.contmon/config.yaml or ./config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewOnceCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewConfigCmd())
	root.AddCommand(NewServiceCmd())
	root.AddCommand(NewVersionCmd())

	return root
}

// loadConfig reads the configuration and applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogger initializes the process logger from cfg.
func setupLogger(cfg *config.Config) error {
	return logger.Init(logger.Options{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Path:         cfg.Log.Path,
		MaxAge:       cfg.Log.MaxAge,
		RotationTime: cfg.Log.RotationTime,
	})
}
