package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// GetCurrentVersion is a function variable that will be set by main.go
// This allows all commands to access the current version without circular dependencies
var GetCurrentVersion = func() string { return "dev" }

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the contmon version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "contmon v%s (%s, %s/%s)\n",
				GetCurrentVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
