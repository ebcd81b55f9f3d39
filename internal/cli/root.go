// Package cli holds the healthbatch command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/healthbatch/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

type loader func() (config.Config, error)

func NewRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "healthbatch",
		Short:         "Scheduled HTTP health checks with alerting",
		Long:          `healthbatch probes a list of HTTP targets on a schedule, records every result and alerts on failures, slow responses and long runs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("HEALTHBATCH_CONFIG"), "path to a YAML config file")

	load := func() (config.Config, error) { return config.Load(configPath) }

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newRunCmd(load))
	root.AddCommand(newTargetsCmd())
	root.AddCommand(newPreflightCmd(load))
	return root
}
