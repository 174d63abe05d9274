package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/audiograph/internal/conf"
)

// Command creates a command that prints the effective configuration
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, the config file, environment variables and flags are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return conf.DumpYAML(cmd.OutOrStdout(), settings)
		},
	}
}
