package main

import (
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/cubeconv/pkg/config"
)

func newConfigCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config <file>",
		Short: "Write the effective run configuration as YAML",
		Long: `Write the configuration "run" would use, after applying --config,
CUBECONV_ environment variables and flags, to a YAML file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML run configuration")
	addRunFlags(cmd.Flags())
	return cmd
}
