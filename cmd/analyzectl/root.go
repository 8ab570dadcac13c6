package main

import (
	"github.com/spf13/cobra"

	"media-analyzer/internal/shared/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "analyzectl",
		Short:         "Media analyzer CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	loadConfig := func() (config.Config, error) {
		if configFlag == "" {
			return config.Load(), nil
		}
		return config.LoadFile(configFlag, config.Load())
	}

	rootCmd.AddCommand(newAnalyzeCommand(loadConfig))
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newEnqueueCommand(loadConfig))

	return rootCmd
}
