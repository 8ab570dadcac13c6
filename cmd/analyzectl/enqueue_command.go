package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"media-analyzer/internal/queue"
	"media-analyzer/internal/shared/config"
)

func newEnqueueCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var analysisID string

	cmd := &cobra.Command{
		Use:   "enqueue <source-path>",
		Short: "Send an analysis request to the SQS intake queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			if analysisID == "" {
				analysisID = uuid.NewString()
			}

			client, err := queue.NewSQSClient(cmd.Context(), cfg.SQSQueueURL, cfg.AWSRegion)
			if err != nil {
				return err
			}
			if err := client.Send(cmd.Context(), queue.NewMessage(analysisID, source, uuid.NewString())); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued analysis %s for %s\n", analysisID, source)
			return nil
		},
	}
	cmd.Flags().StringVar(&analysisID, "id", "", "Analysis id (generated when empty)")
	return cmd
}
