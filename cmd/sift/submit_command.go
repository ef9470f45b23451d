package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"sift/internal/config"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <media-file>",
		Short: "Queue a walkthrough recording for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve media path: %w", err)
			}
			absPath, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve media path: %w", err)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.Submit(cmd.Context(), absPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d for %s\n", job.ID, absPath)
			return nil
		},
	}
}
