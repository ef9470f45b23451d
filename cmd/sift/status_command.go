package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show daemon status or details for one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid job id %q", args[0])
				}
				job, err := client.Job(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderJobDetail(*job))
				return nil
			}

			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderDaemonStatus(*status))
			return nil
		},
	}
}
