package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sift/internal/api"
)

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return newControlCommand(ctx, "pause", "Pause a job at its next stage boundary",
		func(c *api.Client, cmdCtx context.Context, id int64) (*api.ControlResponse, error) {
			return c.Pause(cmdCtx, id)
		})
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return newControlCommand(ctx, "resume", "Resume a paused job",
		func(c *api.Client, cmdCtx context.Context, id int64) (*api.ControlResponse, error) {
			return c.Resume(cmdCtx, id)
		})
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return newControlCommand(ctx, "cancel", "Cancel a job cooperatively",
		func(c *api.Client, cmdCtx context.Context, id int64) (*api.ControlResponse, error) {
			return c.Cancel(cmdCtx, id)
		})
}

func newControlCommand(
	ctx *commandContext,
	action, short string,
	apply func(*api.Client, context.Context, int64) (*api.ControlResponse, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, err := apply(client, cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d: %s requested\n", result.ID, result.Action)
			return nil
		},
	}
}
