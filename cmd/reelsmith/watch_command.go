package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsmith/internal/hub"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <subject>...",
		Short: "Stream progress events for subjects",
		Long: "Stream job progress events for one or more subjects (project, sentence, " +
			"or outline ids) until interrupted.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			events, err := client.Watch(cmd.Context(), args...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for event := range events {
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, event); err != nil {
						return err
					}
					continue
				}
				switch event.Kind {
				case hub.KindCompleted:
					fmt.Fprintf(out, "job #%d %s completed: %s\n", event.JobID, event.JobType, event.Message)
				case hub.KindFailed:
					fmt.Fprintf(out, "job #%d %s failed: %s\n", event.JobID, event.JobType, event.Message)
				default:
					step := ""
					if event.StepName != "" {
						step = " " + event.StepName
					}
					fmt.Fprintf(out, "job #%d %s %.0f%%%s\n", event.JobID, event.JobType, event.Progress, step)
				}
			}
			return nil
		},
	}
}
