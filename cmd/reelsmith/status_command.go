package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			state := "stopped"
			color := ansiRed
			if status.Running {
				state = "running"
				color = ansiGreen
			}
			if stdoutIsTerminal() {
				fmt.Fprintf(out, "Daemon: %s%s%s (pid %d)\n", color, state, ansiReset, status.PID)
			} else {
				fmt.Fprintf(out, "Daemon: %s (pid %d)\n", state, status.PID)
			}
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Lock: %s\n", status.LockFilePath)
			if status.DroppedEvents > 0 {
				fmt.Fprintf(out, "Dropped events: %d\n", status.DroppedEvents)
			}

			if len(status.JobCounts) > 0 {
				statuses := make([]string, 0, len(status.JobCounts))
				for name := range status.JobCounts {
					statuses = append(statuses, name)
				}
				sort.Strings(statuses)
				rows := make([][]string, 0, len(statuses))
				for _, name := range statuses {
					rows = append(rows, []string{name, fmt.Sprintf("%d", status.JobCounts[name])})
				}
				fmt.Fprintln(out, renderTable([]string{"Status", "Jobs"}, rows, 2))
			}
			return nil
		},
	}
}
