package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newJobsListCommand(ctx))
	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsCreateCommand(ctx))
	cmd.AddCommand(newJobsRetryCommand(ctx))
	cmd.AddCommand(newJobsClearCommand(ctx))
	return cmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var filterFlag string
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List a project's jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			jobsList, err := client.ListJobs(cmd.Context(), args[0], filterFlag)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"jobs": jobsList})
			}

			if len(jobsList) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}
			rows := make([][]string, 0, len(jobsList))
			for _, job := range jobsList {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.Type,
					job.Status,
					fmt.Sprintf("%.0f%%", job.Progress),
					jobSubjectLabel(job),
					job.StepName,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"ID", "Type", "Status", "Progress", "Subject", "Step"}, rows, 1, 4))
			return nil
		},
	}
	cmd.Flags().StringVar(&filterFlag, "filter", "", "Filter jobs: active or failed")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.GetJob(cmd.Context(), id)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"job": job})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job #%d (%s)\n", job.ID, job.Type)
			fmt.Fprintf(out, "  Status:   %s\n", job.Status)
			fmt.Fprintf(out, "  Progress: %.0f%%\n", job.Progress)
			if subject := jobSubjectLabel(*job); subject != "" {
				fmt.Fprintf(out, "  Subject:  %s\n", subject)
			}
			if job.StepName != "" {
				fmt.Fprintf(out, "  Step:     %s (%d/%d)\n", job.StepName, job.CurrentStep, job.TotalSteps)
			}
			if job.ResultRef != "" {
				fmt.Fprintf(out, "  Result:   %s\n", job.ResultRef)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:    %s\n", job.ErrorMessage)
			}
			if job.StartedAt != nil {
				fmt.Fprintf(out, "  Started:  %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
			}
			if job.CompletedAt != nil {
				fmt.Fprintf(out, "  Finished: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newJobsCreateCommand(ctx *commandContext) *cobra.Command {
	var projectFlag, sentenceFlag, outlineFlag string
	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Enqueue a generation job",
		Long: "Enqueue a generation job. If an identical job is already queued or running " +
			"for the same subject, that job is returned instead of creating a duplicate.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.CreateJob(cmd.Context(), api.CreateJobRequest{
				Type:       args[0],
				ProjectID:  projectFlag,
				SentenceID: sentenceFlag,
				OutlineID:  outlineFlag,
			})
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, resp)
			}
			if resp.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "Job #%d queued (%s)\n", resp.Job.ID, resp.Job.Type)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Job #%d already %s for this subject\n", resp.Job.ID, resp.Job.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&projectFlag, "project", "", "Project the job is scoped to")
	cmd.Flags().StringVar(&sentenceFlag, "sentence", "", "Sentence the job is scoped to")
	cmd.Flags().StringVar(&outlineFlag, "outline", "", "Outline or section the job is scoped to")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>...",
		Short: "Requeue failed jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				resp, err := client.RetryJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				switch {
				case ctx.jsonOutput():
					if err := writeJSON(cmd, resp); err != nil {
						return err
					}
				case resp.Retried:
					fmt.Fprintf(out, "Job #%d requeued\n", id)
				default:
					fmt.Fprintf(out, "Job #%d is not failed (status %s)\n", id, resp.Job.Status)
				}
			}
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <project-id>",
		Short: "Delete every job scoped to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			deleted, err := client.DeleteProjectJobs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]int64{"deleted": deleted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d jobs\n", deleted)
			return nil
		},
	}
}

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func jobSubjectLabel(job api.JobView) string {
	switch {
	case job.SentenceID != "":
		return "sentence " + job.SentenceID
	case job.OutlineID != "":
		return "outline " + job.OutlineID
	case job.ProjectID != "":
		return "project " + job.ProjectID
	default:
		return ""
	}
}
