package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showrunner/internal/pipeline"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				if cfg := ctx.configValue(); cfg != nil {
					limit = cfg.Dashboard.ListLimit
				}
			}
			return ctx.withClient(func(client *pipeline.Client) error {
				jobs, err := client.ListJobs(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list jobs: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(jobs))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to list (0 uses the configured limit)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job list as JSON")
	return cmd
}
