package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/pipeline"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var withScript bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Display a job's stages and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *pipeline.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("fetch job: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				renderJobDetail(cmd, ctx, *job, withScript)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	cmd.Flags().BoolVar(&withScript, "script", false, "Include the script body in the output")
	return cmd
}

func renderJobDetail(cmd *cobra.Command, ctx *commandContext, job api.Job, withScript bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader(fmt.Sprintf("Job %s", shortID(job.ID)), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "  Topic:   %s\n", job.Topic)
	fmt.Fprintf(out, "  Style:   %s\n", humanizeStyle(job.Style))
	fmt.Fprintf(out, "  Length:  %d seconds\n", job.Length)
	fmt.Fprintf(out, "  Created: %s\n", formatTimestamp(job.CreatedAt))
	fmt.Fprintf(out, "  Updated: %s\n", formatTimestamp(job.UpdatedAt))
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderStageLine("Overall", job.Status, overallDetail(job), colorize))
	fmt.Fprintln(out, renderStageLine("Script", job.ScriptStatus, scriptDetail(job), colorize))
	fmt.Fprintln(out, renderStageLine("Audio", job.AudioStatus, job.AudioPath, colorize))
	fmt.Fprintln(out, renderStageLine("Video", job.VideoStatus, job.VideoURL, colorize))

	if job.YouTubeContext != nil && job.YouTubeContext.Summary != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Research: %s\n", truncate(job.YouTubeContext.Summary, 200))
	}

	if cfg := ctx.configValue(); cfg != nil && cfg.Dashboard.ExternalURL != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  Dashboard: %s/jobs/%s\n", strings.TrimRight(cfg.Dashboard.ExternalURL, "/"), job.ID)
	}

	if withScript && job.Script != "" {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Script", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, job.Script)
	}
}

func overallDetail(job api.Job) string {
	parts := make([]string, 0, 2)
	if s := formatScore(job.ReviewScore); s != "-" {
		parts = append(parts, "score "+s)
	}
	if d := formatDurationSeconds(job.GenerationTime); d != "-" {
		parts = append(parts, "took "+d)
	}
	return strings.Join(parts, ", ")
}

func scriptDetail(job api.Job) string {
	if job.ScriptStatus != api.StatusCompleted || job.Script == "" {
		return ""
	}
	return fmt.Sprintf("%d chars", len(job.Script))
}
