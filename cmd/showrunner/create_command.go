package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/pipeline"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var style string
	var length int
	var imagePromptsPath string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create <topic>",
		Short: "Submit a new generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateJobRequest{
				Topic:  strings.TrimSpace(args[0]),
				Style:  strings.TrimSpace(style),
				Length: length,
			}
			if imagePromptsPath != "" {
				data, err := os.ReadFile(imagePromptsPath)
				if err != nil {
					return fmt.Errorf("read image prompts: %w", err)
				}
				req.ImagePrompts = json.RawMessage(data)
			}

			return ctx.withClient(func(client *pipeline.Client) error {
				job, err := client.CreateJob(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("create job: %w", err)
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created job %s\n", job.ID)
				fmt.Fprintf(out, "  Topic: %s\n", job.Topic)
				fmt.Fprintf(out, "  Status: %s\n", humanizeStatus(job.Status))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "informative", "Narration style for the script")
	cmd.Flags().IntVarP(&length, "length", "l", 300, "Desired video length in seconds")
	cmd.Flags().StringVar(&imagePromptsPath, "image-prompts", "", "Path to a JSON file with image prompt overrides")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created job as JSON")
	return cmd
}
