package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/pipeline"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	var scriptPath string
	var transcriptPath string
	var imagePromptsPath string
	var noRerender bool

	cmd := &cobra.Command{
		Use:   "edit <job-id>",
		Short: "Save edited artifacts and rerender the job",
		Long: `Save edited artifacts for a job, then trigger a rerender so the
pipeline regenerates downstream stages from the new content. Pass
--no-rerender to save without regenerating.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			patch := api.UpdateJobRequest{}
			if scriptPath != "" {
				data, err := os.ReadFile(scriptPath)
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				text := string(data)
				patch.Script = &text
			}
			if transcriptPath != "" {
				data, err := os.ReadFile(transcriptPath)
				if err != nil {
					return fmt.Errorf("read transcript: %w", err)
				}
				text := string(data)
				patch.Transcript = &text
			}
			if imagePromptsPath != "" {
				data, err := os.ReadFile(imagePromptsPath)
				if err != nil {
					return fmt.Errorf("read image prompts: %w", err)
				}
				patch.ImagePrompts = json.RawMessage(data)
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to save: pass at least one of --script, --transcript, --image-prompts")
			}

			return ctx.withClient(func(client *pipeline.Client) error {
				out := cmd.OutOrStdout()
				if _, err := client.UpdateJob(cmd.Context(), jobID, patch); err != nil {
					return fmt.Errorf("save edits: %w", err)
				}
				if noRerender {
					fmt.Fprintln(out, "Edits saved")
					return nil
				}
				if err := client.Rerender(cmd.Context(), jobID); err != nil {
					// The edit already landed; make the split outcome explicit
					// so the user retries only the rerender.
					fmt.Fprintln(out, "Edits saved")
					return fmt.Errorf("edits were saved, but the rerender did not start: %w", err)
				}
				fmt.Fprintln(out, "Edits saved and rerender started")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Path to the edited script text")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "Path to the edited transcript text")
	cmd.Flags().StringVar(&imagePromptsPath, "image-prompts", "", "Path to a JSON file with edited image prompts")
	cmd.Flags().BoolVar(&noRerender, "no-rerender", false, "Save edits without triggering a rerender")
	return cmd
}
