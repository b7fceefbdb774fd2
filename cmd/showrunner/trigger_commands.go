package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"showrunner/internal/pipeline"
	"showrunner/internal/stage"
)

func newRerenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rerender <job-id>",
		Short: "Regenerate a job's script and reset downstream stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *pipeline.Client) error {
				if err := client.Rerender(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("rerender: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rerender started; audio and video were reset")
				return nil
			})
		},
	}
}

func newAudioCommand(ctx *commandContext) *cobra.Command {
	var voice string

	cmd := &cobra.Command{
		Use:   "audio <job-id>",
		Short: "Request audio narration for a completed script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *pipeline.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("fetch job: %w", err)
				}
				if !stage.CanRequestAudio(*job) {
					return fmt.Errorf("audio not available: script status is %s", humanizeStatus(job.ScriptStatus))
				}
				updated, err := client.RequestAudio(cmd.Context(), job.ID, voice)
				if err != nil {
					return fmt.Errorf("request audio: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Audio generation %s\n", humanizeStatus(updated.AudioStatus))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&voice, "voice", "", "TTS voice to narrate with (pipeline default when empty)")
	return cmd
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "video <job-id>",
		Short: "Request video rendering for completed audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *pipeline.Client) error {
				job, err := client.GetJob(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("fetch job: %w", err)
				}
				if !stage.CanRequestVideo(*job, cfg.Dashboard.VideoEnabled) {
					if !cfg.Dashboard.VideoEnabled {
						return fmt.Errorf("video rendering is disabled in this deployment")
					}
					return fmt.Errorf("video not available: audio status is %s", humanizeStatus(job.AudioStatus))
				}
				updated, err := client.RequestVideo(cmd.Context(), job.ID)
				if err != nil {
					return fmt.Errorf("request video: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Video rendering %s\n", humanizeStatus(updated.VideoStatus))
				return nil
			})
		},
	}
}
