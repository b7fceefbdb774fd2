package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"showrunner/internal/api"
	"showrunner/internal/pipeline"
)

func newArtifactCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "artifact <job-id> <type>",
		Short: "Fetch a job artifact (script, transcript, frames, audio, video)",
		Long: `Fetch one artifact of a job. Text artifacts print to stdout unless
--output is given; audio and video are always written to a file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			artifact, err := api.ParseArtifactType(args[1])
			if err != nil {
				return err
			}

			return ctx.withClient(func(client *pipeline.Client) error {
				if !artifact.Binary() && output == "" {
					text, err := client.FetchTextArtifact(cmd.Context(), jobID, artifact)
					if err != nil {
						return fmt.Errorf("fetch %s: %w", artifact, err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(text, "\n"))
					return nil
				}

				target := output
				if target == "" {
					target = fmt.Sprintf("%s-%s%s", shortID(jobID), artifact, artifact.Extension())
				}
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create %s: %w", target, err)
				}
				defer file.Close()

				var written int64
				if artifact.Binary() {
					written, err = client.FetchBinaryArtifact(cmd.Context(), jobID, artifact, file)
				} else {
					var text string
					text, err = client.FetchTextArtifact(cmd.Context(), jobID, artifact)
					if err == nil {
						var n int
						n, err = file.WriteString(text)
						written = int64(n)
					}
				}
				if err != nil {
					os.Remove(target)
					return fmt.Errorf("fetch %s: %w", artifact, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", target, written)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to <job>-<type> with a fitting extension)")
	return cmd
}
