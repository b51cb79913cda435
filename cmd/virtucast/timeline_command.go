package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"virtucast/internal/media/audioprobe"
	"virtucast/internal/script"
	"virtucast/internal/timeline"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	var writePath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "timeline <script.yaml>",
		Short: "Build and inspect a cue timeline without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			s, err := script.Load(args[0])
			if err != nil {
				return err
			}
			if err := audioprobe.FillScript(cmd.Context(), cfg.FFprobeBinary(), s); err != nil {
				return err
			}
			tl, err := timeline.Build(s, cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if writePath != "" {
				if err := tl.WriteFile(writePath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote timeline to %s\n", writePath)
			}
			if asJSON {
				return writeJSON(cmd, tl)
			}

			rows := make([][]string, 0, len(tl.Cues))
			for _, cue := range tl.Cues {
				rows = append(rows, []string{
					strconv.Itoa(cue.Index),
					cue.Anchor,
					cue.Camera,
					formatSeconds(cue.StartSeconds),
					formatSeconds(cue.EndSeconds),
					formatSeconds(cue.DurationSeconds),
					truncateText(cue.Text, 40),
				})
			}
			table := renderTable(
				[]string{"Cue", "Anchor", "Camera", "Start", "End", "Length", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			)
			fmt.Fprintln(out, table)
			fmt.Fprintf(out, "%s: %d cues, %s total, %d frames expected at %d fps\n",
				tl.Title, len(tl.Cues), formatSeconds(tl.TotalSeconds), tl.ExpectedFrames(), tl.FrameRate)
			return nil
		},
	}

	cmd.Flags().StringVar(&writePath, "write", "", "Write the timeline JSON to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the timeline as JSON")
	return cmd
}

func formatSeconds(value float64) string {
	return fmt.Sprintf("%.2fs", value)
}

func truncateText(value string, limit int) string {
	runes := []rune(value)
	if limit <= 3 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
