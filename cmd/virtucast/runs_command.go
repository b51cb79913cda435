package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"virtucast/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var status string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded render runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var statusFilter runlog.Status
			if trimmed := strings.TrimSpace(status); trimmed != "" {
				parsed, ok := runlog.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q (expected running, done, or aborted)", trimmed)
				}
				statusFilter = parsed
			}

			store, err := runlog.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), runlog.ListOptions{Limit: limit, Status: statusFilter})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, buildRunViews(runs))
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			table := renderTable(
				[]string{"Run", "Title", "Status", "Strategy", "Frames", "Started", "Elapsed"},
				buildRunRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running, done, aborted)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit runs as JSON")
	return cmd
}

func buildRunRows(runs []*runlog.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		frames := "-"
		if run.ExpectedFrames > 0 {
			frames = fmt.Sprintf("%d/%d", run.FrameCount, run.ExpectedFrames)
		}
		elapsed := "-"
		if run.FinishedAt != nil {
			elapsed = formatElapsed(run.DurationSeconds)
		}
		rows = append(rows, []string{
			shortRunID(run.ID),
			valueOrDash(run.Title),
			string(run.Status),
			runStrategyLabel(run),
			frames,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			elapsed,
		})
	}
	return rows
}

func runStrategyLabel(run *runlog.Run) string {
	strategy := run.UsedStrategy
	if strategy == "" {
		strategy = run.RequestedStrategy
	}
	if strategy == "" {
		return "-"
	}
	if run.FellBack {
		strategy += " (fallback)"
	}
	return strategy
}

func formatElapsed(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	return d.Round(100 * time.Millisecond).String()
}

// runView is the JSON projection of a ledger row.
type runView struct {
	ID                string  `json:"id"`
	Title             string  `json:"title,omitempty"`
	ScriptPath        string  `json:"script_path,omitempty"`
	TimelinePath      string  `json:"timeline_path,omitempty"`
	OutputDir         string  `json:"output_dir"`
	RequestedStrategy string  `json:"requested_strategy"`
	UsedStrategy      string  `json:"used_strategy,omitempty"`
	FellBack          bool    `json:"fell_back"`
	Status            string  `json:"status"`
	Stage             string  `json:"stage,omitempty"`
	ExpectedFrames    int     `json:"expected_frames"`
	FrameCount        int     `json:"frame_count"`
	Verified          bool    `json:"verified"`
	ErrorKind         string  `json:"error_kind,omitempty"`
	ErrorMessage      string  `json:"error_message,omitempty"`
	EngineExitCode    *int    `json:"engine_exit_code,omitempty"`
	LogPath           string  `json:"log_path,omitempty"`
	StartedAt         string  `json:"started_at"`
	FinishedAt        string  `json:"finished_at,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

func buildRunViews(runs []*runlog.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		view := runView{
			ID:                run.ID,
			Title:             run.Title,
			ScriptPath:        run.ScriptPath,
			TimelinePath:      run.TimelinePath,
			OutputDir:         run.OutputDir,
			RequestedStrategy: run.RequestedStrategy,
			UsedStrategy:      run.UsedStrategy,
			FellBack:          run.FellBack,
			Status:            string(run.Status),
			Stage:             run.Stage,
			ExpectedFrames:    run.ExpectedFrames,
			FrameCount:        run.FrameCount,
			Verified:          run.Verified,
			ErrorKind:         run.ErrorKind,
			ErrorMessage:      run.ErrorMessage,
			EngineExitCode:    run.EngineExitCode,
			LogPath:           run.LogPath,
			StartedAt:         run.StartedAt.Format(time.RFC3339),
			DurationSeconds:   run.DurationSeconds,
		}
		if run.FinishedAt != nil {
			view.FinishedAt = run.FinishedAt.Format(time.RFC3339)
		}
		views = append(views, view)
	}
	return views
}
