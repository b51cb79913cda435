package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"virtucast/internal/logging"
	"virtucast/internal/pipeline"
	"virtucast/internal/runlog"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var mode string
	var timelineOut string

	cmd := &cobra.Command{
		Use:   "render <script.yaml>",
		Short: "Render a broadcast script to finished frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, pipelineRequest{
				scriptPath: args[0],
				overrides: pipeline.Overrides{
					OutputDir:   outputDir,
					Mode:        mode,
					TimelineOut: timelineOut,
				},
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write rendered frames")
	cmd.Flags().StringVar(&mode, "mode", "", "Render mode override (hook or cli)")
	cmd.Flags().StringVar(&timelineOut, "timeline-out", "", "Also write the built timeline JSON to this path")
	return cmd
}

func newRenderOnlyCommand(ctx *commandContext) *cobra.Command {
	var timelinePath string
	var outputDir string
	var mode string

	cmd := &cobra.Command{
		Use:   "render-only",
		Short: "Render a previously built timeline, skipping script and audio probing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, pipelineRequest{
				timelinePath: timelinePath,
				overrides: pipeline.Overrides{
					OutputDir: outputDir,
					Mode:      mode,
				},
			})
		},
	}

	cmd.Flags().StringVar(&timelinePath, "timeline", "", "Timeline JSON produced by `virtucast timeline --write`")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write rendered frames")
	cmd.Flags().StringVar(&mode, "mode", "", "Render mode override (hook or cli)")
	_ = cmd.MarkFlagRequired("timeline")
	return cmd
}

type pipelineRequest struct {
	scriptPath   string
	timelinePath string
	overrides    pipeline.Overrides
}

// runPipeline is the shared execution path for render and render-only. The
// report always prints, success or not; the pipeline error propagates so the
// process exits with the taxonomy code for the failure class.
func runPipeline(cmd *cobra.Command, ctx *commandContext, req pipelineRequest) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logger, logPath, err := logging.NewRunLogger(cfg, stamp)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	opts := []pipeline.Option{pipeline.WithRunLogPath(logPath)}
	store, err := runlog.Open(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warn: run ledger unavailable: %v\n", err)
	} else {
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	}

	coordinator := pipeline.New(cfg, logger, opts...)

	var report pipeline.Report
	if req.scriptPath != "" {
		report = coordinator.Run(signalCtx, req.scriptPath, req.overrides)
	} else {
		report = coordinator.RunTimeline(signalCtx, req.timelinePath, req.overrides)
	}

	printRunReport(cmd.OutOrStdout(), report)
	return report.Err
}
