package main

import (
	"strings"
	"testing"
	"time"

	"virtucast/internal/pipeline"
	"virtucast/internal/render"
	"virtucast/internal/renderspec"
	"virtucast/internal/services"
	"virtucast/internal/timeline"
	"virtucast/internal/verify"
)

func TestRunReportLinesSuccess(t *testing.T) {
	report := pipeline.Report{
		RunID: "0123456789abcdef",
		State: pipeline.StateDone,
		Timeline: &timeline.Timeline{
			Title:        "Evening Broadcast",
			FrameRate:    30,
			TotalSeconds: 8,
			Cues:         make([]timeline.Cue, 2),
		},
		Spec: renderspec.Spec{ExpectedFrames: 240, OutputDir: "/renders/out"},
		Outcome: render.Outcome{
			StrategyUsed: renderspec.StrategyPrimaryHook,
			VerifyDir:    "/renders/out",
		},
		Artifact: verify.Artifact{FrameCount: 240, Verified: true},
		LogPath:  "/logs/run.log",
		Duration: 3200 * time.Millisecond,
	}

	joined := strings.Join(runReportLines(report, false), "\n")
	for _, want := range []string{
		"01234567",
		"done",
		"primary_hook",
		"2 cues, 8.00s at 30 fps",
		"240/240",
		"/renders/out",
		"/logs/run.log",
		"3.2s",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("report missing %q:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, "\x1b[") {
		t.Fatalf("uncolorized report carries ANSI codes:\n%s", joined)
	}
}

func TestRunReportLinesFailure(t *testing.T) {
	report := pipeline.Report{
		RunID: "run-1",
		State: pipeline.StateAborted,
		Err:   services.Wrap(services.ErrIncompleteRender, "verify", "scan", "frame shortfall", nil),
		Spec:  renderspec.Spec{ExpectedFrames: 240},
		Outcome: render.Outcome{
			StrategyUsed: renderspec.StrategyPrimaryHook,
			VerifyDir:    "/renders/out",
		},
		Artifact: verify.Artifact{FrameCount: 100},
	}

	joined := strings.Join(runReportLines(report, false), "\n")
	requireContains(t, joined, "aborted (incomplete_render)")
	requireContains(t, joined, "100/240 unverified")
}

func TestRunReportLinesColorized(t *testing.T) {
	lines := runReportLines(pipeline.Report{RunID: "run-1", State: pipeline.StateDone}, true)
	joined := strings.Join(lines, "")
	if !strings.Contains(joined, ansiGreen) {
		t.Fatalf("colorized report missing success color:\n%s", joined)
	}
}
