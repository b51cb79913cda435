package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"virtucast/internal/pipeline"
	"virtucast/internal/services"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusError
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

const (
	reportLabelWidth = 12
	reportIndent     = "  "
)

// runReportLines flattens a terminal report for one pipeline run. Lines that
// would describe stages the run never reached are omitted.
func runReportLines(report pipeline.Report, colorize bool) []string {
	lines := make([]string, 0, 8)

	if report.RunID != "" {
		lines = append(lines, reportLine("Run", statusInfo, shortRunID(report.RunID), colorize))
	}

	resultKind := statusOK
	resultText := string(report.State)
	if report.Err != nil {
		resultKind = statusError
		if kind := services.Kind(report.Err); kind != "" {
			resultText = fmt.Sprintf("%s (%s)", report.State, kind)
		}
	}
	lines = append(lines, reportLine("Result", resultKind, resultText, colorize))

	if used := report.Outcome.StrategyUsed; used != "" {
		strategy := string(used)
		if report.Outcome.FellBack {
			strategy += " after fallback"
		}
		lines = append(lines, reportLine("Strategy", statusInfo, strategy, colorize))
	}
	if tl := report.Timeline; tl != nil {
		lines = append(lines, reportLine("Timeline", statusInfo,
			fmt.Sprintf("%d cues, %.2fs at %d fps", len(tl.Cues), tl.TotalSeconds, tl.FrameRate), colorize))
	}
	if report.Spec.ExpectedFrames > 0 {
		frames := fmt.Sprintf("%d/%d", report.Artifact.FrameCount, report.Spec.ExpectedFrames)
		kind := statusOK
		if !report.Artifact.Verified {
			kind = statusError
			frames += " unverified"
		}
		lines = append(lines, reportLine("Frames", kind, frames, colorize))
	}
	if dir := report.Outcome.VerifyDir; dir != "" {
		lines = append(lines, reportLine("Output", statusInfo, dir, colorize))
	}
	if report.LogPath != "" {
		lines = append(lines, reportLine("Log", statusInfo, report.LogPath, colorize))
	}
	if report.Duration > 0 {
		lines = append(lines, reportLine("Elapsed", statusInfo,
			report.Duration.Round(100*time.Millisecond).String(), colorize))
	}
	return lines
}

func printRunReport(w io.Writer, report pipeline.Report) {
	colorize := shouldColorize(w)
	for _, line := range runReportLines(report, colorize) {
		fmt.Fprintln(w, line)
	}
}

func reportLine(label string, kind statusKind, message string, colorize bool) string {
	base := fmt.Sprintf("%s%-*s %s", reportIndent, reportLabelWidth, label+":", message)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
