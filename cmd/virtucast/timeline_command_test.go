package main

import (
	"encoding/json"
	"errors"
	"testing"

	"virtucast/internal/services"
	"virtucast/internal/testsupport"
	"virtucast/internal/timeline"
)

func TestCLITimelineTableAndSummary(t *testing.T) {
	_, cfgPath := testsupport.NewConfigFile(t)
	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)

	out, _, err := runCLI(t, cfgPath, "timeline", manifest)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	requireContains(t, out, "Vivian")
	requireContains(t, out, "Wide")
	requireContains(t, out, "2 cues")
	requireContains(t, out, "240 frames expected at 30 fps")
}

func TestCLITimelineJSON(t *testing.T) {
	_, cfgPath := testsupport.NewConfigFile(t)
	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)

	out, _, err := runCLI(t, cfgPath, "timeline", manifest, "--json")
	if err != nil {
		t.Fatalf("timeline --json: %v", err)
	}

	var tl timeline.Timeline
	if err := json.Unmarshal([]byte(out), &tl); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(tl.Cues) != 2 || tl.TotalSeconds != 8 || tl.FrameRate != 30 {
		t.Fatalf("timeline = %d cues, %gs, %d fps", len(tl.Cues), tl.TotalSeconds, tl.FrameRate)
	}
	if err := tl.Validate(); err != nil {
		t.Fatalf("emitted timeline does not validate: %v", err)
	}
}

func TestCLITimelineRejectsUnknownAnchor(t *testing.T) {
	_, cfgPath := testsupport.NewConfigFile(t, testsupport.WithAnchors("Marcus"))
	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 2)

	_, _, err := runCLI(t, cfgPath, "timeline", manifest)
	if err == nil {
		t.Fatal("expected an unknown anchor to fail")
	}
	if !errors.Is(err, services.ErrTimeline) {
		t.Fatalf("err = %v, want a timeline error", err)
	}
	if code := services.ExitCode(err); code != 12 {
		t.Fatalf("exit code = %d, want 12", code)
	}
}
