package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"virtucast/internal/config"
	"virtucast/internal/joblock"
	"virtucast/internal/logging"
	"virtucast/internal/pipeline"
	"virtucast/internal/renderspec"
	"virtucast/internal/runlog"
	"virtucast/internal/script"
	"virtucast/internal/services"
	"virtucast/internal/testsupport"
	"virtucast/internal/timeline"
)

// hookFrameStub is an editor stand-in that reads the hook output directory
// from its arguments and writes the requested number of frame files there.
func hookFrameStub(count int) string {
	return fmt.Sprintf(`#!/bin/sh
out=""
for arg in "$@"; do
  case "$arg" in
    -VirtuCastOut=*) out="${arg#-VirtuCastOut=}" ;;
  esac
done
mkdir -p "$out"
i=0
while [ "$i" -lt %d ]; do
  printf 'frame' > "$out/Broadcast.$(printf '%%04d' "$i").png"
  i=$((i+1))
done
exit 0
`, count)
}

// fallbackStub fails the hook launch with the missing-hook signature and
// serves the CLI launch by writing frames into the preset directory. Every
// invocation is appended to launchLog.
func fallbackStub(launchLog, presetDir string, count int) string {
	return fmt.Sprintf(`#!/bin/sh
echo "$*" >> %q
cli=0
for arg in "$@"; do
  if [ "$arg" = "-game" ]; then cli=1; fi
done
if [ "$cli" -eq 0 ]; then
  echo "VIRTUCAST_HOOK_MISSING"
  exit 113
fi
dir=%q
mkdir -p "$dir"
i=0
while [ "$i" -lt %d ]; do
  printf 'frame' > "$dir/Broadcast.$(printf '%%04d' "$i").png"
  i=$((i+1))
done
exit 0
`, launchLog, presetDir, count)
}

func newCoordinator(t *testing.T, cfg *config.Config) (*pipeline.Coordinator, *runlog.Store) {
	t.Helper()

	store := testsupport.MustOpenStore(t, cfg)
	return pipeline.New(cfg, logging.NewNop(), pipeline.WithStore(store)), store
}

func countFrames(t *testing.T, dir, ext string) int {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	count := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), "."+ext) {
			count++
		}
	}
	return count
}

func TestRunHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript(hookFrameStub(240)))
	coord, store := newCoordinator(t, cfg)

	dir := t.TempDir()
	manifest := testsupport.WriteBroadcastScript(t, dir, 3, 5)
	timelineOut := filepath.Join(dir, "timeline.json")

	report := coord.Run(context.Background(), manifest, pipeline.Overrides{TimelineOut: timelineOut})
	if report.Err != nil {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.State != pipeline.StateDone {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateDone)
	}
	if report.RunID == "" {
		t.Fatal("expected a run ID")
	}
	if report.Outcome.StrategyUsed != renderspec.StrategyPrimaryHook {
		t.Fatalf("strategy = %q, want %q", report.Outcome.StrategyUsed, renderspec.StrategyPrimaryHook)
	}
	if report.Outcome.FellBack {
		t.Fatal("hook render should not report a fallback")
	}
	if report.Spec.ExpectedFrames != 240 {
		t.Fatalf("expected frames = %d, want 240", report.Spec.ExpectedFrames)
	}
	if !report.Artifact.Verified || report.Artifact.FrameCount != 240 {
		t.Fatalf("artifact = %+v, want 240 verified frames", report.Artifact)
	}
	if report.Duration <= 0 {
		t.Fatalf("duration = %s, want > 0", report.Duration)
	}

	if got := countFrames(t, cfg.Output.Directory, "png"); got != 240 {
		t.Fatalf("output dir holds %d frames, want 240", got)
	}

	tl, err := timeline.ReadFile(timelineOut)
	if err != nil {
		t.Fatalf("read written timeline: %v", err)
	}
	if len(tl.Cues) != 2 || tl.TotalSeconds != 8 {
		t.Fatalf("written timeline = %d cues over %gs, want 2 over 8s", len(tl.Cues), tl.TotalSeconds)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if entry == nil {
		t.Fatal("run missing from ledger")
	}
	if entry.Status != runlog.StatusDone {
		t.Fatalf("ledger status = %q, want %q", entry.Status, runlog.StatusDone)
	}
	if entry.Title != "Evening Broadcast" {
		t.Fatalf("ledger title = %q", entry.Title)
	}
	if entry.RequestedStrategy != config.RenderModeHook {
		t.Fatalf("ledger requested strategy = %q, want %q", entry.RequestedStrategy, config.RenderModeHook)
	}
	if entry.UsedStrategy != string(renderspec.StrategyPrimaryHook) {
		t.Fatalf("ledger used strategy = %q", entry.UsedStrategy)
	}
	if entry.FrameCount != 240 || !entry.Verified {
		t.Fatalf("ledger frames = %d verified = %t, want 240 verified", entry.FrameCount, entry.Verified)
	}
	if entry.FinishedAt == nil {
		t.Fatal("ledger row never finished")
	}
}

func TestRunFallsBackWhenHookMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMRQPreset())
	launchLog := filepath.Join(t.TempDir(), "launches.log")
	testsupport.WriteExecutable(t, cfg.UE5.EditorPath, fallbackStub(launchLog, cfg.UE5.PresetOutputDir, 240))
	coord, store := newCoordinator(t, cfg)

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{})
	if report.Err != nil {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.State != pipeline.StateDone {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateDone)
	}
	if report.Outcome.StrategyUsed != renderspec.StrategyCliFallback || !report.Outcome.FellBack {
		t.Fatalf("outcome = %+v, want a cli fallback", report.Outcome)
	}
	if report.Outcome.VerifyDir != cfg.UE5.PresetOutputDir {
		t.Fatalf("verify dir = %q, want preset dir %q", report.Outcome.VerifyDir, cfg.UE5.PresetOutputDir)
	}
	if got := countFrames(t, cfg.UE5.PresetOutputDir, "png"); got != 240 {
		t.Fatalf("preset dir holds %d frames, want 240", got)
	}

	raw, err := os.ReadFile(launchLog)
	if err != nil {
		t.Fatalf("read launch log: %v", err)
	}
	launches := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(launches) != 2 {
		t.Fatalf("editor launched %d times, want 2:\n%s", len(launches), raw)
	}
	if !strings.Contains(launches[0], "-VirtuCastAutoRender=1") {
		t.Fatalf("first launch is not the hook shape: %s", launches[0])
	}
	if !strings.Contains(launches[1], "-game") {
		t.Fatalf("second launch is not the cli shape: %s", launches[1])
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if !entry.FellBack || entry.UsedStrategy != string(renderspec.StrategyCliFallback) {
		t.Fatalf("ledger fell_back = %t used = %q, want cli fallback", entry.FellBack, entry.UsedStrategy)
	}
}

func TestRunAbortsWhenHookMissingAndNoPreset(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript("#!/bin/sh\nexit 113\n"))
	coord, store := newCoordinator(t, cfg)

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 2)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{})
	if report.State != pipeline.StateAborted {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateAborted)
	}
	if !errors.Is(report.Err, services.ErrFallbackExhausted) {
		t.Fatalf("err = %v, want fallback exhaustion", report.Err)
	}
	if code := services.ExitCode(report.Err); code != 15 {
		t.Fatalf("exit code = %d, want 15", code)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if entry.Status != runlog.StatusAborted {
		t.Fatalf("ledger status = %q, want %q", entry.Status, runlog.StatusAborted)
	}
	if entry.ErrorKind != "fallback_exhausted" {
		t.Fatalf("ledger error kind = %q", entry.ErrorKind)
	}
	if entry.EngineExitCode == nil || *entry.EngineExitCode != 113 {
		t.Fatalf("ledger engine exit = %v, want 113", entry.EngineExitCode)
	}
}

func TestRunModeOverrideUsesCliDirectly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMRQPreset())
	launchLog := filepath.Join(t.TempDir(), "launches.log")
	testsupport.WriteExecutable(t, cfg.UE5.EditorPath, fallbackStub(launchLog, cfg.UE5.PresetOutputDir, 240))
	coord, store := newCoordinator(t, cfg)

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{Mode: config.RenderModeCLI})
	if report.Err != nil {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Outcome.StrategyUsed != renderspec.StrategyCliFallback || report.Outcome.FellBack {
		t.Fatalf("outcome = %+v, want a direct cli render", report.Outcome)
	}

	raw, err := os.ReadFile(launchLog)
	if err != nil {
		t.Fatalf("read launch log: %v", err)
	}
	launches := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(launches) != 1 {
		t.Fatalf("editor launched %d times, want 1:\n%s", len(launches), raw)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if entry.RequestedStrategy != config.RenderModeCLI {
		t.Fatalf("ledger requested strategy = %q, want %q", entry.RequestedStrategy, config.RenderModeCLI)
	}
}

func TestRunRefusesConcurrentRenders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sentinel := filepath.Join(t.TempDir(), "launched")
	stub := fmt.Sprintf("#!/bin/sh\ndate > %q\n", sentinel) + strings.TrimPrefix(hookFrameStub(240), "#!/bin/sh\n")
	testsupport.WriteExecutable(t, cfg.UE5.EditorPath, stub)
	coord, _ := newCoordinator(t, cfg)

	held, err := joblock.Acquire(cfg.Output.Directory)
	if err != nil {
		t.Fatalf("pre-acquire lock: %v", err)
	}

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{})
	if report.State != pipeline.StateAborted {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateAborted)
	}
	if !errors.Is(report.Err, services.ErrConcurrentJob) {
		t.Fatalf("err = %v, want a concurrent job refusal", report.Err)
	}
	if _, err := os.Stat(sentinel); !os.IsNotExist(err) {
		t.Fatal("editor launched despite a held lock")
	}

	if err := held.Release(); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	report = coord.Run(context.Background(), manifest, pipeline.Overrides{})
	if report.Err != nil {
		t.Fatalf("Run after release failed: %v", report.Err)
	}
	if _, err := os.Stat(sentinel); err != nil {
		t.Fatalf("editor never launched after release: %v", err)
	}
}

func TestRunAbortsOnIncompleteRender(t *testing.T) {
	// 8s at 30fps expects 240 frames; 5% tolerance floors acceptance at 228.
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript(hookFrameStub(100)))
	coord, store := newCoordinator(t, cfg)

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{})
	if report.State != pipeline.StateAborted {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateAborted)
	}
	if !errors.Is(report.Err, services.ErrIncompleteRender) {
		t.Fatalf("err = %v, want an incomplete render", report.Err)
	}
	if code := services.ExitCode(report.Err); code != 18 {
		t.Fatalf("exit code = %d, want 18", code)
	}
	if report.Artifact.Verified || report.Artifact.FrameCount != 100 {
		t.Fatalf("artifact = %+v, want 100 unverified frames", report.Artifact)
	}
	if got := countFrames(t, cfg.Output.Directory, "png"); got != 100 {
		t.Fatalf("partial output holds %d frames, want 100 preserved", got)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if entry.ErrorKind != "incomplete_render" {
		t.Fatalf("ledger error kind = %q", entry.ErrorKind)
	}
	if entry.FrameCount != 100 || entry.Verified {
		t.Fatalf("ledger frames = %d verified = %t, want 100 unverified", entry.FrameCount, entry.Verified)
	}
}

func TestRunReleasesLockOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript("#!/bin/sh\nsleep 30\n"))
	coord := pipeline.New(cfg, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(200*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(ctx, manifest, pipeline.Overrides{})
	if report.State != pipeline.StateAborted {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateAborted)
	}
	if !errors.Is(report.Err, context.Canceled) {
		t.Fatalf("err = %v, want cancellation", report.Err)
	}

	lock, err := joblock.Acquire(cfg.Output.Directory)
	if err != nil {
		t.Fatalf("lock still held after cancel: %v", err)
	}
	_ = lock.Release()
}

func TestRunTimelineRendersWithoutScript(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript(hookFrameStub(240)))
	coord, store := newCoordinator(t, cfg)

	dir := t.TempDir()
	manifest := testsupport.WriteBroadcastScript(t, dir, 3, 5)
	s, err := script.Load(manifest)
	if err != nil {
		t.Fatalf("load script: %v", err)
	}
	tl, err := timeline.Build(s, cfg)
	if err != nil {
		t.Fatalf("build timeline: %v", err)
	}
	timelinePath := filepath.Join(dir, "timeline.json")
	if err := tl.WriteFile(timelinePath); err != nil {
		t.Fatalf("write timeline: %v", err)
	}

	report := coord.RunTimeline(context.Background(), timelinePath, pipeline.Overrides{})
	if report.Err != nil {
		t.Fatalf("RunTimeline failed: %v", report.Err)
	}
	if report.State != pipeline.StateDone {
		t.Fatalf("state = %q, want %q", report.State, pipeline.StateDone)
	}
	if report.ScriptPath != "" || report.TimelinePath != timelinePath {
		t.Fatalf("paths = (%q, %q), want timeline-only provenance", report.ScriptPath, report.TimelinePath)
	}
	if report.Artifact.FrameCount != 240 {
		t.Fatalf("frames = %d, want 240", report.Artifact.FrameCount)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if entry.TimelinePath != timelinePath || entry.ScriptPath != "" {
		t.Fatalf("ledger paths = (%q, %q)", entry.ScriptPath, entry.TimelinePath)
	}
}

func TestRunRecordsOutputOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEditorScript(hookFrameStub(240)))
	coord, store := newCoordinator(t, cfg)

	override := filepath.Join(t.TempDir(), "custom-out")
	manifest := testsupport.WriteBroadcastScript(t, t.TempDir(), 3, 5)
	report := coord.Run(context.Background(), manifest, pipeline.Overrides{OutputDir: override})
	if report.Err != nil {
		t.Fatalf("Run failed: %v", report.Err)
	}
	if report.Spec.OutputDir != override {
		t.Fatalf("spec output dir = %q, want %q", report.Spec.OutputDir, override)
	}
	if got := countFrames(t, override, "png"); got != 240 {
		t.Fatalf("override dir holds %d frames, want 240", got)
	}

	entry, err := store.GetByID(context.Background(), report.RunID)
	if err != nil || entry == nil {
		t.Fatalf("read ledger: entry=%v err=%v", entry, err)
	}
	if entry.OutputDir != override {
		t.Fatalf("ledger output dir = %q, want %q", entry.OutputDir, override)
	}
}
