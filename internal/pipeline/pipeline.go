// Package pipeline sequences a render run end to end.
//
// One run moves through Configured, TimelineBuilt, Dispatched, Verified,
// Done; Aborted is terminal from any stage. The coordinator owns the run
// identity, the output locks, and the ledger row; the stages themselves live
// in their own packages and know nothing about each other.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"virtucast/internal/config"
	"virtucast/internal/joblock"
	"virtucast/internal/logging"
	"virtucast/internal/media/audioprobe"
	"virtucast/internal/render"
	"virtucast/internal/renderspec"
	"virtucast/internal/runlog"
	"virtucast/internal/script"
	"virtucast/internal/services"
	"virtucast/internal/services/unreal"
	"virtucast/internal/timeline"
	"virtucast/internal/verify"
)

// State is a pipeline lifecycle stage.
type State string

const (
	StateConfigured    State = "configured"
	StateTimelineBuilt State = "timeline_built"
	StateDispatched    State = "dispatched"
	StateVerified      State = "verified"
	StateDone          State = "done"
	StateAborted       State = "aborted"
)

// Overrides carries per-invocation adjustments.
type Overrides struct {
	// OutputDir replaces the configured output root.
	OutputDir string
	// Mode replaces ue5.render_mode ("hook" or "cli").
	Mode string
	// TimelineOut writes the built timeline to this path before rendering.
	TimelineOut string
}

// Report is the result of one run, terminal in either State or Err.
type Report struct {
	RunID        string
	State        State
	ScriptPath   string
	TimelinePath string
	Timeline     *timeline.Timeline
	Spec         renderspec.Spec
	Outcome      render.Outcome
	Artifact     verify.Artifact
	LogPath      string
	StartedAt    time.Time
	Duration     time.Duration
	Err          error
}

// Coordinator drives runs.
type Coordinator struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *runlog.Store
	dispatcher *render.Dispatcher
	logPath    string
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithStore attaches the run ledger. Without it runs are not recorded.
func WithStore(store *runlog.Store) Option {
	return func(c *Coordinator) {
		c.store = store
	}
}

// WithDispatcher replaces the engine dispatcher, used by tests.
func WithDispatcher(dispatcher *render.Dispatcher) Option {
	return func(c *Coordinator) {
		if dispatcher != nil {
			c.dispatcher = dispatcher
		}
	}
}

// WithRunLogPath records the per-run log file location in reports and the
// ledger.
func WithRunLogPath(path string) Option {
	return func(c *Coordinator) {
		c.logPath = path
	}
}

// New constructs a Coordinator.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dispatcher == nil {
		c.dispatcher = render.NewDispatcher(unreal.New(logger), logger)
	}
	return c
}

// Run executes the full pipeline for a broadcast script.
func (c *Coordinator) Run(ctx context.Context, scriptPath string, overrides Overrides) Report {
	r := c.begin(ctx, scriptPath, "", overrides)

	s, err := script.Load(scriptPath)
	if err != nil {
		return c.abort(r, err)
	}
	if err := audioprobe.FillScript(r.ctx, c.cfg.FFprobeBinary(), s); err != nil {
		return c.abort(r, err)
	}
	tl, err := timeline.Build(s, c.cfg)
	if err != nil {
		return c.abort(r, err)
	}
	c.timelineBuilt(r, tl)

	if overrides.TimelineOut != "" {
		if err := tl.WriteFile(overrides.TimelineOut); err != nil {
			return c.abort(r, err)
		}
		r.logger.Info("timeline written", logging.String("path", overrides.TimelineOut))
	}
	return c.renderAndVerify(r, overrides)
}

// RunTimeline executes dispatch and verification against a previously built
// timeline file, skipping script loading and probing entirely.
func (c *Coordinator) RunTimeline(ctx context.Context, timelinePath string, overrides Overrides) Report {
	r := c.begin(ctx, "", timelinePath, overrides)

	tl, err := timeline.ReadFile(timelinePath)
	if err != nil {
		return c.abort(r, err)
	}
	c.timelineBuilt(r, tl)
	return c.renderAndVerify(r, overrides)
}

type run struct {
	ctx    context.Context
	logger *slog.Logger
	report Report
	entry  runlog.Run
	ledger bool
}

func (c *Coordinator) begin(ctx context.Context, scriptPath, timelinePath string, overrides Overrides) *run {
	id := uuid.New().String()
	ctx = services.WithRunID(ctx, id)
	started := time.Now().UTC()

	requested := strings.TrimSpace(overrides.Mode)
	if requested == "" {
		requested = c.cfg.UE5.RenderMode
	}
	outputDir := c.cfg.Output.Directory
	if trimmed := strings.TrimSpace(overrides.OutputDir); trimmed != "" {
		outputDir = trimmed
	}

	r := &run{
		ctx:    ctx,
		logger: logging.WithContext(ctx, c.logger),
		report: Report{
			RunID:        id,
			State:        StateConfigured,
			ScriptPath:   scriptPath,
			TimelinePath: timelinePath,
			LogPath:      c.logPath,
			StartedAt:    started,
		},
		entry: runlog.Run{
			ID:                id,
			ScriptPath:        scriptPath,
			TimelinePath:      timelinePath,
			OutputDir:         outputDir,
			RequestedStrategy: requested,
			Status:            runlog.StatusRunning,
			Stage:             string(StateConfigured),
			LogPath:           c.logPath,
			StartedAt:         started,
		},
	}

	if c.store != nil {
		if err := c.store.Begin(ctx, &r.entry); err != nil {
			r.logger.Warn("run ledger unavailable", logging.Error(err))
		} else {
			r.ledger = true
		}
	}

	r.logger.Info("run started",
		logging.String("script", scriptPath),
		logging.String("timeline", timelinePath),
		logging.String("requested_mode", requested))
	return r
}

func (c *Coordinator) timelineBuilt(r *run, tl *timeline.Timeline) {
	r.report.Timeline = tl
	r.entry.Title = tl.Title
	r.entry.ExpectedFrames = tl.ExpectedFrames()
	c.setState(r, StateTimelineBuilt)
	r.logger.Info("timeline built",
		logging.String("title", tl.Title),
		logging.Int("cues", len(tl.Cues)),
		logging.Float64("total_seconds", tl.TotalSeconds),
		logging.Int("expected_frames", tl.ExpectedFrames()))
}

func (c *Coordinator) renderAndVerify(r *run, overrides Overrides) Report {
	spec, err := renderspec.New(c.cfg, r.report.Timeline, renderspec.Overrides{
		OutputDir: overrides.OutputDir,
		Mode:      overrides.Mode,
	})
	if err != nil {
		return c.abort(r, err)
	}
	r.report.Spec = spec

	locks, err := acquireLocks(spec)
	if err != nil {
		return c.abort(r, err)
	}
	defer releaseLocks(locks)

	dispatchCtx := services.WithStage(r.ctx, "dispatch")
	outcome, err := c.dispatcher.Dispatch(dispatchCtx, spec)
	r.report.Outcome = outcome
	if err != nil {
		return c.abort(r, err)
	}
	c.setState(r, StateDispatched)

	artifact, err := verify.Scan(outcome.VerifyDir, verify.Expectation{
		Format:         spec.Format,
		ExpectedFrames: spec.ExpectedFrames,
		Tolerance:      c.cfg.Render.FrameTolerance,
	})
	r.report.Artifact = artifact
	if err != nil {
		return c.abort(r, err)
	}
	if !artifact.Verified {
		return c.abort(r, services.Wrap(services.ErrIncompleteRender, "verify", "scan", artifact.Reason, nil))
	}
	c.setState(r, StateVerified)
	r.logger.Info("render verified",
		logging.Int("frames", artifact.FrameCount),
		logging.Int64("bytes", artifact.Bytes),
		logging.String("dir", artifact.Dir))

	return c.complete(r)
}

func (c *Coordinator) setState(r *run, state State) {
	r.report.State = state
	r.entry.Stage = string(state)
}

func (c *Coordinator) complete(r *run) Report {
	r.report.State = StateDone
	r.entry.Stage = string(StateDone)
	c.finalize(r, runlog.StatusDone)
	r.logger.Info("run complete",
		logging.String("strategy", string(r.report.Outcome.StrategyUsed)),
		logging.Bool("fell_back", r.report.Outcome.FellBack),
		logging.Int("frames", r.report.Artifact.FrameCount),
		logging.Duration("elapsed", r.report.Duration))
	return r.report
}

func (c *Coordinator) abort(r *run, err error) Report {
	reached := r.entry.Stage
	r.report.State = StateAborted
	r.report.Err = err
	c.finalize(r, runlog.StatusAborted)
	r.logger.Error("run aborted",
		logging.String("reached", reached),
		logging.String("kind", services.Kind(err)),
		logging.Duration("elapsed", r.report.Duration),
		logging.Error(err))
	return r.report
}

// finalize stamps the duration and writes the terminal ledger row. Partial
// output is deliberately left on disk for inspection.
func (c *Coordinator) finalize(r *run, status runlog.Status) {
	now := time.Now().UTC()
	r.report.Duration = now.Sub(r.report.StartedAt)

	if !r.ledger {
		return
	}
	entry := &r.entry
	entry.Status = status
	if r.report.Spec.OutputDir != "" {
		entry.OutputDir = r.report.Spec.OutputDir
	}
	if r.report.Spec.ExpectedFrames > 0 {
		entry.ExpectedFrames = r.report.Spec.ExpectedFrames
	}
	entry.UsedStrategy = string(r.report.Outcome.StrategyUsed)
	entry.FellBack = r.report.Outcome.FellBack
	entry.FrameCount = r.report.Artifact.FrameCount
	entry.Verified = r.report.Artifact.Verified
	entry.EngineExitCode = r.report.Outcome.Result.ExitCode
	if r.report.Err != nil {
		entry.ErrorKind = services.Kind(r.report.Err)
		entry.ErrorMessage = r.report.Err.Error()
	}
	entry.FinishedAt = &now
	entry.DurationSeconds = r.report.Duration.Seconds()

	if err := c.store.Finish(r.ctx, entry); err != nil {
		r.logger.Warn("run ledger update failed", logging.Error(err))
	}
}

// lockDirs lists every directory the selected strategy may write. A hook run
// with an armed fallback locks the preset directory up front so a fallback
// never races another run mid-flight.
func lockDirs(spec renderspec.Spec) []string {
	if spec.Strategy == renderspec.StrategyCliFallback {
		return []string{spec.PresetOutputDir}
	}
	dirs := []string{spec.OutputDir}
	if spec.FallbackArmed() && spec.PresetOutputDir != spec.OutputDir {
		dirs = append(dirs, spec.PresetOutputDir)
	}
	return dirs
}

func acquireLocks(spec renderspec.Spec) ([]*joblock.Lock, error) {
	var locks []*joblock.Lock
	for _, dir := range lockDirs(spec) {
		lock, err := joblock.Acquire(dir)
		if err != nil {
			releaseLocks(locks)
			return nil, err
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

func releaseLocks(locks []*joblock.Lock) {
	for i := len(locks) - 1; i >= 0; i-- {
		_ = locks[i].Release()
	}
}
