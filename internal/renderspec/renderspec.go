// Package renderspec snapshots everything one render job needs.
//
// A Spec is assembled once per run from the configuration, the built
// timeline, and any per-invocation overrides, then passed by value through
// dispatch. Nothing downstream reaches back into the configuration, so a
// reload mid-run cannot change a job already in flight.
package renderspec

import (
	"fmt"
	"strings"
	"time"

	"virtucast/internal/assetref"
	"virtucast/internal/config"
	"virtucast/internal/services"
	"virtucast/internal/timeline"
)

// Strategy names the engine launch shape used for a render.
type Strategy string

const (
	// StrategyPrimaryHook launches the editor and lets the in-project
	// bootstrap script drive the render.
	StrategyPrimaryHook Strategy = "primary_hook"
	// StrategyCliFallback launches the engine headless against a Movie
	// Render Queue preset.
	StrategyCliFallback Strategy = "cli_fallback"
)

// Spec is the immutable description of one render job.
type Spec struct {
	Strategy Strategy

	EditorPath   string
	ProjectPath  string
	RenderScript string

	Map       assetref.Ref
	Sequence  assetref.Ref
	MRQConfig assetref.Ref

	// OutputDir receives hook renders; PresetOutputDir is where the MRQ
	// preset writes, used by CLI renders and the fallback.
	OutputDir       string
	PresetOutputDir string

	Format    string
	Width     int
	Height    int
	FrameRate int

	Title          string
	TotalSeconds   float64
	ExpectedFrames int

	Timeout   time.Duration
	Heartbeat time.Duration
}

// Overrides carries per-invocation adjustments from the command line.
type Overrides struct {
	// OutputDir replaces the configured output root when non-empty.
	OutputDir string
	// Mode replaces ue5.render_mode when non-empty ("hook" or "cli").
	Mode string
}

// New builds a job spec. Strategy prerequisites are re-checked here because a
// mode override can select a launch shape the configuration was never
// validated for.
func New(cfg *config.Config, tl *timeline.Timeline, overrides Overrides) (Spec, error) {
	if cfg == nil {
		return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new", "no configuration", nil)
	}
	if tl == nil || len(tl.Cues) == 0 {
		return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new", "no timeline", nil)
	}

	mode := strings.TrimSpace(overrides.Mode)
	if mode == "" {
		mode = cfg.UE5.RenderMode
	}
	var strategy Strategy
	switch mode {
	case config.RenderModeHook:
		strategy = StrategyPrimaryHook
	case config.RenderModeCLI:
		strategy = StrategyCliFallback
	default:
		return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "mode",
			fmt.Sprintf("must be %q or %q, got %q", config.RenderModeHook, config.RenderModeCLI, mode), nil)
	}

	outputDir := cfg.Output.Directory
	if trimmed := strings.TrimSpace(overrides.OutputDir); trimmed != "" {
		expanded, err := config.ExpandPath(trimmed)
		if err != nil {
			return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "output dir", trimmed, err)
		}
		outputDir = expanded
	}

	spec := Spec{
		Strategy:        strategy,
		EditorPath:      cfg.UE5.EditorPath,
		ProjectPath:     cfg.UE5.ProjectPath,
		RenderScript:    cfg.UE5.RenderScript,
		Map:             cfg.MapRef(),
		Sequence:        cfg.SequenceRef(),
		MRQConfig:       cfg.MRQRef(),
		OutputDir:       outputDir,
		PresetOutputDir: cfg.UE5.PresetOutputDir,
		Format:          cfg.Output.Format,
		Width:           cfg.Camera.Resolution.Width,
		Height:          cfg.Camera.Resolution.Height,
		FrameRate:       cfg.Camera.FPS,
		Title:           tl.Title,
		TotalSeconds:    tl.TotalSeconds,
		ExpectedFrames:  tl.ExpectedFrames(),
		Timeout:         cfg.RenderTimeout(),
		Heartbeat:       cfg.HeartbeatInterval(),
	}

	if spec.Map.IsZero() {
		return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new", "ue5.map_asset is not set", nil)
	}
	if spec.Sequence.IsZero() {
		return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new", "ue5.sequence_asset is not set", nil)
	}
	if strategy == StrategyCliFallback {
		if spec.MRQConfig.IsZero() {
			return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new",
				"cli mode requires ue5.mrq_config_asset", nil)
		}
		if spec.PresetOutputDir == "" {
			return Spec{}, services.Wrap(services.ErrConfig, "renderspec", "new",
				"cli mode requires ue5.preset_output_dir", nil)
		}
	}
	return spec, nil
}

// FallbackArmed reports whether a hook render can fall back to the CLI
// strategy: the preset and its output directory must both be configured.
func (s Spec) FallbackArmed() bool {
	return !s.MRQConfig.IsZero() && s.PresetOutputDir != ""
}

// Resolution formats the render size for engine arguments.
func (s Spec) Resolution() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}
