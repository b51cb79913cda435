// Package render owns strategy selection and the one-shot fallback policy.
//
// Exactly one strategy runs per dispatch. The only path to a second engine
// launch is the missing-hook signature from the primary strategy while an
// MRQ preset is configured; every other failure surfaces immediately, and a
// failed fallback never retries.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"virtucast/internal/logging"
	"virtucast/internal/proc"
	"virtucast/internal/renderspec"
	"virtucast/internal/services"
	"virtucast/internal/services/unreal"
)

// Engine abstracts the editor client so policy tests never launch processes.
type Engine interface {
	RenderHook(ctx context.Context, spec renderspec.Spec) (proc.Result, error)
	RenderCLI(ctx context.Context, spec renderspec.Spec) (proc.Result, error)
}

// Outcome reports which strategy produced output and where to verify it.
type Outcome struct {
	StrategyUsed renderspec.Strategy
	FellBack     bool
	Result       proc.Result
	// VerifyDir is the directory the verifier should scan: the job output
	// directory for hook renders, the preset output directory for CLI.
	VerifyDir string
}

// Dispatcher runs render jobs through an Engine.
type Dispatcher struct {
	engine Engine
	logger *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(engine Engine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		engine: engine,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Dispatch executes the strategy selected in spec and returns where the
// output landed. The returned error carries the taxonomy marker for the
// failure class; a nil error means the engine exited cleanly.
func (d *Dispatcher) Dispatch(ctx context.Context, spec renderspec.Spec) (Outcome, error) {
	switch spec.Strategy {
	case renderspec.StrategyPrimaryHook:
		return d.runHook(ctx, spec)
	case renderspec.StrategyCliFallback:
		return d.runCLI(ctx, spec, false)
	default:
		return Outcome{}, services.Wrap(services.ErrConfig, "dispatch", "strategy",
			fmt.Sprintf("unknown strategy %q", spec.Strategy), nil)
	}
}

func (d *Dispatcher) runHook(ctx context.Context, spec renderspec.Spec) (Outcome, error) {
	hookCtx := services.WithStrategy(ctx, string(renderspec.StrategyPrimaryHook))
	logger := logging.WithContext(hookCtx, d.logger)

	result, err := d.engine.RenderHook(hookCtx, spec)
	outcome := Outcome{
		StrategyUsed: renderspec.StrategyPrimaryHook,
		Result:       result,
		VerifyDir:    spec.OutputDir,
	}
	if err != nil {
		return outcome, err
	}
	if result.TimedOut {
		return outcome, services.Wrap(services.ErrProcessTimeout, "dispatch", "hook render",
			fmt.Sprintf("engine exceeded the %s budget", spec.Timeout), nil)
	}
	if result.Exited(0) {
		return outcome, nil
	}

	if unreal.HookMissing(result) {
		if !spec.FallbackArmed() {
			return outcome, services.Wrap(services.ErrFallbackExhausted, "dispatch", "hook render",
				"render hook missing and no MRQ preset configured", nil)
		}
		logger.Warn("render hook missing, retrying once with the MRQ preset")
		fallback, fbErr := d.runCLI(ctx, spec, true)
		if fbErr == nil {
			return fallback, nil
		}
		if errors.Is(fbErr, context.Canceled) || errors.Is(fbErr, context.DeadlineExceeded) {
			return fallback, fbErr
		}
		return fallback, services.Wrap(services.ErrFallbackExhausted, "dispatch", "cli fallback",
			"fallback attempt failed", fbErr)
	}
	return outcome, renderFailed(result, "hook render")
}

func (d *Dispatcher) runCLI(ctx context.Context, spec renderspec.Spec, fellBack bool) (Outcome, error) {
	cliCtx := services.WithStrategy(ctx, string(renderspec.StrategyCliFallback))

	result, err := d.engine.RenderCLI(cliCtx, spec)
	outcome := Outcome{
		StrategyUsed: renderspec.StrategyCliFallback,
		FellBack:     fellBack,
		Result:       result,
		VerifyDir:    spec.PresetOutputDir,
	}
	if err != nil {
		return outcome, err
	}
	if result.TimedOut {
		return outcome, services.Wrap(services.ErrProcessTimeout, "dispatch", "cli render",
			fmt.Sprintf("engine exceeded the %s budget", spec.Timeout), nil)
	}
	if result.Exited(0) {
		return outcome, nil
	}
	// Exit 113 from the CLI strategy is an ordinary failure; the
	// missing-hook signature only means something on the hook path.
	return outcome, renderFailed(result, "cli render")
}

func renderFailed(result proc.Result, operation string) error {
	detail := "engine exited"
	if result.ExitCode != nil {
		detail = fmt.Sprintf("engine exited with code %d", *result.ExitCode)
	}
	if excerpt := result.Excerpt(3); excerpt != "" {
		detail += ": " + excerpt
	}
	return services.Wrap(services.ErrRenderFailed, "dispatch", operation, detail, nil)
}
