// Package unreal drives the Unreal Editor binary for render jobs.
//
// Two launch shapes exist. The primary one starts the editor against the
// project and hands control to the in-project bootstrap, which reads the
// -VirtuCast* arguments and drives Movie Render Queue itself. The fallback
// starts the engine headless in -game mode against an MRQ preset asset; in
// that shape the preset owns the output location and image format, so only
// resolution is passed on the command line.
package unreal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"virtucast/internal/logging"
	"virtucast/internal/proc"
	"virtucast/internal/renderspec"
	"virtucast/internal/services"
)

const (
	// HookMissingExitCode is returned by the in-project bootstrap when
	// auto render was requested but no render hook script is present.
	HookMissingExitCode = 113
	// HookMissingToken is printed by the bootstrap alongside the exit
	// code. Either signal marks the capability gap that arms the
	// fallback strategy.
	HookMissingToken = "VIRTUCAST_HOOK_MISSING"
)

// Client launches engine processes.
type Client struct {
	runner proc.Runner
	logger *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithRunner overrides the process runner, letting tests observe launches
// without spawning an engine.
func WithRunner(runner proc.Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// New constructs a Client.
func New(logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &Client{
		runner: proc.Supervisor{},
		logger: logging.NewComponentLogger(logger, "unreal"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// RenderHook launches the editor with the auto-render arguments and waits
// for it to finish. The output directory is created first so the bootstrap
// never races directory creation inside the engine.
func (c *Client) RenderHook(ctx context.Context, spec renderspec.Spec) (proc.Result, error) {
	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return proc.Result{}, services.Wrap(services.ErrProcessLaunch, "unreal", "hook", spec.OutputDir, err)
	}
	return c.launch(ctx, spec, "hook render", HookArgs(spec))
}

// RenderCLI launches the engine headless against the MRQ preset and waits
// for it to finish.
func (c *Client) RenderCLI(ctx context.Context, spec renderspec.Spec) (proc.Result, error) {
	if err := os.MkdirAll(spec.PresetOutputDir, 0o755); err != nil {
		return proc.Result{}, services.Wrap(services.ErrProcessLaunch, "unreal", "cli", spec.PresetOutputDir, err)
	}
	return c.launch(ctx, spec, "cli render", CLIArgs(spec))
}

func (c *Client) launch(ctx context.Context, spec renderspec.Spec, label string, args []string) (proc.Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("launching engine",
		logging.String("operation", label),
		logging.String("editor", spec.EditorPath),
		logging.Duration("timeout", spec.Timeout))

	var lastOutput atomic.Int64
	lastOutput.Store(time.Now().UnixNano())

	command := proc.Command{
		Binary:  spec.EditorPath,
		Args:    args,
		Timeout: spec.Timeout,
		OnLine: func(string) {
			lastOutput.Store(time.Now().UnixNano())
		},
	}

	done := make(chan struct{})
	defer close(done)
	if spec.Heartbeat > 0 {
		go heartbeat(done, logger, spec.Heartbeat, &lastOutput)
	}

	result, err := c.runner.Run(ctx, command)
	if err != nil {
		logger.Error("engine launch failed", logging.String("operation", label), logging.Error(err))
		return result, err
	}
	attrs := []logging.Attr{
		logging.String("operation", label),
		logging.Duration("elapsed", result.Duration),
		logging.Bool("timed_out", result.TimedOut),
	}
	if result.ExitCode != nil {
		attrs = append(attrs, logging.Int("exit_code", *result.ExitCode))
	}
	logger.Info("engine exited", logging.Args(attrs...)...)
	return result, nil
}

// heartbeat logs a liveness line whenever the engine has produced no output
// for a full interval. Long shader compiles routinely go quiet for minutes;
// the line keeps operators from assuming a hang.
func heartbeat(done <-chan struct{}, logger *slog.Logger, interval time.Duration, lastOutput *atomic.Int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			silence := time.Since(time.Unix(0, lastOutput.Load()))
			if silence >= interval {
				logger.Info("engine still running", logging.Duration("silent_for", silence.Round(time.Second)))
			}
		}
	}
}

// HookArgs assembles the editor argument list for the primary hook launch.
func HookArgs(spec renderspec.Spec) []string {
	args := []string{
		spec.ProjectPath,
		"-VirtuCastAutoRender=1",
		"-VirtuCastMap=" + spec.Map.String(),
		"-VirtuCastSequence=" + spec.Sequence.String(),
		"-VirtuCastOut=" + spec.OutputDir,
		"-VirtuCastRes=" + spec.Resolution(),
		fmt.Sprintf("-VirtuCastFps=%d", spec.FrameRate),
		"-VirtuCastFormat=" + spec.Format,
	}
	if spec.RenderScript != "" {
		args = append(args, "-VirtuCastScript="+spec.RenderScript)
	}
	args = append(args, "-unattended", "-nop4", "-nosplash", "-NoSound", "-log")
	return args
}

// CLIArgs assembles the headless MRQ argument list. The map travels as a
// URL-style positional package path for -game startup; sequence and preset
// travel as object paths.
func CLIArgs(spec renderspec.Spec) []string {
	return []string{
		spec.ProjectPath,
		spec.Map.PackagePath(),
		"-game",
		"-LevelSequence=" + spec.Sequence.ObjectPath(),
		"-MoviePipelineConfig=" + spec.MRQConfig.ObjectPath(),
		"-windowed",
		fmt.Sprintf("-ResX=%d", spec.Width),
		fmt.Sprintf("-ResY=%d", spec.Height),
		"-unattended",
		"-nop4",
		"-nosplash",
		"-NoSound",
		"-log",
	}
}

// HookMissing reports whether the engine signalled the missing-hook
// condition, by exit code or by token in either output tail.
func HookMissing(result proc.Result) bool {
	if result.Exited(HookMissingExitCode) {
		return true
	}
	return tailContains(result.StdoutTail, HookMissingToken) ||
		tailContains(result.StderrTail, HookMissingToken)
}

func tailContains(lines []string, token string) bool {
	for _, line := range lines {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}
