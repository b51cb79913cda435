// Package proc supervises external engine processes.
//
// Run launches a child in its own process group, streams its output line by
// line, and enforces a wall-clock budget. A non-zero exit is an ordinary
// Result, not an error; only launch failures and caller cancellation surface
// through the error return. When the budget elapses or the caller cancels,
// the whole process group is killed so no engine helper outlives the call.
package proc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"virtucast/internal/services"
)

// tailLimit bounds the output lines retained per stream for diagnostics.
const tailLimit = 200

// Command describes one supervised child process.
type Command struct {
	Binary string
	Args   []string
	Dir    string
	// Env entries are appended to the inherited environment.
	Env []string
	// Timeout is the wall-clock budget. Zero means no budget.
	Timeout time.Duration
	// OnLine observes every output line as it arrives. It may be invoked
	// from two goroutines, one per stream.
	OnLine func(line string)
}

// Result reports how a supervised process ended. ExitCode is nil when the
// process never exited on its own, which happens on timeout or cancellation.
type Result struct {
	ExitCode   *int
	TimedOut   bool
	Duration   time.Duration
	StdoutTail []string
	StderrTail []string
}

// Exited reports whether the process ran to completion with the given code.
func (r Result) Exited(code int) bool {
	return r.ExitCode != nil && *r.ExitCode == code
}

// Excerpt returns the last n output lines for error messages, preferring
// stderr when it has content.
func (r Result) Excerpt(n int) string {
	lines := r.StderrTail
	if len(lines) == 0 {
		lines = r.StdoutTail
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// Runner abstracts process execution so dispatch policy can be tested
// without launching a real engine.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Supervisor is the production Runner.
type Supervisor struct{}

// Run implements Runner.
func (Supervisor) Run(ctx context.Context, cmd Command) (Result, error) {
	return Run(ctx, cmd)
}

// Run executes command and blocks until the child exits, the timeout
// elapses, or ctx is cancelled.
func Run(ctx context.Context, command Command) (Result, error) {
	if strings.TrimSpace(command.Binary) == "" {
		return Result{}, services.Wrap(services.ErrProcessLaunch, "supervisor", "launch", "no binary configured", nil)
	}

	runCtx := ctx
	if command.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	child := exec.CommandContext(runCtx, command.Binary, command.Args...) //nolint:gosec
	child.Dir = command.Dir
	if len(command.Env) > 0 {
		child.Env = append(os.Environ(), command.Env...)
	}
	// The editor forks helpers (shader compile workers, crash reporter).
	// A dedicated process group lets one kill reach all of them.
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	child.Cancel = func() error {
		if child.Process == nil {
			return nil
		}
		return unix.Kill(-child.Process.Pid, unix.SIGKILL)
	}

	stdout, err := child.StdoutPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrProcessLaunch, "supervisor", "stdout pipe", command.Binary, err)
	}
	stderr, err := child.StderrPipe()
	if err != nil {
		return Result{}, services.Wrap(services.ErrProcessLaunch, "supervisor", "stderr pipe", command.Binary, err)
	}

	started := time.Now()
	if err := child.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrProcessLaunch, "supervisor", "launch", command.Binary, err)
	}

	var wg sync.WaitGroup
	outTail := &tailBuffer{limit: tailLimit}
	errTail := &tailBuffer{limit: tailLimit}

	scan := func(r io.Reader, tail *tailBuffer) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			tail.add(line)
			if command.OnLine != nil {
				command.OnLine(line)
			}
		}
	}

	wg.Add(2)
	go scan(stdout, outTail)
	go scan(stderr, errTail)
	wg.Wait()

	waitErr := child.Wait()

	// Sweep stragglers the child may have left in its group. ESRCH here
	// just means the group is already gone.
	if child.Process != nil {
		_ = unix.Kill(-child.Process.Pid, unix.SIGKILL)
	}

	result := Result{
		Duration:   time.Since(started),
		StdoutTail: outTail.lines(),
		StderrTail: errTail.lines(),
	}

	// A clean exit stands even if the budget expired in the same instant.
	if waitErr == nil {
		code := 0
		result.ExitCode = &code
		return result, nil
	}
	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if runCtx.Err() != nil {
		result.TimedOut = true
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		result.ExitCode = &code
		return result, nil
	}
	return result, services.Wrap(services.ErrProcessLaunch, "supervisor", "wait", command.Binary, waitErr)
}

// tailBuffer keeps the last limit lines appended to it. Each stream owns its
// buffer, so no locking is needed.
type tailBuffer struct {
	limit int
	items []string
}

func (t *tailBuffer) add(line string) {
	t.items = append(t.items, line)
	if len(t.items) > t.limit {
		t.items = t.items[1:]
	}
}

func (t *tailBuffer) lines() []string {
	return t.items
}
