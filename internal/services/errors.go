package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfig             = errors.New("config error")
	ErrAssetResolution    = errors.New("asset resolution error")
	ErrTimeline           = errors.New("timeline error")
	ErrProcessLaunch      = errors.New("process launch error")
	ErrProcessTimeout     = errors.New("process timeout")
	ErrFallbackExhausted  = errors.New("fallback exhausted")
	ErrRenderVerification = errors.New("render verification error")
	ErrConcurrentJob      = errors.New("concurrent job")
	ErrIncompleteRender   = errors.New("incomplete render")
	ErrRenderFailed       = errors.New("render failed")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrRenderFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the stable taxonomy name for err, or "" when err carries no
// marker. The names are persisted in the run ledger, so they never change.
// ErrFallbackExhausted is matched first because it wraps the error from the
// failed fallback attempt.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFallbackExhausted):
		return "fallback_exhausted"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrAssetResolution):
		return "asset_resolution"
	case errors.Is(err, ErrTimeline):
		return "timeline"
	case errors.Is(err, ErrProcessLaunch):
		return "process_launch"
	case errors.Is(err, ErrProcessTimeout):
		return "process_timeout"
	case errors.Is(err, ErrRenderVerification):
		return "render_verification"
	case errors.Is(err, ErrConcurrentJob):
		return "concurrent_job"
	case errors.Is(err, ErrIncompleteRender):
		return "incomplete_render"
	case errors.Is(err, ErrRenderFailed):
		return "render_failed"
	default:
		return "internal"
	}
}

// ExitCode maps err to the process exit code the CLI should terminate with.
// Each taxonomy class gets its own code so calling tooling can branch without
// parsing error text.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrFallbackExhausted):
		return 15
	case errors.Is(err, ErrConfig):
		return 10
	case errors.Is(err, ErrAssetResolution):
		return 11
	case errors.Is(err, ErrTimeline):
		return 12
	case errors.Is(err, ErrProcessLaunch):
		return 13
	case errors.Is(err, ErrProcessTimeout):
		return 14
	case errors.Is(err, ErrRenderVerification):
		return 16
	case errors.Is(err, ErrConcurrentJob):
		return 17
	case errors.Is(err, ErrIncompleteRender):
		return 18
	case errors.Is(err, ErrRenderFailed):
		return 19
	default:
		return 1
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
