package logging

import (
	"context"
	"log/slog"

	"virtucast/internal/services"
)

// Shared structured field names so every package spells the same key the
// same way.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldStage     = "stage"
	FieldStrategy  = "strategy"
)

// WithContext returns a logger carrying the run identity stamped on ctx.
// Records logged through it show which run, stage, and strategy produced
// them without each call site repeating the attrs.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}

func contextAttrs(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	var attrs []Attr
	if id, ok := services.RunIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStage, stage))
	}
	if strategy, ok := services.StrategyFromContext(ctx); ok {
		attrs = append(attrs, String(FieldStrategy, strategy))
	}
	return attrs
}
