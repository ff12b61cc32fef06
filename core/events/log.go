package events

import (
	"context"
	"log/slog"
	"sort"

	"github.com/AndreyBrytkov/cowdfunding/core/types"
)

// LogEmitter writes every event it receives to a structured logger, one
// record per event with its attributes as fields.
type LogEmitter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogEmitter returns an emitter logging at info level. A nil logger falls
// back to slog.Default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events"), level: slog.LevelInfo}
}

// Emit implements the Emitter interface.
func (e *LogEmitter) Emit(evt Event) {
	if e == nil || evt == nil {
		return
	}
	args := []any{"type", evt.EventType()}
	if payload, ok := evt.(interface{ Event() *types.Event }); ok && payload.Event() != nil {
		attrs := payload.Event().Attributes
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]any, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, slog.String(k, attrs[k]))
		}
		args = append(args, slog.Group("attributes", fields...))
	}
	e.logger.Log(context.Background(), e.level, "event", args...)
}
