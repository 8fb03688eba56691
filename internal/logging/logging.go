// Package logging sets up slog handlers and records tray actions.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler returns a JSON handler for format "json" and a tint text
// handler otherwise.
func NewHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	// When running under systemd, the journal adds its own timestamps.
	underSystemd := os.Getenv("INVOCATION_ID") != ""
	opts := &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    underSystemd,
	}
	if underSystemd {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return tint.NewHandler(w, opts)
}

// Logger wraps slog for structured action records.
type Logger struct {
	*slog.Logger
	item string
}

// New creates an action logger on top of base. item names the tray item in
// every record.
func New(base *slog.Logger, item string) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{Logger: base, item: item}
}

// LogAction logs a tray action with its result.
func (l *Logger) LogAction(ctx context.Context, action string, args map[string]any, result string, err error) {
	attrs := []slog.Attr{
		slog.String("item", l.item),
		slog.String("action", action),
		slog.String("result", result),
	}
	for k, v := range args {
		attrs = append(attrs, slog.Any(k, v))
	}

	level := slog.LevelInfo
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelError
	}

	l.LogAttrs(ctx, level, "tray_action", attrs...)
}

// LogActivate logs an Activate call.
func (l *Logger) LogActivate(ctx context.Context, activationID, command, status, result string, err error) {
	l.LogAction(ctx, "Activate", map[string]any{
		"activation_id": activationID,
		"command":       command,
		"status":        status,
	}, result, err)
}

// LogSecondaryActivate logs a SecondaryActivate call.
func (l *Logger) LogSecondaryActivate(ctx context.Context, activationID string) {
	l.LogAction(ctx, "SecondaryActivate", map[string]any{"activation_id": activationID}, "exit_requested", nil)
}
