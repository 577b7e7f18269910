package pagearena

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with arena-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithArena tags every record with the arena's reservation size and page size.
func (l *Logger) WithArena(reservedBytes, pageSize int) *Logger {
	return &Logger{
		Logger: l.Logger.With("reserved_bytes", reservedBytes, "page_size", pageSize),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogOpen logs a successful arena construction.
func (l *Logger) LogOpen(ctx context.Context, pages uint64, metadataBytes, maxRanges int) {
	l.InfoContext(ctx, "arena opened",
		"pages", pages,
		"metadata_bytes", metadataBytes,
		"max_ranges", maxRanges,
	)
}

// LogCommit logs a commit operation.
func (l *Logger) LogCommit(ctx context.Context, size int, err error) {
	if err != nil {
		l.WarnContext(ctx, "commit failed",
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "commit completed",
			"size", size,
		)
	}
}

// LogDecommit logs a decommit operation.
func (l *Logger) LogDecommit(ctx context.Context, size int) {
	l.DebugContext(ctx, "decommit completed",
		"size", size,
	)
}

// LogClose logs arena teardown.
func (l *Logger) LogClose(ctx context.Context, committedBytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "arena close failed",
			"committed_bytes", committedBytes,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "arena closed",
			"committed_bytes", committedBytes,
		)
	}
}
