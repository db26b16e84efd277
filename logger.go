package polyvectordb

import (
	"context"
	"log/slog"
	"os"

	"github.com/macneib/PolyVectorDB/model"
)

// Logger wraps slog.Logger with consistent field names for database
// operations.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogInsert logs a vector insert.
func (l *Logger) LogInsert(ctx context.Context, field string, id model.EntityID, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"field", field,
			"id", uint64(id),
			"dimension", dimension,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"field", field,
			"id", uint64(id),
			"dimension", dimension,
		)
	}
}

// LogDelete logs a vector delete.
func (l *Logger) LogDelete(ctx context.Context, field string, id model.EntityID, found bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"field", field,
			"id", uint64(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "delete completed",
			"field", field,
			"id", uint64(id),
			"found", found,
		)
	}
}

// LogQuery logs a cross-vector query.
func (l *Logger) LogQuery(ctx context.Context, fields int, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"fields", fields,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"fields", fields,
			"k", k,
			"results", resultsFound,
		)
	}
}

// LogCompaction logs a compaction run on one field.
func (l *Logger) LogCompaction(ctx context.Context, field string, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compaction failed",
			"field", field,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "compaction completed",
			"field", field,
			"removed", removed,
		)
	}
}

// LogBuild logs a bulk field build.
func (l *Logger) LogBuild(ctx context.Context, field string, inserted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"field", field,
			"inserted", inserted,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"field", field,
			"inserted", inserted,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, field, filename string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"field", field,
			"filename", filename,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"field", field,
			"filename", filename,
		)
	}
}
