package telemetry

import (
	"context"
	"log/slog"
	"os"
)

// LogLevel reads the minimum log level from LOG_LEVEL (DEBUG, INFO, WARN,
// ERROR); defaults to INFO for anything else, including an unset variable.
func LogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger builds the process-wide logger and installs it as the slog
// default. LOG_FORMAT selects the handler: "text" for a human-readable
// development format, anything else (including unset) for JSON. Source
// locations are only attached at DEBUG level, where the extra noise earns
// its keep.
func SetupLogger() *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     LogLevel(),
		AddSource: LogLevel() == slog.LevelDebug,
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

type ctxKey string

const ctxLoggerKey ctxKey = "logger"

// WithLogger attaches logger to ctx, so a callee several layers down a call
// chain — a planner call, a task invocation — can retrieve the
// action/task-scoped logger its caller built without threading it through
// every intermediate signature.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey, logger)
}

// FromContext retrieves the logger attached by WithLogger, falling back to
// the process default if ctx carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithActionID returns logger with action_id attached, scoping every
// subsequent line a scheduling loop emits to the action it is driving.
func WithActionID(logger *slog.Logger, actionID string) *slog.Logger {
	return logger.With("action_id", actionID)
}

// WithTaskID returns logger with task_id attached, further scoping an
// action-level logger to the single task currently being run.
func WithTaskID(logger *slog.Logger, taskID string) *slog.Logger {
	return logger.With("task_id", taskID)
}
