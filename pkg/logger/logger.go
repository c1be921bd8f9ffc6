// Package logger configures the process-wide slog logger and carries
// analysis identity (request, tenant, job) through contexts so that a
// log line from deep inside a pipeline goroutine can be tied back to
// the submission that caused it.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// TenantKey is the context key for tenant
	TenantKey ContextKey = "tenant"
	// UsernameKey is the context key for username
	UsernameKey ContextKey = "username"
	// JobIDKey is the context key for the analysis job bound to a
	// background pipeline run
	JobIDKey ContextKey = "job_id"
)

// contextAttrs are the identity keys WithContext lifts into log
// attributes, in attribute order.
var contextAttrs = []ContextKey{RequestIDKey, TenantKey, UsernameKey, JobIDKey}

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init initializes the global slog logger with the given configuration
func Init(cfg *Config) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithContext returns a logger carrying every identity attribute
// present on the context.
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	for _, key := range contextAttrs {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(string(key), v)
		}
	}
	return logger
}

// NewJobContext builds the context for a background pipeline
// goroutine. The job runs detached from the submitting request, so the
// job and tenant identity are rebound here rather than inherited from
// the request context, which dies when the handler returns.
func NewJobContext(jobID, tenant string) context.Context {
	ctx := context.WithValue(context.Background(), JobIDKey, jobID)
	return context.WithValue(ctx, TenantKey, tenant)
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
