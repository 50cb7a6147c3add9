// Package logging provides the structured logger shared by the engine, the
// shell executor and the CLI.
package logging

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	// LogLevelOff disables output entirely.
	LogLevelOff LogLevel = "OFF"
)

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// fall back to INFO. "critical" and "disabled" are accepted as aliases for OFF
// since the config file historically used python-style level names.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	case "OFF", "CRITICAL", "DISABLED", "NONE":
		return LogLevelOff
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelOff:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// LogField represents a key-value pair in structured logging.
type LogField struct {
	Key   string
	Value any
}

// Field creates a LogField from a key-value pair.
func Field(key string, value any) LogField {
	return LogField{Key: key, Value: value}
}

// Logger provides structured logging capabilities with context support.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...LogField)
	Info(ctx context.Context, msg string, fields ...LogField)
	Warn(ctx context.Context, msg string, fields ...LogField)
	Error(ctx context.Context, msg string, err error, fields ...LogField)
	WithFields(fields ...LogField) Logger
}

// NoOpLogger is a logger that discards all log entries.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(_ context.Context, _ string, _ ...LogField)          {}
func (n *NoOpLogger) Info(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Warn(_ context.Context, _ string, _ ...LogField)           {}
func (n *NoOpLogger) Error(_ context.Context, _ string, _ error, _ ...LogField) {}
func (n *NoOpLogger) WithFields(_ ...LogField) Logger                           { return n }

// OrNoOp returns logger, or a NoOpLogger when logger is nil.
func OrNoOp(logger Logger) Logger {
	if logger == nil {
		return &NoOpLogger{}
	}
	return logger
}

// ZeroLogger writes structured entries through zerolog. Trace ids found in
// the context are attached to every entry.
type ZeroLogger struct {
	logger zerolog.Logger
}

// New creates a logger writing JSON lines to writer at the given minimum
// level. A nil writer discards everything.
func New(minLevel LogLevel, writer io.Writer) *ZeroLogger {
	if writer == nil {
		writer = io.Discard
	}
	zl := zerolog.New(writer).Level(minLevel.zerolog()).With().Timestamp().Logger()
	return &ZeroLogger{logger: zl}
}

// NewConsole creates a human readable logger, used when logging to a terminal.
func NewConsole(minLevel LogLevel, writer io.Writer) *ZeroLogger {
	if writer == nil {
		writer = io.Discard
	}
	out := zerolog.ConsoleWriter{Out: writer, NoColor: true, TimeFormat: "15:04:05"}
	zl := zerolog.New(out).Level(minLevel.zerolog()).With().Timestamp().Logger()
	return &ZeroLogger{logger: zl}
}

func (z *ZeroLogger) log(ctx context.Context, evt *zerolog.Event, msg string, fields []LogField) {
	if evt == nil {
		return
	}
	if traceID := TraceID(ctx); traceID != "" {
		evt = evt.Str("trace_id", traceID)
	}
	for _, f := range fields {
		evt = evt.Interface(f.Key, f.Value)
	}
	evt.Msg(msg)
}

func (z *ZeroLogger) Debug(ctx context.Context, msg string, fields ...LogField) {
	z.log(ctx, z.logger.Debug(), msg, fields)
}

func (z *ZeroLogger) Info(ctx context.Context, msg string, fields ...LogField) {
	z.log(ctx, z.logger.Info(), msg, fields)
}

func (z *ZeroLogger) Warn(ctx context.Context, msg string, fields ...LogField) {
	z.log(ctx, z.logger.Warn(), msg, fields)
}

func (z *ZeroLogger) Error(ctx context.Context, msg string, err error, fields ...LogField) {
	z.log(ctx, z.logger.Error().Err(err), msg, fields)
}

func (z *ZeroLogger) WithFields(fields ...LogField) Logger {
	zctx := z.logger.With()
	for _, f := range fields {
		zctx = zctx.Interface(f.Key, f.Value)
	}
	return &ZeroLogger{logger: zctx.Logger()}
}

// traceIDKey is the context key for trace IDs.
type traceIDKey struct{}

// WithTraceID adds a trace ID to the context for request correlation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID extracts the trace ID from context, if present.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewTraceID creates a new trace ID for request correlation.
func NewTraceID() string {
	return uuid.NewString()
}
