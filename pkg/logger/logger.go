// Package logger provides a zap-based application logger.
package logger

import (
	"context"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger emits.
type Level int8

const (
	LevelDebug = Level(zapcore.DebugLevel)
	LevelInfo  = Level(zapcore.InfoLevel)
	LevelWarn  = Level(zapcore.WarnLevel)
	LevelError = Level(zapcore.ErrorLevel)
)

// ParseLevel maps "debug", "info", "warn" or "error" to a Level.
func ParseLevel(s string) (Level, error) {
	l, err := zapcore.ParseLevel(s)
	if err != nil {
		return LevelInfo, err
	}
	return Level(l), nil
}

// TraceIDFunc extracts a trace id from a context, or returns "".
type TraceIDFunc func(ctx context.Context) string

// Logger writes structured JSON lines. Every line carries the service name
// and, when the context holds an active span, its trace id.
type Logger struct {
	log     *zap.SugaredLogger
	traceID TraceIDFunc
}

// New builds a Logger writing to w.
func New(w io.Writer, min Level, service string, traceID TraceIDFunc) *Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zapcore.Level(min))
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).With(zap.String("service", service))
	return &Logger{log: z.Sugar(), traceID: traceID}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{log: zap.NewNop().Sugar()}
}

// Debug logs at debug level. kv is a list of alternating keys and values.
func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, zapcore.DebugLevel, msg, kv)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, zapcore.InfoLevel, msg, kv)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, zapcore.WarnLevel, msg, kv)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	l.write(ctx, zapcore.ErrorLevel, msg, kv)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.log.Sync()
}

func (l *Logger) write(ctx context.Context, lvl zapcore.Level, msg string, kv []any) {
	if l == nil {
		return
	}
	if l.traceID != nil && ctx != nil {
		if id := l.traceID(ctx); id != "" {
			kv = append(kv, "trace_id", id)
		}
	}
	switch lvl {
	case zapcore.DebugLevel:
		l.log.Debugw(msg, kv...)
	case zapcore.InfoLevel:
		l.log.Infow(msg, kv...)
	case zapcore.WarnLevel:
		l.log.Warnw(msg, kv...)
	default:
		l.log.Errorw(msg, kv...)
	}
}
