// Package logger provides structured logging for the progress ledger.
// It is a thin layer over zap that keeps field construction close to the domain:
// callers write logger.UserID(id) instead of spelling out keys by hand.
package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field.
type Field = zap.Field

// Options configures the logger.
type Options struct {
	// Mode selects the encoder: "production" writes JSON, anything else
	// writes the human-readable development format.
	Mode string

	// Level is the minimum level: debug, info, warn or error.
	Level string
}

// Logger wraps a zap logger.
type Logger struct {
	z *zap.Logger
}

// New builds a Logger from options.
func New(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(opts.Mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("logger: build: %w", err)
	}
	return &Logger{z: z}, nil
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// FromZap adopts an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	if z == nil {
		return Nop()
	}
	return &Logger{z: z}
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger carrying fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

// Zap exposes the underlying zap logger.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.z.Fatal(msg, fields...) }

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.z.Sync()
}

type ctxKey struct{}

// WithContext attaches the logger to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

// Generic field constructors.
func String(key, value string) Field             { return zap.String(key, value) }
func Int(key string, value int) Field            { return zap.Int(key, value) }
func Int64(key string, value int64) Field        { return zap.Int64(key, value) }
func Bool(key string, value bool) Field          { return zap.Bool(key, value) }
func Any(key string, value any) Field            { return zap.Any(key, value) }
func Err(err error) Field                        { return zap.Error(err) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }

// Domain field helpers.
func UserID(id int64) Field             { return zap.Int64("user_id", id) }
func CourseID(id int64) Field           { return zap.Int64("course_id", id) }
func ModuleID(id int64) Field           { return zap.Int64("module_id", id) }
func RewardKind(kind string) Field      { return zap.String("reward_kind", kind) }
func Amount(coins int64) Field          { return zap.Int64("amount", coins) }
func Balance(coins int64) Field         { return zap.Int64("balance", coins) }
func Seconds(key string, s int64) Field { return zap.Int64(key, s) }
func Component(name string) Field       { return zap.String("component", name) }
func Operation(name string) Field       { return zap.String("operation", name) }
func Outcome(name string) Field         { return zap.String("outcome", name) }
