// Package logger is the structured logger of the learning hub: a thin
// field-based API over zap. Credentials that reach a string field are
// redacted before encoding, whatever helper produced the field.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	Level = zapcore.Level
	Field = zap.Field
)

const (
	LevelDebug = zapcore.DebugLevel
	LevelInfo  = zapcore.InfoLevel
	LevelWarn  = zapcore.WarnLevel
	LevelError = zapcore.ErrorLevel
)

// ParseLevel accepts zap level names and "warning". Anything else is info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	return lvl
}

func String(key, value string) Field             { return zap.String(key, value) }
func Int(key string, value int) Field            { return zap.Int(key, value) }
func Bool(key string, value bool) Field          { return zap.Bool(key, value) }
func Any(key string, value any) Field            { return zap.Any(key, value) }
func Err(err error) Field                        { return zap.Error(err) }
func Duration(key string, d time.Duration) Field { return zap.Duration(key, d) }
func Time(key string, t time.Time) Field         { return zap.Time(key, t) }

// Domain keys, so the same thing is logged under the same name everywhere.
func LearnerID(id string) Field     { return zap.String("learner_id", id) }
func LessonID(id string) Field      { return zap.String("lesson_id", id) }
func QuizID(id string) Field        { return zap.String("quiz_id", id) }
func AttemptID(id string) Field     { return zap.String("attempt_id", id) }
func AchievementID(id string) Field { return zap.String("achievement_id", id) }
func Points(n int) Field            { return zap.Int("points", n) }
func EventType(t string) Field      { return zap.String("event_type", t) }
func Component(name string) Field   { return zap.String("component", name) }
func Operation(name string) Field   { return zap.String("operation", name) }
func Latency(d time.Duration) Field { return zap.Duration("latency", d) }

const RequestIDKey = "request_id"

type Options struct {
	Output    io.Writer // stdout when nil
	Level     Level
	Format    string // "json" or "console"
	AddCaller bool
}

func DefaultOptions() Options {
	return Options{Output: os.Stdout, Level: LevelInfo, Format: "json", AddCaller: true}
}

type Logger struct {
	z *zap.Logger
}

func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var enc zapcore.Encoder
	if strings.EqualFold(opts.Format, "console") {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey, ec.MessageKey = "timestamp", "message"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}

	core := redactingCore{zapcore.NewCore(enc, zapcore.AddSync(out), opts.Level)}
	zopts := []zap.Option{zap.AddStacktrace(zapcore.DPanicLevel)}
	if opts.AddCaller {
		zopts = append(zopts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	return &Logger{z: zap.New(core, zopts...)}
}

var nop = &Logger{z: zap.NewNop()}

// Nop discards everything.
func Nop() *Logger { return nop }

func (l *Logger) With(fields ...Field) *Logger { return &Logger{z: l.z.With(fields...)} }
func (l *Logger) Named(name string) *Logger    { return &Logger{z: l.z.Named(name)} }

func (l *Logger) WithRequestID(id string) *Logger {
	return l.With(zap.String(RequestIDKey, id))
}

func (l *Logger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() { _ = l.z.Sync() }

type ctxKey struct{}

func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or a no-op one.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return nop
}

// ══════════════════════════════════════════════════════════════════════════════
// REDACTION
// ══════════════════════════════════════════════════════════════════════════════

const redacted = "[REDACTED]"

var secretKeys = []string{"token", "authorization", "password", "secret"}

// redactingCore scrubs string fields both on With and on Write.
type redactingCore struct {
	zapcore.Core
}

func (c redactingCore) With(fields []Field) zapcore.Core {
	return redactingCore{c.Core.With(scrub(fields))}
}

func (c redactingCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c redactingCore) Write(e zapcore.Entry, fields []Field) error {
	return c.Core.Write(e, scrub(fields))
}

func scrub(fields []Field) []Field {
	var out []Field
	for i, f := range fields {
		if f.Type != zapcore.StringType || !isSecret(f.Key, f.String) {
			continue
		}
		if out == nil {
			out = append([]Field(nil), fields...)
		}
		out[i].String = redacted
	}
	if out == nil {
		return fields
	}
	return out
}

func isSecret(key, value string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return looksLikeJWT(value)
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}
