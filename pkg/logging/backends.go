package logging

import (
	"context"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------
// slog
// -----------------------------------------------------------------------------

type slogLogger struct {
	l *slog.Logger
}

// NewSlog 包装一个 *slog.Logger
func NewSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) log(level slog.Level, msg string, args ...any) {
	s.l.Log(context.Background(), level, msg, args...)
}

func (s *slogLogger) Trace(msg string, args ...any) { s.log(LevelTrace, msg, args...) }
func (s *slogLogger) Debug(msg string, args ...any) { s.log(slog.LevelDebug, msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.log(slog.LevelInfo, msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.log(slog.LevelWarn, msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.log(slog.LevelError, msg, args...) }
func (s *slogLogger) Fatal(msg string, args ...any) { s.log(LevelFatal, msg, args...) }

func (s *slogLogger) Verbose(tier int, msg string, args ...any) {
	s.log(VerboseLevel(tier), msg, args...)
}

// -----------------------------------------------------------------------------
// zap
// -----------------------------------------------------------------------------

type zapLogger struct {
	l *zap.Logger
}

// NewZap 包装一个 *zap.Logger
func NewZap(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{l: l}
}

func (z *zapLogger) log(level zapcore.Level, msg string, args []any, extra ...zap.Field) {
	// 不用 l.Fatal，避免 zap 调用 os.Exit
	ce := z.l.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(append(fields(args), extra...)...)
}

func (z *zapLogger) Trace(msg string, args ...any) { z.log(toZapLevel(LevelTrace), msg, args) }
func (z *zapLogger) Debug(msg string, args ...any) { z.log(zapcore.DebugLevel, msg, args) }
func (z *zapLogger) Info(msg string, args ...any)  { z.log(zapcore.InfoLevel, msg, args) }
func (z *zapLogger) Warn(msg string, args ...any)  { z.log(zapcore.WarnLevel, msg, args) }
func (z *zapLogger) Error(msg string, args ...any) { z.log(zapcore.ErrorLevel, msg, args) }

func (z *zapLogger) Fatal(msg string, args ...any) {
	z.log(zapcore.ErrorLevel, msg, args, zap.Bool("fatal", true))
}

func (z *zapLogger) Verbose(tier int, msg string, args ...any) {
	z.log(toZapLevel(VerboseLevel(tier)), msg, args)
}

// fields 把 slog 风格的 key/value 参数转换为 zap.Field
func fields(args []any) []zap.Field {
	out := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case slog.Attr:
			out = append(out, zap.Any(v.Key, v.Value.Any()))
		case string:
			if i+1 >= len(args) {
				out = append(out, zap.String("!BADKEY", v))
				continue
			}
			out = append(out, zap.Any(v, args[i+1]))
			i++
		default:
			out = append(out, zap.Any("!BADKEY", v))
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// nop
// -----------------------------------------------------------------------------

type nopLogger struct{}

// Nop 丢弃所有日志，是引擎的默认 Logger
func Nop() Logger { return nopLogger{} }

func (nopLogger) Trace(string, ...any)        {}
func (nopLogger) Debug(string, ...any)        {}
func (nopLogger) Info(string, ...any)         {}
func (nopLogger) Warn(string, ...any)         {}
func (nopLogger) Error(string, ...any)        {}
func (nopLogger) Fatal(string, ...any)        {}
func (nopLogger) Verbose(int, string, ...any) {}
