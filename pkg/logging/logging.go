// Package logging 定义归档引擎使用的日志接口。
// 引擎只调用 Logger，不依赖其行为；具体输出由 slog 或 zap 完成。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 六个常规级别 + 五个额外的详细级别 (Verbose tier 1..5)
// args 与 slog 相同，是成对的 key/value
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// Fatal 只记录，不退出进程
	Fatal(msg string, args ...any)
	Verbose(tier int, msg string, args ...any)
}

// Config 日志配置
type Config struct {
	Level   string // trace, debug, info, warn, error, fatal, v1..v5
	Backend string // slog, zap
	Format  string // text, json
	Output  io.Writer
}

// New 根据配置创建 Logger
func New(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	json := strings.EqualFold(cfg.Format, "json")

	switch strings.ToLower(cfg.Backend) {
	case "", "slog":
		opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelName}
		var h slog.Handler
		if json {
			h = slog.NewJSONHandler(out, opts)
		} else {
			h = slog.NewTextHandler(out, opts)
		}
		return NewSlog(slog.New(h)), nil
	case "zap":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		var enc zapcore.Encoder
		if json {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(toZapLevel(level)))
		return NewZap(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unsupported log backend: %q", cfg.Backend)
	}
}

// -----------------------------------------------------------------------------
// 级别
// -----------------------------------------------------------------------------

// slog 的扩展级别。Verbose tier n 对应 LevelTrace - n，都比 Trace 更细
const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// VerboseLevel 返回 tier 对应的 slog 级别，tier 会被限制在 1..5
func VerboseLevel(tier int) slog.Level {
	tier = max(1, min(tier, 5))
	return LevelTrace - slog.Level(tier)
}

// ParseLevel 解析配置中的级别字符串，空串为 info
func ParseLevel(s string) (slog.Level, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	switch norm {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	case "v1", "v2", "v3", "v4", "v5":
		return VerboseLevel(int(norm[1] - '0')), nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	switch {
	case level == LevelTrace:
		a.Value = slog.StringValue("TRACE")
	case level == LevelFatal:
		a.Value = slog.StringValue("FATAL")
	case level < LevelTrace && level >= VerboseLevel(5):
		a.Value = slog.StringValue(fmt.Sprintf("V%d", int(LevelTrace-level)))
	}
	return a
}

// toZapLevel 将 slog 级别映射到 zap 的 int8 级别
// zap: debug=-1 info=0 warn=1 error=2；trace=-2，Verbose tier n=-2-n
func toZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	case l > LevelTrace:
		return zapcore.DebugLevel
	default:
		return zapcore.Level(int(zapcore.DebugLevel) - 1 - int(LevelTrace-l))
	}
}
