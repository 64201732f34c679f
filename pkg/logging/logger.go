// Package logging 提供基于 zerolog 的全局日志。
//
// 入口处调用 Init 完成配置，各组件通过 With 派生带 component 字段的子 logger：
//
//	log := logging.With().Str("component", "expansion").Logger()
//	log.Warn().Err(err).Msg("similarity index unavailable")
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config 日志配置。
type Config struct {
	Level     string    // trace/debug/info/warn/error，默认 info
	Format    string    // json 或 console，默认 json
	Caller    bool      // 是否输出调用位置
	Timestamp bool      // 是否输出时间戳
	Output    io.Writer // 默认 os.Stderr
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init 按配置重建全局 logger，可重复调用。
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(output)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	log = l
}

// ParseLevel 把字符串级别转换为 zerolog.Level，未知值视为 info。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger 返回全局 logger。
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger 替换全局 logger，测试中常用 zerolog.Nop()。
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With 派生子 logger。
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Component 返回带 component 字段的子 logger。
func Component(name string) zerolog.Logger {
	return With().Str("component", name).Logger()
}

func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}
