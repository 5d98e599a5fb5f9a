// Package logging builds the zap loggers used across the daemon.
package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format is the log encoding.
type Format string

const (
	FormatConsole Format = "CONSOLE"
	FormatJSON    Format = "JSON"
)

// Component names used with For.
const (
	ComponentMain   = "main"
	ComponentDriver = "driver"
	ComponentMedia  = "media"
	ComponentMQTT   = "mqtt"
	ComponentWeb    = "web"
)

var (
	mu   sync.Mutex
	base = zap.NewNop()
)

// ParseLevel converts a level name to a zap level. Unknown names map to INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseFormat converts a format name. Unknown names map to CONSOLE.
func ParseFormat(format string) Format {
	if Format(strings.ToUpper(strings.TrimSpace(format))) == FormatJSON {
		return FormatJSON
	}
	return FormatConsole
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// New creates a logger writing to stderr with the given level and format.
func New(level string, format Format) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeTime = timeEncoder
		cfg.ConsoleSeparator = " | "
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(ParseLevel(level)))
	return zap.New(core, zap.AddCaller())
}

// Init installs logger as the base for For. It returns the previous base so
// tests can restore it.
func Init(logger *zap.Logger) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := base
	base = logger
	return prev
}

// For returns a named sugared logger for a component. Before Init it
// discards everything.
func For(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return base.Named(component).Sugar()
}

// Sync flushes buffered entries of the base logger.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	return base.Sync()
}
