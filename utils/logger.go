package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects the level, format and destination of the server log.
type LogConfig struct {
	Level     string
	Console   bool
	Component string
	// Dir enables rotated log files under this directory. Empty logs to
	// the writer passed to NewLogger.
	Dir        string
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultLogFileName = "gskywcs.log"
	defaultLogMaxSize  = 128
	defaultLogMaxAge   = 28
)

// ParseLogLevel maps a level name to a zerolog level, info by default.
func ParseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// RotatingWriter returns a lumberjack writer for name under dir.
func RotatingWriter(dir, name string, maxSizeMB, maxBackups, maxAgeDays int) *lumberjack.Logger {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultLogMaxSize
	}
	if maxAgeDays <= 0 {
		maxAgeDays = defaultLogMaxAge
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// NewLogger builds the server logger. out defaults to stderr and is
// replaced by a rotating file when cfg.Dir is set.
func NewLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if cfg.Dir != "" {
		name := cfg.FileName
		if name == "" {
			name = defaultLogFileName
		}
		out = RotatingWriter(cfg.Dir, name, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(ParseLogLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}
