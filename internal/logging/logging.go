// Package logging builds the zerolog logger used by confsync runs.
//
// Loggers travel through context.Context; library code retrieves them with
// zerolog.Ctx and never configures output itself.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger options.
type Config struct {
	// Level is the minimum level written (trace, debug, info, warn, error).
	Level string `toml:"level"`

	// Format is auto, json or console. Auto picks console on a terminal.
	Format string `toml:"format"`

	// Output is stderr, stdout, discard or a file path.
	Output string `toml:"output"`

	NoColor bool `toml:"no-color"`

	// MaxSizeMB and MaxBackups control rotation when Output is a file.
	MaxSizeMB  int `toml:"max-size-mb"`
	MaxBackups int `toml:"max-backups"`
}

// DefaultConfig returns the defaults, with LOG_LEVEL, LOG_FORMAT,
// LOG_OUTPUT and NO_COLOR applied.
func DefaultConfig() Config {
	return Config{
		Level:      envOr("LOG_LEVEL", "info"),
		Format:     envOr("LOG_FORMAT", "auto"),
		Output:     envOr("LOG_OUTPUT", "stderr"),
		NoColor:    os.Getenv("NO_COLOR") != "",
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// New creates a logger from cfg. The returned closer releases a log file
// and is a no-op for the standard streams.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	out, closer := openOutput(cfg)

	var w io.Writer = out
	if useConsole(cfg.Format, out) {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		}
	}

	logger := zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	return logger, closer
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}

// NewRunID returns a time-ordered identifier for one sync run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WithRun attaches logger to ctx with a fresh run_id field and returns the
// derived context and the id.
func WithRun(ctx context.Context, logger zerolog.Logger) (context.Context, string) {
	id := NewRunID()
	l := logger.With().Str("run_id", id).Logger()
	return l.WithContext(ctx), id
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openOutput(cfg Config) (io.Writer, io.Closer) {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return os.Stderr, nopCloser{}
	case "stdout":
		return os.Stdout, nopCloser{}
	case "discard", "none":
		return io.Discard, nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return lj, lj
}

func useConsole(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "console", "pretty":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
