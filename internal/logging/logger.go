package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level   string
	LogFile string
	// Color is "auto", "always" or "never". Auto disables color when
	// NO_COLOR is set or the terminal is dumb.
	Color string
}

// NewLogger creates a new zerolog logger with dual output (console + file)
func NewLogger(cfg Config) *zerolog.Logger {
	// Enable stack trace marshaling
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	// Determine log level
	level := parseLevel(cfg.Level)

	// Console writer (colored output for TTY). Writes go through the
	// progress-safe writer so log lines and progress bar redraws do not
	// interleave mid-line.
	consoleWriter := zerolog.ConsoleWriter{
		Out:        newProgressSafeWriter(os.Stderr),
		TimeFormat: "15:04:05",
		NoColor:    noColor(cfg.Color),
	}

	var writers []io.Writer
	writers = append(writers, consoleWriter)

	// File logger if path provided
	if cfg.LogFile != "" {
		// Ensure directory exists
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // MB
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	multi := zerolog.MultiLevelWriter(writers...)

	// Create logger
	logger := zerolog.New(multi).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &logger
}

// noColor resolves the configured color mode against the environment
func noColor(mode string) bool {
	switch mode {
	case "always":
		return false
	case "never":
		return true
	}
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	return os.Getenv("TERM") == "dumb"
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch level {
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
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// progressSafeWriter serializes writes to the underlying writer
type progressSafeWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func newProgressSafeWriter(out io.Writer) *progressSafeWriter {
	return &progressSafeWriter{out: out}
}

func (w *progressSafeWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

// NewTestLogger creates a logger for testing that writes to a buffer
func NewTestLogger(w io.Writer) *zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &logger
}
