package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/clustermanifest/internal/config"
)

// ServiceName is attached to every log line.
const ServiceName = "manifestgen"

// NewLogger creates the structured logger described by cfg. A nil w means
// stderr, keeping stdout free for command output.
func NewLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(w, cfg.LogLevel, cfg.LogFormat)
}

// New creates a logger writing to w. format "console" selects the
// human-readable writer; anything else emits JSON lines.
func New(w io.Writer, level, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(w).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return logger.Level(lvl)
}
