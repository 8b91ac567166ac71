package runtime

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammad-safakhou/newsrag/config"
)

// NewLogger builds the root logger. Debug mode writes human-readable console
// output; otherwise one JSON object per line.
func NewLogger(cfg config.GeneralConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Debug {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "newsrag").
		Str("env", cfg.Environment).
		Logger()
}
