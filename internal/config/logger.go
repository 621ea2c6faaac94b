package config

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// NewLogger builds the process logger described by c. The "pretty" format
// renders through charmbracelet/log; "json" and "text" use the slog
// handlers of the same name.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level := slogLevel(c.Level)

	switch c.Format {
	case "pretty":
		h := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
		})
		return slog.New(h)
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
}

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
