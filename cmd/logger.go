package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/webitel/im-realtime-client/config"
)

// ProvideLogger builds the process logger from log.level and log.format.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	return newLogger(cfg.Log)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
}
