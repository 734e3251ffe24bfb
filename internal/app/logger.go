package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always logs JSON; other
// environments follow LOG_FORMAT.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
