package app

import (
	"io"
	"log/slog"
)

// App encapsulates a configured sweep runner.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	progress *progressTracker
}

// NewApp creates a fully initialized App instance, wiring its logger to the
// given writer.
func NewApp(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:     outW,
		logger:   newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config:   cfg,
		progress: &progressTracker{mode: cfg.Mode},
	}
}
