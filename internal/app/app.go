package app

import (
	"io"
	"log/slog"

	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/probe"
	"github.com/specialistvlad/nativebind/internal/publish"
	"github.com/specialistvlad/nativebind/internal/resolver"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	loader   manifest.Loader
	resolver *resolver.Resolver
	format   publish.Format
}

// NewApp is the constructor for the main application. Published output goes
// to outW unless the config names a file; logs go to logW. The config must
// come from NewConfig.
func NewApp(outW, logW io.Writer, cfg *Config, loader manifest.Loader, opts ...resolver.Option) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	// NewConfig already rejected unknown formats.
	format, _ := publish.ParseFormat(cfg.Format)

	resolverOpts := []resolver.Option{
		resolver.WithWorkers(cfg.WorkerCount),
		resolver.WithTargets(cfg.Targets...),
	}
	if cfg.Probe {
		resolverOpts = append(resolverOpts, resolver.WithProber(probe.New(probe.WithSearchPaths(cfg.SearchPaths...))))
		logger.Debug("Host symbol probing enabled.", "host", probe.Host().Key())
	}
	resolverOpts = append(resolverOpts, opts...)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		loader:   loader,
		resolver: resolver.New(resolverOpts...),
		format:   format,
	}
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
