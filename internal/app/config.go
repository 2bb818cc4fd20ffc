package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/nativebind/internal/publish"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ManifestPaths []string // hcl files or directories
	Targets       []string // subset of declared targets, empty means all
	Format        string
	OutPath       string // empty means the app's output writer
	Probe         bool
	SearchPaths   []string // extra library directories for the probe

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ManifestPaths) == 0 {
		return nil, errors.New("at least one manifest path is required")
	}
	if cfg.Format == "" {
		cfg.Format = string(publish.JSON)
	}
	if _, err := publish.ParseFormat(cfg.Format); err != nil {
		return nil, err
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	if len(cfg.SearchPaths) > 0 && !cfg.Probe {
		return nil, errors.New("library search paths only apply with probing enabled")
	}
	return &cfg, nil
}
