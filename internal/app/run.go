package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/publish"
)

// Run loads the manifest, resolves every target and publishes the result.
// Nothing is written unless every target resolved.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	m, err := a.loader.Load(ctx, a.config.ManifestPaths...)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	a.logger.Debug("Manifest loaded.", "package", m.Package, "modules", len(m.Modules), "targets", len(m.Targets))

	pub, err := a.resolver.Resolve(ctx, m)
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	if a.config.OutPath != "" {
		if err := publish.WriteFile(a.config.OutPath, pub, a.format); err != nil {
			return err
		}
		a.logger.Info("Publication written.", "path", a.config.OutPath, "format", a.format)
	} else if err := publish.Write(a.outW, pub, a.format); err != nil {
		return fmt.Errorf("writing publication: %w", err)
	}

	hits, misses := a.resolver.Cache().Stats()
	a.logger.Debug("App.Run method finished.", "cache_hits", hits, "cache_misses", misses)
	return nil
}
