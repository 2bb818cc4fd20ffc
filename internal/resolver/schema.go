package resolver

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/manifest"
)

// checkSchema maps every module to its strategy and decides whether this
// resolver may interpret the manifest:
//
//	schema unparseable                          -> malformed
//	unknown strategy, schema newer than current -> too new
//	unknown strategy, schema within range       -> malformed
//	strategy introduced after declared schema   -> malformed
//	schema newer, every strategy known          -> accepted with a warning
func checkSchema(ctx context.Context, m *manifest.Manifest) (int, map[string]manifest.WiringStrategy, error) {
	logger := ctxlog.FromContext(ctx)

	version, err := manifest.ParseSchema(m.Schema)
	if err != nil {
		return 0, nil, &manifest.SchemaEvolutionError{
			Reason: manifest.ReasonMalformed,
			Schema: m.Schema,
			Detail: err.Error(),
		}
	}

	strategies := make(map[string]manifest.WiringStrategy, len(m.Modules))
	for _, mod := range m.Modules {
		s, ok := manifest.Lookup(mod.Strategy)
		switch {
		case !ok && version > manifest.CurrentSchema:
			return 0, nil, &manifest.SchemaEvolutionError{
				Reason:   manifest.ReasonTooNew,
				Schema:   m.Schema,
				Module:   mod.Name,
				Strategy: mod.Strategy,
			}
		case !ok:
			return 0, nil, &manifest.SchemaEvolutionError{
				Reason:   manifest.ReasonMalformed,
				Schema:   m.Schema,
				Module:   mod.Name,
				Strategy: mod.Strategy,
				Detail:   fmt.Sprintf("module %s: strategy %q does not exist in schema %d", mod.Name, mod.Strategy, version),
			}
		case s.Since() > version:
			return 0, nil, &manifest.SchemaEvolutionError{
				Reason:   manifest.ReasonMalformed,
				Schema:   m.Schema,
				Module:   mod.Name,
				Strategy: mod.Strategy,
				Detail:   fmt.Sprintf("module %s: strategy %s requires schema %d, manifest declares %d", mod.Name, s.Kind(), s.Since(), version),
			}
		}
		strategies[mod.Name] = s
	}

	if version > manifest.CurrentSchema {
		logger.Warn("Manifest schema is newer than this resolver; every strategy it uses is known.",
			"schema", version, "supported", manifest.CurrentSchema)
	}
	return version, strategies, nil
}
