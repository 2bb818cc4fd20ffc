package manifest

import "context"

// Loader is the interface for a format-specific manifest loader.
type Loader interface {
	// Load reads the manifest from the given paths and translates it into
	// the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Manifest, error)
}
