package artifact

import (
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/nativebind/internal/platform"
)

// Registry selects slices of one artifact for the targets a package
// declares. It is immutable after NewRegistry and safe for concurrent use.
type Registry struct {
	artifact  *BinaryArtifact
	supported map[string]platform.Target
	order     []platform.Target
}

// NewRegistry validates art against the supported targets. Validation runs
// at packaging time so ambiguity is never discovered mid-build: every
// supported target must resolve to exactly one slice, and a slice with an
// unknown variant may not serve targets that differ only by variant. All
// violations are joined into the returned error.
func NewRegistry(art *BinaryArtifact, supported []platform.Target) (*Registry, error) {
	if art == nil {
		return nil, errors.New("artifact registry: nil artifact")
	}
	r := &Registry{
		artifact:  art,
		supported: make(map[string]platform.Target, len(supported)),
	}
	for _, t := range supported {
		if prev, dup := r.supported[t.Key()]; dup {
			return nil, fmt.Errorf("artifact registry: target %s declared twice (%s and %s)", t.Key(), prev, t)
		}
		r.supported[t.Key()] = t
		r.order = append(r.order, t)
	}

	var errs []error
	claims := make(map[string][]platform.Target)
	for _, t := range r.order {
		s, err := r.Resolve(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !s.VariantKnown {
			claims[s.ID] = append(claims[s.ID], t)
		}
	}

	ids := make([]string, 0, len(claims))
	for id := range claims {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if conflict := variantConflict(claims[id]); conflict != nil {
			errs = append(errs, &AmbiguousSliceError{Artifact: art.Name, Targets: conflict, Slices: []string{id}})
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// variantConflict returns the first pair of targets that share OS family and
// architecture but not variant.
func variantConflict(targets []platform.Target) []platform.Target {
	for i := range targets {
		for j := i + 1; j < len(targets); j++ {
			a, b := targets[i], targets[j]
			if a.OS == b.OS && a.Arch == b.Arch && a.Variant != b.Variant {
				return []platform.Target{a, b}
			}
		}
	}
	return nil
}

// Artifact returns the registry's artifact.
func (r *Registry) Artifact() *BinaryArtifact { return r.artifact }

// Targets returns the supported targets in declaration order.
func (r *Registry) Targets() []platform.Target {
	return append([]platform.Target(nil), r.order...)
}

// Resolve returns the single slice serving target. A target without a
// version inherits the version of the supported target with the same key.
func (r *Registry) Resolve(target platform.Target) (*Slice, error) {
	declared, ok := r.supported[target.Key()]
	if !ok {
		return nil, &UnsupportedPlatformError{Artifact: r.artifact.Name, Target: target, Reason: "not in the package's supported platforms"}
	}
	if target.MinVersion.IsZero() {
		target = declared
	}

	var matches []*Slice
	for _, s := range r.artifact.slices {
		if s.Matches(target) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &UnsupportedPlatformError{Artifact: r.artifact.Name, Target: target, Reason: "no slice matches"}
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, s := range matches {
			ids[i] = s.ID
		}
		return nil, &AmbiguousSliceError{Artifact: r.artifact.Name, Targets: []platform.Target{target}, Slices: ids}
	}
}
