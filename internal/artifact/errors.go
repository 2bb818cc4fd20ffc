package artifact

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/nativebind/internal/platform"
)

// UnsupportedPlatformError reports a target no slice can serve, or a target
// outside the package's supported-platform list.
type UnsupportedPlatformError struct {
	Artifact string
	Target   platform.Target
	Reason   string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("artifact %q: unsupported platform %s: %s", e.Artifact, e.Target, e.Reason)
}

// AmbiguousSliceError is a packaging misconfiguration: a target is claimed
// by more than one slice, or one slice that does not declare its variant is
// claimed by targets that differ only by variant. It is never auto-resolved.
type AmbiguousSliceError struct {
	Artifact string
	Targets  []platform.Target
	Slices   []string
}

func (e *AmbiguousSliceError) Error() string {
	targets := make([]string, len(e.Targets))
	for i, t := range e.Targets {
		targets[i] = t.String()
	}
	if len(e.Slices) == 1 {
		return fmt.Sprintf("artifact %q: ambiguous slice %q: it does not declare a variant but is selected by %s",
			e.Artifact, e.Slices[0], strings.Join(targets, " and "))
	}
	return fmt.Sprintf("artifact %q: ambiguous slices for %s: %s all match",
		e.Artifact, strings.Join(targets, ", "), strings.Join(e.Slices, ", "))
}
