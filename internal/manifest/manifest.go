package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/nativebind/internal/platform"
	"github.com/specialistvlad/nativebind/internal/shim"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// Manifest is the unified, format-agnostic representation of a package
// manifest.
type Manifest struct {
	// Schema is the schema version exactly as declared. It is kept raw so
	// the resolver can tell an unparseable version from a newer one.
	Schema    string
	Package   string
	Platforms []Platform
	Targets   []platform.Target
	Binaries  []*Binary
	Modules   []*Module
	Products  []*Product
	// Dir is the directory relative binary paths are resolved against: the
	// directory of the file declaring the package.
	Dir string
}

// Platform is a package-level minimum OS version.
type Platform struct {
	OS         platform.OS
	MinVersion platform.Version
}

// Binary is a prebuilt artifact container referenced by modules.
type Binary struct {
	Name string
	Path string
}

// Module is one importable unit wired to a binary by a strategy.
type Module struct {
	Name   string
	Binary string
	// Strategy is the declared keyword. Lookup turns it into a
	// WiringStrategy; unknown keywords are judged by the resolver.
	Strategy     string
	Headers      []string
	Links        []string
	DependsOn    []string
	Declarations []surface.Declaration
	Shim         *Shim
}

// Shim configures the shim target of a module.
type Shim struct {
	shim.Spec
	// Include is the header directory the shim publishes.
	Include string
}

// Product is a named library product grouping modules.
type Product struct {
	Name    string
	Modules []string
}

// ParseSchema parses a schema version such as "3" or "v3".
func ParseSchema(raw string) (int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("schema version %q is not a positive integer", raw)
	}
	return n, nil
}

// Binary looks up a binary by name.
func (m *Manifest) Binary(name string) (*Binary, bool) {
	for _, b := range m.Binaries {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Module looks up a module by name.
func (m *Manifest) Module(name string) (*Module, bool) {
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return nil, false
}

// BinaryPath returns the container path of b, resolved against Dir. Loaders
// keep paths as written so this is the only place they are joined.
func (m *Manifest) BinaryPath(b *Binary) string {
	if filepath.IsAbs(b.Path) || m.Dir == "" {
		return b.Path
	}
	return filepath.Join(m.Dir, b.Path)
}

// floorOS is the platform entry that governs t. Catalyst builds are
// governed by the maccatalyst floor whatever OS family they name.
func floorOS(t platform.Target) platform.OS {
	if t.Variant == platform.Catalyst {
		return platform.MacCatalyst
	}
	return t.OS
}

// EffectiveTargets returns the declared targets with unset minimum versions
// raised to the package floor.
func (m *Manifest) EffectiveTargets() []platform.Target {
	floors := make(map[platform.OS]platform.Version, len(m.Platforms))
	for _, p := range m.Platforms {
		floors[p.OS] = p.MinVersion
	}
	out := make([]platform.Target, len(m.Targets))
	for i, t := range m.Targets {
		if t.MinVersion.IsZero() {
			t.MinVersion = floors[floorOS(t)]
		}
		out[i] = t
	}
	return out
}

// EffectiveProducts returns the declared products plus an implicit product
// for every module no product lists, sorted by name.
func (m *Manifest) EffectiveProducts() []*Product {
	listed := make(map[string]struct{})
	out := make([]*Product, 0, len(m.Products))
	for _, p := range m.Products {
		out = append(out, p)
		for _, name := range p.Modules {
			listed[name] = struct{}{}
		}
	}
	for _, mod := range m.Modules {
		if _, ok := listed[mod.Name]; !ok {
			out = append(out, &Product{Name: mod.Name, Modules: []string{mod.Name}})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks the structure of the manifest: names, references between
// blocks and targets against the package's platform floors. It does not
// judge strategies or the schema version; that is the resolver's job.
// All problems are reported together.
func (m *Manifest) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if m.Package == "" {
		add("package name is required")
	}
	if len(m.Targets) == 0 {
		add("package %q declares no targets", m.Package)
	}

	floors := make(map[platform.OS]platform.Version, len(m.Platforms))
	for _, p := range m.Platforms {
		if _, dup := floors[p.OS]; dup {
			add("platform %s is declared twice", p.OS)
		}
		if !p.OS.Valid() {
			add("platform %q is not a known OS family", p.OS)
		}
		floors[p.OS] = p.MinVersion
	}
	seenTargets := make(map[string]struct{}, len(m.Targets))
	for _, t := range m.Targets {
		if _, dup := seenTargets[t.Key()]; dup {
			add("target %s is declared twice", t.Key())
		}
		seenTargets[t.Key()] = struct{}{}
		if len(floors) == 0 {
			continue
		}
		floor, ok := floors[floorOS(t)]
		if !ok {
			add("target %s: platform %s is not supported by the package", t, floorOS(t))
			continue
		}
		if !t.MinVersion.IsZero() && t.MinVersion.Compare(floor) < 0 {
			add("target %s: minimum version is below the %s floor %s", t, floorOS(t), floor)
		}
	}

	binaries := make(map[string]struct{}, len(m.Binaries))
	for _, b := range m.Binaries {
		if b.Name == "" {
			add("binary with empty name")
			continue
		}
		if _, dup := binaries[b.Name]; dup {
			add("binary %q is declared twice", b.Name)
		}
		binaries[b.Name] = struct{}{}
		if b.Path == "" {
			add("binary %q has no path", b.Name)
		}
	}

	modules := make(map[string]struct{}, len(m.Modules))
	for _, mod := range m.Modules {
		if _, dup := modules[mod.Name]; dup {
			add("module %q is declared twice", mod.Name)
		}
		modules[mod.Name] = struct{}{}
	}
	for _, mod := range m.Modules {
		if mod.Name == "" {
			add("module with empty name")
			continue
		}
		if _, ok := binaries[mod.Binary]; !ok {
			add("module %q references unknown binary %q", mod.Name, mod.Binary)
		}
		if mod.Strategy == "" {
			add("module %q declares no strategy", mod.Name)
		}
		if len(mod.Declarations) == 0 {
			add("module %q declares no symbols", mod.Name)
		}
		for _, dep := range mod.DependsOn {
			if _, ok := modules[dep]; !ok {
				add("module %q depends on unknown module %q", mod.Name, dep)
			}
		}
	}
	if len(m.Modules) == 0 {
		add("package %q declares no modules", m.Package)
	}

	products := make(map[string]struct{}, len(m.Products))
	for _, p := range m.Products {
		if _, dup := products[p.Name]; dup {
			add("product %q is declared twice", p.Name)
		}
		products[p.Name] = struct{}{}
		if len(p.Modules) == 0 {
			add("product %q lists no modules", p.Name)
		}
		for _, name := range p.Modules {
			if _, ok := modules[name]; !ok {
				add("product %q references unknown module %q", p.Name, name)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid manifest: %w", errors.Join(errs...))
	}
	return nil
}
