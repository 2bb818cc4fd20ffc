// Package resolver turns a manifest into a publication. It judges the
// manifest's schema, wires each module with its strategy, loads every
// binary once and then resolves the declared targets in parallel, each
// through the Unresolved, ArtifactSelected, SurfaceValidated and Published
// states. Publication is atomic: one failed target fails the build.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/dag"
	"github.com/specialistvlad/nativebind/internal/descriptor"
	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/platform"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// DefaultWorkers bounds how many targets resolve at once.
const DefaultWorkers = 4

// Opener reads a binary container.
type Opener func(path string) (*artifact.BinaryArtifact, error)

// Prober confirms that a slice's library really exports the named symbols.
// Implementations skip slices the host cannot load.
type Prober interface {
	Probe(ctx context.Context, art *artifact.BinaryArtifact, s *artifact.Slice, symbols []string) error
}

// Resolver resolves manifests. It is safe for concurrent use; a shared
// descriptor cache makes repeated resolutions cheap.
type Resolver struct {
	workers int
	open    Opener
	cache   *descriptor.Cache
	probe   Prober
	only    []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWorkers sets the number of targets resolved in parallel.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithOpener replaces artifact.Open, mostly for tests.
func WithOpener(open Opener) Option {
	return func(r *Resolver) { r.open = open }
}

// WithCache shares a descriptor cache between resolvers.
func WithCache(c *descriptor.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithProber enables symbol probing of host-loadable slices.
func WithProber(p Prober) Option {
	return func(r *Resolver) { r.probe = p }
}

// WithTargets restricts resolution to the declared targets with these keys
// (os-arch[-variant]).
func WithTargets(keys ...string) Option {
	return func(r *Resolver) { r.only = keys }
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		workers: DefaultWorkers,
		open:    artifact.Open,
		cache:   descriptor.NewCache(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the resolver's descriptor cache.
func (r *Resolver) Cache() *descriptor.Cache { return r.cache }

// wired is a module after its strategy ran.
type wired struct {
	module *manifest.Module
	plan   *manifest.Plan
}

// Resolve produces the publication for m, or an error and nothing.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest) (*Publication, error) {
	ctx = ctxlog.With(ctx, "package", m.Package)
	logger := ctxlog.FromContext(ctx)

	version, strategies, err := checkSchema(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.CheckStrategies(); err != nil {
		return nil, err
	}

	targets, err := r.selectTargets(m)
	if err != nil {
		return nil, err
	}

	graph := dag.New()
	modules := make([]wired, 0, len(m.Modules))
	for _, mod := range m.Modules {
		surf, err := surface.New(mod.Declarations...)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", mod.Name, err)
		}
		plan, err := strategies[mod.Name].Wire(manifest.Input{Module: mod, Surface: surf, Graph: graph})
		if err != nil {
			return nil, err
		}
		modules = append(modules, wired{module: mod, plan: plan})
	}
	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}

	registries, err := r.loadBinaries(ctx, m)
	if err != nil {
		return nil, err
	}
	logger.Debug("Resolution planned.", "schema", version, "modules", len(modules), "targets", len(targets))

	builds := make([]*build, len(targets))
	for i, t := range targets {
		builds[i] = newBuild(t)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, b := range builds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.resolveTarget(gctx, b, m, version, modules, registries, graph)
		})
	}
	// Failures are recorded on the builds; commit reports all of them.
	_ = g.Wait()

	if err := commit(builds); err != nil {
		logger.Error("Resolution failed; nothing is published.", "error", err)
		return nil, err
	}

	pub, err := assemble(m, version, modules, builds)
	if err != nil {
		return nil, err
	}
	logger.Info("Package resolved.", "modules", len(pub.Modules), "targets", len(targets))
	return pub, nil
}

// selectTargets applies the target filter to the effective targets.
func (r *Resolver) selectTargets(m *manifest.Manifest) ([]platform.Target, error) {
	all := m.EffectiveTargets()
	if len(r.only) == 0 {
		return all, nil
	}
	byKey := make(map[string]platform.Target, len(all))
	for _, t := range all {
		byKey[t.Key()] = t
	}
	var out []platform.Target
	for _, key := range r.only {
		t, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("target %s is not declared by package %s", key, m.Package)
		}
		out = append(out, t)
	}
	return out, nil
}

// loadBinaries opens every referenced binary once and validates it against
// every declared target, whatever the target filter selects. The artifacts
// are immutable and shared by all targets.
func (r *Resolver) loadBinaries(ctx context.Context, m *manifest.Manifest) (map[string]*artifact.Registry, error) {
	targets := m.EffectiveTargets()
	logger := ctxlog.FromContext(ctx)
	registries := make(map[string]*artifact.Registry)
	var errs []error
	for _, mod := range m.Modules {
		if _, done := registries[mod.Binary]; done {
			continue
		}
		b, _ := m.Binary(mod.Binary)
		art, err := r.open(m.BinaryPath(b))
		if err != nil {
			errs = append(errs, fmt.Errorf("binary %s: %w", b.Name, err))
			registries[mod.Binary] = nil
			continue
		}
		reg, err := artifact.NewRegistry(art, targets)
		if err != nil {
			errs = append(errs, err)
			registries[mod.Binary] = nil
			continue
		}
		logger.Debug("Binary loaded.", "binary", b.Name, "identity", art.Identity().Short(), "slices", len(art.Slices()))
		registries[mod.Binary] = reg
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return registries, nil
}

// resolveTarget drives one target through its states. It returns the
// failure so the group stops scheduling further targets.
func (r *Resolver) resolveTarget(
	ctx context.Context,
	b *build,
	m *manifest.Manifest,
	version int,
	modules []wired,
	registries map[string]*artifact.Registry,
	graph *dag.Graph,
) error {
	ctx = ctxlog.With(ctx, "target", b.target.String())
	logger := ctxlog.FromContext(ctx)

	if err := ctx.Err(); err != nil {
		return b.fail(err)
	}

	binaries := make([]string, 0, len(registries))
	for name := range registries {
		binaries = append(binaries, name)
	}
	sort.Strings(binaries)
	for _, name := range binaries {
		s, err := registries[name].Resolve(b.target)
		if err != nil {
			return b.fail(err)
		}
		b.slices[name] = s
	}
	if err := b.advance(ArtifactSelected); err != nil {
		return b.fail(err)
	}
	logger.Debug("Slices selected.", "count", len(b.slices))

	for _, w := range modules {
		reg := registries[w.module.Binary]
		s := b.slices[w.module.Binary]
		d, err := r.cache.Build(reg.Artifact(), s, w.plan.Surface, descriptor.Options{
			Module:            w.module.Name,
			Node:              w.plan.Node,
			Package:           m.Package,
			Strategy:          string(w.plan.Strategy),
			SchemaVersion:     version,
			Target:            b.target,
			Graph:             graph,
			HeaderSearchPaths: w.plan.HeaderSearchPaths,
			Namespace:         w.plan.Namespace,
			Compiled:          w.plan.Compiled,
		})
		if err != nil {
			return b.fail(err)
		}
		if logger.Enabled(ctx, slog.LevelDebug) {
			if diag, err := d.Diagnose(); err == nil {
				logger.Debug("Descriptor built.", "module", d.Name, "encoding", diag)
			}
		}
		if len(d.Unchecked) > 0 {
			logger.Debug("Signature check skipped, only presence validated.", "module", d.Name, "symbols", d.Unchecked)
		}
		if r.probe != nil {
			links := make([]string, 0, w.plan.Surface.Len())
			for _, decl := range w.plan.Surface.Declarations() {
				links = append(links, decl.LinkName)
			}
			if err := r.probe.Probe(ctx, reg.Artifact(), s, links); err != nil {
				return b.fail(err)
			}
		}
		b.descriptors = append(b.descriptors, d)
	}
	if err := b.advance(SurfaceValidated); err != nil {
		return b.fail(err)
	}
	logger.Debug("Surfaces validated.", "descriptors", len(b.descriptors))
	return nil
}

// commit publishes every build or none. Builds that never started or were
// validated while another target failed end up Failed as well.
func commit(builds []*build) error {
	var errs, canceled []error
	for _, b := range builds {
		switch {
		case b.state != Failed:
		case errors.Is(b.reason.Err, context.Canceled):
			canceled = append(canceled, b.Err())
		default:
			errs = append(errs, b.Err())
		}
	}
	if len(errs) == 0 {
		errs = canceled
	}
	if len(errs) > 0 {
		for _, b := range builds {
			if !b.state.Terminal() {
				_ = b.fail(errAborted)
			}
		}
		return errors.Join(errs...)
	}
	for _, b := range builds {
		if err := b.advance(Published); err != nil {
			return err
		}
	}
	return nil
}

// assemble groups the published descriptors by module and product.
func assemble(m *manifest.Manifest, version int, modules []wired, builds []*build) (*Publication, error) {
	pub := &Publication{
		Package:       m.Package,
		SchemaVersion: version,
		Fingerprints:  make(map[string]string),
	}
	for _, p := range m.EffectiveProducts() {
		names := append([]string{}, p.Modules...)
		pub.Products = append(pub.Products, ProductEntry{Name: p.Name, Modules: names})
	}
	for i, w := range modules {
		entry := ModuleEntry{Name: w.module.Name, Strategy: string(w.plan.Strategy)}
		for _, b := range builds {
			d := b.descriptors[i]
			fp, err := d.Fingerprint()
			if err != nil {
				return nil, err
			}
			pub.Fingerprints[w.module.Name+"/"+b.target.Key()] = fp.String()
			entry.Descriptors = append(entry.Descriptors, d)
		}
		pub.Modules = append(pub.Modules, entry)
	}
	return pub, nil
}
