package manifest

import (
	"fmt"
	"path"
	"sort"

	"github.com/specialistvlad/nativebind/internal/dag"
	"github.com/specialistvlad/nativebind/internal/nodeid"
	"github.com/specialistvlad/nativebind/internal/shim"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// Kind is the keyword a manifest uses to select a wiring strategy.
type Kind string

const (
	KindDirectLink        Kind = "direct-link"
	KindShimWithHeaders   Kind = "shim-with-public-headers"
	KindSystemLibraryShim Kind = "system-library-shim"
	KindGlueTarget        Kind = "glue-target"
)

// CurrentSchema is the newest schema version this build understands.
// Strategies are only ever added with a new version; older versions keep
// their meaning.
const CurrentSchema = 4

// WiringStrategy connects a binary to a module surface. The set of
// strategies is closed: every implementation lives in this package.
type WiringStrategy interface {
	Kind() Kind
	// Since is the schema version that introduced the strategy.
	Since() int
	// Wire adds the module's nodes to the dependency graph and derives the
	// surface the module publishes.
	Wire(in Input) (*Plan, error)

	sealed()
}

// Input is what a strategy needs to wire one module.
type Input struct {
	Module *Module
	// Surface is the module's declarations as written, before any shim.
	Surface *surface.Surface
	Graph   *dag.Graph
}

// Plan is a wired module, ready to be validated against each target's slice.
type Plan struct {
	Strategy Kind
	// Node is the module's ID in the dependency graph.
	Node              string
	Surface           *surface.Surface
	HeaderSearchPaths []string
	Namespace         string
	Compiled          bool
}

var strategies = map[Kind]WiringStrategy{
	KindDirectLink:        DirectLink{},
	KindShimWithHeaders:   ShimWithHeaders{},
	KindSystemLibraryShim: SystemLibraryShim{},
	KindGlueTarget:        GlueTarget{},
}

// Lookup returns the strategy for a keyword.
func Lookup(keyword string) (WiringStrategy, bool) {
	s, ok := strategies[Kind(keyword)]
	return s, ok
}

// Kinds lists every known strategy in schema order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(strategies))
	for k := range strategies {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strategies[out[i]], strategies[out[j]]
		if a.Since() != b.Since() {
			return a.Since() < b.Since()
		}
		return out[i] < out[j]
	})
	return out
}

// NodeID names a graph node. Binaries, modules and shims live in separate
// namespaces so a module may share its binary's name.
func NodeID(kind dag.Kind, name string) string {
	return (&nodeid.Address{Kind: kind, Name: name}).String()
}

func addNode(g *dag.Graph, kind dag.Kind, name string) (string, error) {
	addr, err := nodeid.New(kind, name)
	if err != nil {
		return "", err
	}
	id := addr.String()
	if !g.AddNode(id, kind) {
		return "", fmt.Errorf("graph node %s is already registered with another kind", id)
	}
	return id, nil
}

// link adds the module node with edges from its binary, its system
// libraries and the modules it depends on, plus any extra dependencies.
func link(in Input, extra ...string) (string, error) {
	g, m := in.Graph, in.Module
	node, err := addNode(g, dag.KindModule, m.Name)
	if err != nil {
		return "", err
	}
	bin, err := addNode(g, dag.KindBinary, m.Binary)
	if err != nil {
		return "", err
	}
	deps := append([]string{bin}, extra...)
	for _, lib := range m.Links {
		id, err := addNode(g, dag.KindSystem, lib)
		if err != nil {
			return "", err
		}
		deps = append(deps, id)
	}
	for _, other := range m.DependsOn {
		id, err := addNode(g, dag.KindModule, other)
		if err != nil {
			return "", err
		}
		deps = append(deps, id)
	}
	for _, dep := range deps {
		if err := g.AddEdge(dep, node); err != nil {
			return "", fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	return node, nil
}

// shimTarget adds the binary and shim nodes with the shim depending on the
// binary, and returns the shim ID and its published header directory.
func shimTarget(in Input) (string, string, error) {
	m := in.Module
	name := m.Shim.Name
	if name == "" {
		name = m.Name + "Shim"
	}
	bin, err := addNode(in.Graph, dag.KindBinary, m.Binary)
	if err != nil {
		return "", "", err
	}
	id, err := addNode(in.Graph, dag.KindShim, name)
	if err != nil {
		return "", "", err
	}
	if err := in.Graph.AddEdge(bin, id); err != nil {
		return "", "", fmt.Errorf("module %s: %w", m.Name, err)
	}
	include := m.Shim.Include
	if include == "" {
		include = path.Join("Sources", name, "include")
	}
	return id, include, nil
}

func headers(m *Module, extra ...string) []string {
	return append(append([]string{}, m.Headers...), extra...)
}

// DirectLink links the binary straight into consumers. The declarations
// are published exactly as written.
type DirectLink struct{}

func (DirectLink) Kind() Kind { return KindDirectLink }
func (DirectLink) Since() int { return 1 }
func (DirectLink) sealed() {}

func (s DirectLink) Wire(in Input) (*Plan, error) {
	if in.Module.Shim != nil {
		return nil, fmt.Errorf("module %s: %s takes no shim", in.Module.Name, s.Kind())
	}
	node, err := link(in)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Strategy:          s.Kind(),
		Node:              node,
		Surface:           in.Surface,
		HeaderSearchPaths: headers(in.Module),
	}, nil
}

// ShimWithHeaders puts a small compiled shim between the binary and its
// consumers. The shim publishes its own header directory and may rename
// or hide symbols, but not adapt them.
type ShimWithHeaders struct{}

func (ShimWithHeaders) Kind() Kind { return KindShimWithHeaders }
func (ShimWithHeaders) Since() int { return 2 }
func (ShimWithHeaders) sealed() {}

func (s ShimWithHeaders) Wire(in Input) (*Plan, error) {
	m := in.Module
	if m.Shim == nil {
		return nil, fmt.Errorf("module %s: %s needs a shim block", m.Name, s.Kind())
	}
	if len(m.Shim.Adapters) > 0 {
		return nil, fmt.Errorf("module %s: adapters change calling semantics and need %s", m.Name, KindGlueTarget)
	}
	surf, err := shim.Apply(in.Surface, m.Shim.Spec)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", m.Name, err)
	}
	shimID, include, err := shimTarget(in)
	if err != nil {
		return nil, err
	}
	node, err := link(in, shimID)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Strategy:          s.Kind(),
		Node:              node,
		Surface:           surf,
		HeaderSearchPaths: headers(m, include),
		Namespace:         m.Shim.Prefix,
		Compiled:          true,
	}, nil
}

// SystemLibraryShim provides header and module declarations without
// compiled code, paired with the binary purely for linkage. Without code
// nothing can be renamed; the shim may only hide declarations.
type SystemLibraryShim struct{}

func (SystemLibraryShim) Kind() Kind { return KindSystemLibraryShim }
func (SystemLibraryShim) Since() int { return 3 }
func (SystemLibraryShim) sealed() {}

func (s SystemLibraryShim) Wire(in Input) (*Plan, error) {
	m := in.Module
	surf := in.Surface
	if m.Shim != nil {
		if len(m.Shim.Renames) > 0 || m.Shim.Prefix != "" || len(m.Shim.Adapters) > 0 {
			return nil, fmt.Errorf("module %s: %s has no compiled code and can only hide symbols", m.Name, s.Kind())
		}
		var err error
		if surf, err = shim.Apply(surf, m.Shim.Spec); err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
	}
	node, err := link(in)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Strategy:          s.Kind(),
		Node:              node,
		Surface:           surf,
		HeaderSearchPaths: headers(m),
	}, nil
}

// GlueTarget is a hand-authored translation layer that depends on both the
// binary and a header-only shim. It is the only strategy that may adapt
// signatures, since it compiles code of its own.
type GlueTarget struct{}

func (GlueTarget) Kind() Kind { return KindGlueTarget }
func (GlueTarget) Since() int { return 4 }
func (GlueTarget) sealed() {}

func (s GlueTarget) Wire(in Input) (*Plan, error) {
	m := in.Module
	if m.Shim == nil {
		return nil, fmt.Errorf("module %s: %s needs a header-only shim block", m.Name, s.Kind())
	}
	surf, err := shim.Apply(in.Surface, m.Shim.Spec)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", m.Name, err)
	}
	shimID, include, err := shimTarget(in)
	if err != nil {
		return nil, err
	}
	node, err := link(in, shimID)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Strategy:          s.Kind(),
		Node:              node,
		Surface:           surf,
		HeaderSearchPaths: headers(m, include),
		Namespace:         m.Shim.Prefix,
		Compiled:          true,
	}, nil
}
