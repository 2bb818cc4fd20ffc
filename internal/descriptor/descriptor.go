// Package descriptor builds ModuleDescriptors: the published, immutable
// record of how a header surface binds to one slice of a binary artifact.
//
// Build validates every declaration against the slice symbol table and
// reports all offenders at once. Encoding is deterministic CBOR, so two
// builds from the same inputs produce the same bytes.
package descriptor

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/codec"
	"github.com/specialistvlad/nativebind/internal/dag"
	"github.com/specialistvlad/nativebind/internal/digest"
	"github.com/specialistvlad/nativebind/internal/platform"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// LinkKind says how consumers link the binary.
type LinkKind string

const (
	LinkStatic    LinkKind = "static"
	LinkDynamic   LinkKind = "dynamic"
	LinkFramework LinkKind = "framework"
)

// LinkRequirement is what a consumer passes to its linker.
type LinkRequirement struct {
	Kind    LinkKind `json:"kind" yaml:"kind" cbor:"kind"`
	Library string   `json:"library" yaml:"library" cbor:"library"`
	Path    string   `json:"path" yaml:"path" cbor:"path"`
}

// LinkFor derives the link requirement from the slice's library path.
func LinkFor(art *artifact.BinaryArtifact, s *artifact.Slice) LinkRequirement {
	req := LinkRequirement{Library: art.Name, Path: s.LibraryPath}
	for dir := s.LibraryPath; dir != "." && dir != "/" && dir != ""; dir = path.Dir(dir) {
		if strings.HasSuffix(dir, ".framework") {
			req.Kind = LinkFramework
			req.Library = strings.TrimSuffix(path.Base(dir), ".framework")
			return req
		}
	}
	switch strings.ToLower(path.Ext(s.LibraryPath)) {
	case ".a", ".lib":
		req.Kind = LinkStatic
	default:
		req.Kind = LinkDynamic
	}
	return req
}

// PublicSymbol is one exported symbol of a published module.
type PublicSymbol struct {
	Name      string `json:"name" yaml:"name" cbor:"name"`
	LinkName  string `json:"link_name" yaml:"link_name" cbor:"link_name"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty" cbor:"signature,omitempty"`
	Adapter   bool   `json:"adapter,omitempty" yaml:"adapter,omitempty" cbor:"adapter,omitempty"`
}

// Descriptor is a ModuleDescriptor. Values returned by Build and Cache
// are shared and must not be modified. Unchecked lists link names whose
// signature was missing on either side, so only their presence was
// validated.
type Descriptor struct {
	Name              string          `json:"name" yaml:"name" cbor:"name"`
	Package           string          `json:"package" yaml:"package" cbor:"package"`
	Strategy          string          `json:"strategy" yaml:"strategy" cbor:"strategy"`
	SchemaVersion     int             `json:"schema_version" yaml:"schema_version" cbor:"schema_version"`
	Target            platform.Target `json:"target" yaml:"target" cbor:"target"`
	SliceID           string          `json:"slice" yaml:"slice" cbor:"slice"`
	ArtifactIdentity  digest.Hash     `json:"artifact_identity" yaml:"artifact_identity" cbor:"artifact_identity"`
	SurfaceHash       digest.Hash     `json:"surface_hash" yaml:"surface_hash" cbor:"surface_hash"`
	Dependencies      []string        `json:"dependencies" yaml:"dependencies" cbor:"dependencies"`
	HeaderSearchPaths []string        `json:"header_search_paths" yaml:"header_search_paths" cbor:"header_search_paths"`
	Namespace         string          `json:"namespace,omitempty" yaml:"namespace,omitempty" cbor:"namespace,omitempty"`
	PublicSymbols     []PublicSymbol  `json:"public_symbols" yaml:"public_symbols" cbor:"public_symbols"`
	Link              LinkRequirement `json:"link" yaml:"link" cbor:"link"`
	Compiled          bool            `json:"compiled" yaml:"compiled" cbor:"compiled"`
	Unchecked         []string        `json:"unchecked_signatures,omitempty" yaml:"unchecked_signatures,omitempty" cbor:"unchecked_signatures,omitempty"`
}

// Options carries what the wiring strategy decided for the module.
type Options struct {
	Module string
	// Node is the module's ID in Graph. It defaults to Module.
	Node          string
	Package       string
	Strategy      string
	SchemaVersion int
	Target        platform.Target
	// Graph holds the module's dependencies. The module must be a node in
	// it; a nil graph means the module has no dependencies.
	Graph             *dag.Graph
	HeaderSearchPaths []string
	Namespace         string
	Link              LinkRequirement
	Compiled          bool
}

// Validate checks every declaration of surf against the slice. Internal
// declarations are checked too: they are still linked, only not exported.
func Validate(module string, s *artifact.Slice, surf *surface.Surface) error {
	var offenders []Offender
	for _, d := range surf.Declarations() {
		sym, ok := s.Symbol(d.LinkName)
		if !ok {
			offenders = append(offenders, Offender{Name: d.Name, LinkName: d.LinkName})
			continue
		}
		if d.LinkSignature.IsZero() || sym.Signature.IsZero() {
			continue
		}
		if reason := d.LinkSignature.Mismatch(sym.Signature); reason != "" {
			offenders = append(offenders, Offender{Name: d.Name, LinkName: d.LinkName, Reason: reason})
		}
	}
	if len(offenders) > 0 {
		return &SymbolMismatchError{Module: module, Slice: s.ID, Offenders: offenders}
	}
	return nil
}

// unchecked returns the link names Validate could only check for presence.
func unchecked(s *artifact.Slice, surf *surface.Surface) []string {
	var out []string
	for _, d := range surf.Declarations() {
		sym, ok := s.Symbol(d.LinkName)
		if ok && (d.LinkSignature.IsZero() || sym.Signature.IsZero()) {
			out = append(out, d.LinkName)
		}
	}
	sort.Strings(out)
	return out
}

// Build validates surf against the slice and assembles the descriptor.
func Build(art *artifact.BinaryArtifact, s *artifact.Slice, surf *surface.Surface, opts Options) (*Descriptor, error) {
	if opts.Module == "" {
		return nil, fmt.Errorf("descriptor: module name is required")
	}
	if err := Validate(opts.Module, s, surf); err != nil {
		return nil, err
	}

	deps := []string{}
	if opts.Graph != nil {
		root := opts.Node
		if root == "" {
			root = opts.Module
		}
		order, err := opts.Graph.LinkOrder(root)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", opts.Module, err)
		}
		deps = order
	}

	public := surf.Public()
	symbols := make([]PublicSymbol, len(public))
	for i, d := range public {
		symbols[i] = PublicSymbol{
			Name:      d.Name,
			LinkName:  d.LinkName,
			Signature: d.Signature.Canonical(),
			Adapter:   d.Adapter,
		}
	}

	paths := append([]string{}, opts.HeaderSearchPaths...)
	sort.Strings(paths)
	paths = compactStrings(paths)

	link := opts.Link
	if link.Library == "" {
		link = LinkFor(art, s)
	}

	return &Descriptor{
		Name:              opts.Module,
		Package:           opts.Package,
		Strategy:          opts.Strategy,
		SchemaVersion:     opts.SchemaVersion,
		Target:            opts.Target,
		SliceID:           s.ID,
		ArtifactIdentity:  art.Identity(),
		SurfaceHash:       surf.Hash(),
		Dependencies:      deps,
		HeaderSearchPaths: paths,
		Namespace:         opts.Namespace,
		PublicSymbols:     symbols,
		Link:              link,
		Compiled:          opts.Compiled,
		Unchecked:         unchecked(s, surf),
	}, nil
}

func compactStrings(in []string) []string {
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}

// Symbols returns the exported names in order.
func (d *Descriptor) Symbols() []string {
	out := make([]string, len(d.PublicSymbols))
	for i, s := range d.PublicSymbols {
		out[i] = s.Name
	}
	return out
}

// Encode returns the deterministic CBOR encoding of d.
func (d *Descriptor) Encode() ([]byte, error) {
	return codec.Marshal(d)
}

// Diagnose renders the encoded descriptor in CBOR diagnostic notation, the
// exact bytes that are fingerprinted.
func (d *Descriptor) Diagnose() (string, error) {
	data, err := d.Encode()
	if err != nil {
		return "", err
	}
	return codec.Diagnose(data)
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := codec.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding descriptor: %w", err)
	}
	return &d, nil
}

// Fingerprint hashes the encoded descriptor.
func (d *Descriptor) Fingerprint() (digest.Hash, error) {
	return digest.Of(digest.DescriptorDomain, d)
}
