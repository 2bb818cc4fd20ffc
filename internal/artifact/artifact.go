// Package artifact owns prebuilt binary artifacts and the registry that
// picks exactly one slice of an artifact for a platform target.
//
// A BinaryArtifact is read once per build from its container metadata and
// is immutable afterwards, so every per-target resolution of a build can
// share it without locking.
package artifact

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/digest"
	"github.com/specialistvlad/nativebind/internal/platform"
)

// Slice is one platform-specific binary inside an artifact container. More
// than one architecture means a fat binary.
type Slice struct {
	ID      string
	OS      platform.OS
	Archs   []platform.Arch
	Variant platform.Variant
	// VariantKnown is false when the metadata does not say whether the slice
	// is a device or simulator build. Such a slice matches any variant.
	VariantKnown bool
	MinOSVersion platform.Version
	MaxOSVersion platform.Version
	LibraryPath  string
	symbols      map[string]abi.Symbol
	symbolOrder  []string
}

// Symbol looks up a symbol in the slice's table.
func (s *Slice) Symbol(name string) (abi.Symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// Symbols returns the symbol table sorted by name.
func (s *Slice) Symbols() []abi.Symbol {
	out := make([]abi.Symbol, 0, len(s.symbolOrder))
	for _, name := range s.symbolOrder {
		out = append(out, s.symbols[name])
	}
	return out
}

// SupportsArch reports whether the slice contains code for arch.
func (s *Slice) SupportsArch(arch platform.Arch) bool {
	return slices.Contains(s.Archs, arch)
}

// Matches reports whether the slice can serve target. An unset target
// version matches any slice version range.
func (s *Slice) Matches(target platform.Target) bool {
	if s.OS != target.OS || !s.SupportsArch(target.Arch) {
		return false
	}
	if s.VariantKnown && s.Variant != target.Variant {
		return false
	}
	if target.MinVersion.IsZero() {
		return true
	}
	if !s.MinOSVersion.IsZero() && s.MinOSVersion.Compare(target.MinVersion) > 0 {
		return false
	}
	if !s.MaxOSVersion.IsZero() && s.MaxOSVersion.Compare(target.MinVersion) < 0 {
		return false
	}
	return true
}

// BinaryArtifact is an immutable prebuilt library with its slices.
type BinaryArtifact struct {
	Name       string
	Path       string
	ABIVersion string
	identity   digest.Hash
	slices     []*Slice
}

// Identity is the BLAKE3 identity of the artifact's metadata. Two
// artifacts with the same identity publish the same descriptors.
func (a *BinaryArtifact) Identity() digest.Hash { return a.identity }

// Slices returns the artifact's slices in identifier order.
func (a *BinaryArtifact) Slices() []*Slice { return slices.Clone(a.slices) }

// SliceSpec is the mutable input used to construct a Slice.
type SliceSpec struct {
	ID           string
	OS           platform.OS
	Archs        []platform.Arch
	Variant      *platform.Variant
	MinOSVersion platform.Version
	MaxOSVersion platform.Version
	LibraryPath  string
	Symbols      []abi.Symbol
}

// identityView is what the identity hash covers.
type identityView struct {
	Name       string      `cbor:"name"`
	ABIVersion string      `cbor:"abi"`
	Slices     []sliceView `cbor:"slices"`
}

type sliceView struct {
	ID      string            `cbor:"id"`
	OS      string            `cbor:"os"`
	Archs   []string          `cbor:"archs"`
	Variant string            `cbor:"variant"`
	Known   bool              `cbor:"variant_known"`
	Min     string            `cbor:"min"`
	Max     string            `cbor:"max"`
	Library string            `cbor:"library"`
	Symbols map[string]string `cbor:"symbols"`
}

// New validates the specs and builds an immutable artifact. Every problem
// is reported, not only the first.
func New(name, path, abiVersion string, specs ...SliceSpec) (*BinaryArtifact, error) {
	if name == "" {
		return nil, fmt.Errorf("artifact: name is required")
	}

	var problems []string
	seen := make(map[string]struct{}, len(specs))
	art := &BinaryArtifact{Name: name, Path: path, ABIVersion: abiVersion}
	view := identityView{Name: name, ABIVersion: abiVersion}

	for i, spec := range specs {
		if spec.ID == "" {
			problems = append(problems, fmt.Sprintf("slice %d: identifier is required", i))
			continue
		}
		if _, dup := seen[spec.ID]; dup {
			problems = append(problems, fmt.Sprintf("slice %q: declared more than once", spec.ID))
			continue
		}
		seen[spec.ID] = struct{}{}
		if spec.OS == "" || len(spec.Archs) == 0 {
			problems = append(problems, fmt.Sprintf("slice %q: platform and at least one architecture are required", spec.ID))
			continue
		}
		if !spec.OS.Valid() {
			problems = append(problems, fmt.Sprintf("slice %q: unknown platform %q", spec.ID, spec.OS))
			continue
		}
		if bad := slices.IndexFunc(spec.Archs, func(a platform.Arch) bool { return !a.Valid() }); bad >= 0 {
			problems = append(problems, fmt.Sprintf("slice %q: unknown architecture %q", spec.ID, spec.Archs[bad]))
			continue
		}
		if !spec.MinOSVersion.IsZero() && !spec.MaxOSVersion.IsZero() && spec.MinOSVersion.Compare(spec.MaxOSVersion) > 0 {
			problems = append(problems, fmt.Sprintf("slice %q: min OS version %s is above max %s", spec.ID, spec.MinOSVersion, spec.MaxOSVersion))
			continue
		}

		s := &Slice{
			ID:           spec.ID,
			OS:           spec.OS,
			Archs:        slices.Clone(spec.Archs),
			MinOSVersion: spec.MinOSVersion,
			MaxOSVersion: spec.MaxOSVersion,
			LibraryPath:  spec.LibraryPath,
			symbols:      make(map[string]abi.Symbol, len(spec.Symbols)),
		}
		slices.Sort(s.Archs)
		if spec.Variant != nil {
			s.Variant = *spec.Variant
			s.VariantKnown = true
		}

		sv := sliceView{
			ID: s.ID, OS: string(s.OS), Variant: string(s.Variant), Known: s.VariantKnown,
			Min: s.MinOSVersion.String(), Max: s.MaxOSVersion.String(), Library: s.LibraryPath,
			Symbols: make(map[string]string, len(spec.Symbols)),
		}
		for _, a := range s.Archs {
			sv.Archs = append(sv.Archs, string(a))
		}
		for _, sym := range spec.Symbols {
			if sym.Name == "" {
				problems = append(problems, fmt.Sprintf("slice %q: symbol with empty name", spec.ID))
				continue
			}
			if _, dup := s.symbols[sym.Name]; dup {
				problems = append(problems, fmt.Sprintf("slice %q: symbol %q listed more than once", spec.ID, sym.Name))
				continue
			}
			s.symbols[sym.Name] = sym
			s.symbolOrder = append(s.symbolOrder, sym.Name)
			sv.Symbols[sym.Name] = sym.Signature.Canonical()
		}
		sort.Strings(s.symbolOrder)

		art.slices = append(art.slices, s)
		view.Slices = append(view.Slices, sv)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("artifact %q is invalid:\n- %s", name, strings.Join(problems, "\n- "))
	}

	sort.Slice(art.slices, func(i, j int) bool { return art.slices[i].ID < art.slices[j].ID })
	sort.Slice(view.Slices, func(i, j int) bool { return view.Slices[i].ID < view.Slices[j].ID })

	id, err := digest.Of(digest.ArtifactDomain, view)
	if err != nil {
		return nil, err
	}
	art.identity = id
	return art, nil
}
