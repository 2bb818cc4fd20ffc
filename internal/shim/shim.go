// Package shim implements the optional translation layer between a
// HeaderSurface and its consumers. A shim renames symbols and restricts
// their visibility; it never changes how a symbol is called. Changing a
// signature is a separate, explicitly flagged Adapt operation.
package shim

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// ErrUnknownSymbol is returned when a shim operation names a symbol the
// surface does not declare.
var ErrUnknownSymbol = errors.New("shim: unknown symbol")

// RenameTable maps a currently exposed name to its new name.
type RenameTable map[string]string

// DuplicateMappingError reports a rename table that is not injective, or
// one that renames a symbol onto a name another declaration keeps.
type DuplicateMappingError struct {
	// Collisions maps each contested new name to the old names claiming it.
	Collisions map[string][]string
}

func (e *DuplicateMappingError) Error() string {
	names := make([]string, 0, len(e.Collisions))
	for n := range e.Collisions {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s <- {%s}", n, strings.Join(e.Collisions[n], ", "))
	}
	return "shim: duplicate mapping: " + strings.Join(parts, "; ")
}

// CheckInjective returns a DuplicateMappingError when two old names map to
// the same new name.
func (t RenameTable) CheckInjective() error {
	claims := make(map[string][]string, len(t))
	for old, nu := range t {
		claims[nu] = append(claims[nu], old)
	}
	collisions := make(map[string][]string)
	for nu, olds := range claims {
		if len(olds) > 1 {
			sort.Strings(olds)
			collisions[nu] = olds
		}
	}
	if len(collisions) > 0 {
		return &DuplicateMappingError{Collisions: collisions}
	}
	return nil
}

// Wrap returns a new surface with the table applied. Names are the only
// thing that changes; signatures, visibility and link names are kept.
func Wrap(s *surface.Surface, table RenameTable) (*surface.Surface, error) {
	if err := table.CheckInjective(); err != nil {
		return nil, err
	}

	var unknown []string
	for old, nu := range table {
		if _, ok := s.Lookup(old); !ok {
			unknown = append(unknown, old)
		}
		if nu == "" {
			return nil, fmt.Errorf("shim: rename of %s has an empty target", old)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, strings.Join(unknown, ", "))
	}

	decls := s.Declarations()
	final := make(map[string][]string, len(decls))
	for i, d := range decls {
		if nu, ok := table[d.Name]; ok {
			decls[i].Name = nu
		}
		final[decls[i].Name] = append(final[decls[i].Name], d.Name)
	}
	collisions := make(map[string][]string)
	for name, olds := range final {
		if len(olds) > 1 {
			sort.Strings(olds)
			collisions[name] = olds
		}
	}
	if len(collisions) > 0 {
		return nil, &DuplicateMappingError{Collisions: collisions}
	}

	renames := make(map[string]string)
	for _, d := range decls {
		if d.LinkName != d.Name {
			renames[d.LinkName] = d.Name
		}
	}
	return surface.Derive(decls, renames)
}

// Namespace derives a rename table that prefixes every public name not
// already carrying prefix. Internal declarations keep their names.
func Namespace(s *surface.Surface, prefix string) RenameTable {
	table := make(RenameTable)
	if prefix == "" {
		return table
	}
	for _, d := range s.Public() {
		if !strings.HasPrefix(d.Name, prefix) {
			table[d.Name] = prefix + d.Name
		}
	}
	return table
}

// Restrict marks the named declarations internal so the published module
// does not export them.
func Restrict(s *surface.Surface, names ...string) (*surface.Surface, error) {
	hide := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := s.Lookup(n); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, n)
		}
		hide[n] = struct{}{}
	}
	decls := s.Declarations()
	for i := range decls {
		if _, ok := hide[decls[i].Name]; ok {
			decls[i].Visibility = surface.Internal
		}
	}
	return surface.Derive(decls, s.Renames())
}

// Adapt exposes name with a different signature while validation keeps
// checking the binary against the original one. This is the only shim
// operation allowed to touch argument types and it flags the declaration
// as an adapter so consumers know glue code sits in between.
func Adapt(s *surface.Surface, name string, sig abi.Signature) (*surface.Surface, error) {
	if _, ok := s.Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, name)
	}
	if sig.IsZero() {
		return nil, fmt.Errorf("shim: adapter for %s needs a signature", name)
	}
	decls := s.Declarations()
	for i := range decls {
		if decls[i].Name == name {
			decls[i].Signature = sig
			decls[i].Adapter = true
		}
	}
	return surface.Derive(decls, s.Renames())
}

// Spec is a complete shim configuration. Hidden and Adapters refer to the
// names the surface had before the shim; Renames and Prefix are applied
// last, with Prefix skipping explicitly renamed symbols.
type Spec struct {
	Name     string
	Prefix   string
	Renames  RenameTable
	Hidden   []string
	Adapters map[string]abi.Signature
}

// Apply runs adapt, restrict, rename and namespace in that order.
func Apply(s *surface.Surface, spec Spec) (*surface.Surface, error) {
	var err error

	adapted := make([]string, 0, len(spec.Adapters))
	for name := range spec.Adapters {
		adapted = append(adapted, name)
	}
	sort.Strings(adapted)
	for _, name := range adapted {
		if s, err = Adapt(s, name, spec.Adapters[name]); err != nil {
			return nil, err
		}
	}

	if len(spec.Hidden) > 0 {
		if s, err = Restrict(s, spec.Hidden...); err != nil {
			return nil, err
		}
	}

	table := make(RenameTable, len(spec.Renames))
	for k, v := range spec.Renames {
		table[k] = v
	}
	for old, nu := range Namespace(s, spec.Prefix) {
		if _, explicit := table[old]; !explicit {
			table[old] = nu
		}
	}
	if len(table) == 0 {
		return s, nil
	}
	return Wrap(s, table)
}
