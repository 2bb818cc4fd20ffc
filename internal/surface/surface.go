// Package surface holds the HeaderSurface: the declarations a package
// exposes to its consumers, independent of how the binary was built.
//
// A declaration's exposed name and signature may only differ from the
// binary's link name and link signature through an explicit rename table
// or an adapter, both of which the shim package records on the surface.
// New rejects any silent divergence.
package surface

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/digest"
)

// Visibility of a declaration in the published module.
type Visibility string

const (
	Public   Visibility = "public"
	Internal Visibility = "internal"
)

// Declaration is one HeaderDeclaration.
type Declaration struct {
	Name          string
	LinkName      string
	Signature     abi.Signature
	LinkSignature abi.Signature
	Visibility    Visibility
	Adapter       bool
	Header        string
}

// Surface is an immutable, name-ordered set of declarations.
type Surface struct {
	decls   []Declaration
	byName  map[string]int
	renames map[string]string
	hash    digest.Hash
}

// New builds a surface in which every declaration links to the symbol of
// the same name with the same signature.
func New(decls ...Declaration) (*Surface, error) {
	return Derive(decls, nil)
}

// Derive builds a surface from declarations that may have been renamed by
// renames (link name → exposed name). It is the only way to obtain a
// surface whose names differ from the binary's.
func Derive(decls []Declaration, renames map[string]string) (*Surface, error) {
	s := &Surface{
		decls:   make([]Declaration, 0, len(decls)),
		byName:  make(map[string]int, len(decls)),
		renames: make(map[string]string, len(renames)),
	}
	for k, v := range renames {
		s.renames[k] = v
	}

	var problems []string
	links := make(map[string]string, len(decls))
	for _, d := range decls {
		if d.Name == "" {
			problems = append(problems, "declaration with empty name")
			continue
		}
		if d.LinkName == "" {
			d.LinkName = d.Name
		}
		// An adapter's exposed signature says nothing about the binary.
		if d.LinkSignature.IsZero() && !d.Adapter {
			d.LinkSignature = d.Signature
		}
		if d.Visibility == "" {
			d.Visibility = Public
		}
		if d.Visibility != Public && d.Visibility != Internal {
			problems = append(problems, fmt.Sprintf("%s: unknown visibility %q", d.Name, d.Visibility))
			continue
		}
		if d.LinkName != d.Name && renames[d.LinkName] != d.Name {
			problems = append(problems, fmt.Sprintf("%s: links to %s without a rename table entry", d.Name, d.LinkName))
			continue
		}
		if !d.Adapter && d.Signature.Canonical() != d.LinkSignature.Canonical() {
			problems = append(problems, fmt.Sprintf("%s: signature differs from link signature but is not an adapter", d.Name))
			continue
		}
		if _, dup := s.byName[d.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: declared more than once", d.Name))
			continue
		}
		if other, dup := links[d.LinkName]; dup {
			problems = append(problems, fmt.Sprintf("%s and %s both link to %s", other, d.Name, d.LinkName))
			continue
		}
		links[d.LinkName] = d.Name
		s.byName[d.Name] = len(s.decls)
		s.decls = append(s.decls, d)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid header surface:\n- %s", strings.Join(problems, "\n- "))
	}

	sort.Slice(s.decls, func(i, j int) bool { return s.decls[i].Name < s.decls[j].Name })
	for i, d := range s.decls {
		s.byName[d.Name] = i
	}

	h, err := digest.Of(digest.SurfaceDomain, s.hashView())
	if err != nil {
		return nil, err
	}
	s.hash = h
	return s, nil
}

type declView struct {
	Name     string `cbor:"n"`
	Link     string `cbor:"l"`
	Sig      string `cbor:"s"`
	LinkSig  string `cbor:"ls"`
	Internal bool   `cbor:"i"`
	Adapter  bool   `cbor:"a"`
}

func (s *Surface) hashView() []declView {
	out := make([]declView, len(s.decls))
	for i, d := range s.decls {
		out[i] = declView{
			Name: d.Name, Link: d.LinkName,
			Sig: d.Signature.Canonical(), LinkSig: d.LinkSignature.Canonical(),
			Internal: d.Visibility == Internal, Adapter: d.Adapter,
		}
	}
	return out
}

// Hash is the declaration-set hash. Spelling differences that do not change
// layouts do not change it.
func (s *Surface) Hash() digest.Hash { return s.hash }

// Len returns the number of declarations.
func (s *Surface) Len() int { return len(s.decls) }

// Declarations returns every declaration in name order.
func (s *Surface) Declarations() []Declaration {
	return append([]Declaration(nil), s.decls...)
}

// Public returns the public declarations in name order.
func (s *Surface) Public() []Declaration {
	var out []Declaration
	for _, d := range s.decls {
		if d.Visibility == Public {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds a declaration by exposed name.
func (s *Surface) Lookup(name string) (Declaration, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Declaration{}, false
	}
	return s.decls[i], true
}

// Names returns the exposed names in order.
func (s *Surface) Names() []string {
	out := make([]string, len(s.decls))
	for i, d := range s.decls {
		out[i] = d.Name
	}
	return out
}

// Renames returns the rename table (link name → exposed name) the surface
// was derived with. It is empty for surfaces built by New.
func (s *Surface) Renames() map[string]string {
	out := make(map[string]string, len(s.renames))
	for k, v := range s.renames {
		out[k] = v
	}
	return out
}
