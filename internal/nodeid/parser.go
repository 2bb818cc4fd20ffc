package nodeid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specialistvlad/nativebind/internal/dag"
)

// nameRegex matches module, binary and library names. `+` appears in
// system library names such as c++.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+$`)

// isValidName checks for undesirable but technically matching names.
func isValidName(name string) bool {
	if name == "." || name == ".." || name == "-" {
		return false
	}
	return nameRegex.MatchString(name)
}

// New validates kind and name and returns their address.
func New(kind dag.Kind, name string) (*Address, error) {
	if _, ok := kinds[kind]; !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	if name == "" {
		return nil, fmt.Errorf("%s name cannot be empty", kind)
	}
	if !isValidName(name) {
		return nil, fmt.Errorf("invalid %s name: %q", kind, name)
	}
	return &Address{Kind: kind, Name: name}, nil
}

// Parse creates a new Address struct by parsing its canonical string representation.
func Parse(rawID string) (*Address, error) {
	if rawID == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}
	kind, name, ok := strings.Cut(rawID, ":")
	if !ok {
		return nil, fmt.Errorf("identifier %q is not of the form kind:name", rawID)
	}
	return New(dag.Kind(kind), name)
}
