package nodeid

import "github.com/specialistvlad/nativebind/internal/dag"

// Address is the structured representation of a unique node identifier.
type Address struct {
	Kind dag.Kind
	Name string
}

var kinds = map[dag.Kind]struct{}{
	dag.KindModule: {},
	dag.KindShim:   {},
	dag.KindBinary: {},
	dag.KindSystem: {},
}
