// Package dag holds the dependency graph of a package's modules together
// with the shims, binaries and system libraries they link. Edges point from
// a dependency to the node that depends on it.
//
// The graph must stay acyclic. A module that reaches itself through a shim
// is rejected with a CycleError before any descriptor is published, and the
// link order handed to consumers is derived from a deterministic
// topological sort so the same manifest always yields the same order.
package dag
