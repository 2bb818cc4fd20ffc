// Package manifest defines the format-agnostic package manifest and the
// WiringStrategy sum type that connects a binary artifact to a module.
//
// A manifest names the package, its supported platforms and targets, the
// binary containers it ships and the modules built from them. Each module
// selects one strategy by keyword. Strategies are added, never redefined,
// as the schema version grows:
//
//	direct-link               since 1
//	shim-with-public-headers  since 2
//	system-library-shim       since 3
//	glue-target               since 4
//
// Concrete loaders, such as the HCL one, live in separate packages and
// implement Loader.
package manifest
