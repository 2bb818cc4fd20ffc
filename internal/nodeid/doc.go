/*
Package nodeid provides a structured, type-safe representation for the
identifiers of dependency graph nodes, based on the canonical format
`kind:name`.

The kind is the node's linkage role (module, shim, binary or system) and
the name is the manifest name of the module, shim or binary, or the system
library name, e.g. `module:Dav1dKit`, `shim:CDav1d` or `system:c++`.
Published descriptors list their dependencies in this form.

This package enforces the identifier schema and centralizes all
formatting and parsing logic.
*/
package nodeid
