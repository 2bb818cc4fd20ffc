// Package hcl provides the concrete HCL implementation of manifest.Loader.
// It is responsible for file discovery, parsing, decoding into the schema
// structs and translating them into the format-agnostic manifest model.
package hcl
