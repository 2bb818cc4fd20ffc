// Package schema holds the HCL block structures of a package manifest, as
// decoded by gohcl. The hcl package translates them into the
// format-agnostic manifest model.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// --- Package Structures ---

// Platform represents a `platform` block: the minimum version the package
// supports on one OS family. `min_version` may be a number or a string.
type Platform struct {
	OS         string         `hcl:"os,label"`
	MinVersion hcl.Expression `hcl:"min_version"`
}

// Package represents the `package` block.
type Package struct {
	Name      string      `hcl:"name,label"`
	Platforms []*Platform `hcl:"platform,block"`
	Targets   []string    `hcl:"targets"`
}

// Binary represents a `binary` block naming a prebuilt artifact container.
// A relative path is relative to the file declaring the package block.
type Binary struct {
	Name string `hcl:"name,label"`
	Path string `hcl:"path"`
}

// Product represents a `product` block grouping modules.
type Product struct {
	Name    string   `hcl:"name,label"`
	Modules []string `hcl:"modules"`
}

// --- Module Structures ---

// Declare represents a `declare` block: one header declaration.
type Declare struct {
	Name       string `hcl:"symbol,label"`
	Signature  string `hcl:"signature,optional"`
	Visibility string `hcl:"visibility,optional"`
	Header     string `hcl:"header,optional"`
}

// Adapter represents an `adapter` block inside a shim: a declaration whose
// exposed signature differs from the binary's.
type Adapter struct {
	Symbol    string `hcl:"symbol,label"`
	Signature string `hcl:"signature"`
}

// Shim represents the optional `shim` block of a module.
type Shim struct {
	Name     string         `hcl:"name,label"`
	Prefix   string         `hcl:"prefix,optional"`
	Renames  hcl.Expression `hcl:"renames,optional"`
	Hidden   []string       `hcl:"hidden,optional"`
	Include  string         `hcl:"include,optional"`
	Adapters []*Adapter     `hcl:"adapter,block"`
}

// Module represents a `module` block.
type Module struct {
	Name      string     `hcl:"name,label"`
	Binary    string     `hcl:"binary"`
	Strategy  string     `hcl:"strategy"`
	Headers   []string   `hcl:"headers,optional"`
	Links     []string   `hcl:"links,optional"`
	DependsOn []string   `hcl:"depends_on,optional"`
	Declares  []*Declare `hcl:"declare,block"`
	Shim      *Shim      `hcl:"shim,block"`
}

// File represents the top-level structure of any manifest file. A package
// may be split over several files; attributes and blocks are merged.
type File struct {
	SchemaVersion hcl.Expression `hcl:"schema_version,optional"`
	Packages      []*Package     `hcl:"package,block"`
	Binaries      []*Binary      `hcl:"binary,block"`
	Modules       []*Module      `hcl:"module,block"`
	Products      []*Product     `hcl:"product,block"`
	Body          hcl.Body       `hcl:",remain"`
}
