package resolver

import (
	"github.com/specialistvlad/nativebind/internal/descriptor"
)

// Publication is the published product of a successful resolution: every
// descriptor of every module for every target, or nothing.
type Publication struct {
	Package       string            `json:"package" yaml:"package" cbor:"package"`
	SchemaVersion int               `json:"schema_version" yaml:"schema_version" cbor:"schema_version"`
	Products      []ProductEntry    `json:"products" yaml:"products" cbor:"products"`
	Modules       []ModuleEntry     `json:"modules" yaml:"modules" cbor:"modules"`
	Fingerprints  map[string]string `json:"fingerprints" yaml:"fingerprints" cbor:"fingerprints"`
}

// ProductEntry is a library product and the modules it exposes.
type ProductEntry struct {
	Name    string   `json:"name" yaml:"name" cbor:"name"`
	Modules []string `json:"modules" yaml:"modules" cbor:"modules"`
}

// ModuleEntry holds one module's descriptors in target order.
type ModuleEntry struct {
	Name        string                   `json:"name" yaml:"name" cbor:"name"`
	Strategy    string                   `json:"strategy" yaml:"strategy" cbor:"strategy"`
	Descriptors []*descriptor.Descriptor `json:"descriptors" yaml:"descriptors" cbor:"descriptors"`
}

// Module looks up a module entry by name.
func (p *Publication) Module(name string) (*ModuleEntry, bool) {
	for i := range p.Modules {
		if p.Modules[i].Name == name {
			return &p.Modules[i], true
		}
	}
	return nil, false
}

// Descriptor returns the descriptor of module for the target key.
func (p *Publication) Descriptor(module, target string) (*descriptor.Descriptor, bool) {
	entry, ok := p.Module(module)
	if !ok {
		return nil, false
	}
	for _, d := range entry.Descriptors {
		if d.Target.Key() == target || d.Target.String() == target {
			return d, true
		}
	}
	return nil, false
}
