// This file contains the logic for translating HCL schema structs into the
// format-agnostic manifest model defined in the manifest package.

package hcl

import (
	"context"
	"fmt"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/platform"
	"github.com/specialistvlad/nativebind/internal/schema"
	"github.com/specialistvlad/nativebind/internal/shim"
	"github.com/specialistvlad/nativebind/internal/surface"
)

// translatePackage copies the package block into m.
func (l *Loader) translatePackage(ctx context.Context, p *schema.Package, m *manifest.Manifest) error {
	logger := ctxlog.FromContext(ctx).With("package", p.Name)
	logger.Debug("Translating HCL package block.", "platforms", len(p.Platforms), "targets", len(p.Targets))

	m.Package = p.Name
	for _, pl := range p.Platforms {
		raw, err := stringValue(pl.MinVersion)
		if err != nil {
			return fmt.Errorf("platform %q: min_version: %w", pl.OS, err)
		}
		v, err := platform.ParseVersion(raw)
		if err != nil {
			return fmt.Errorf("platform %q: %w", pl.OS, err)
		}
		m.Platforms = append(m.Platforms, manifest.Platform{OS: platform.OS(pl.OS), MinVersion: v})
	}
	for _, raw := range p.Targets {
		t, err := platform.Parse(raw)
		if err != nil {
			return err
		}
		m.Targets = append(m.Targets, t)
	}
	return nil
}

// translateModule converts a module block, parsing every signature.
func (l *Loader) translateModule(ctx context.Context, s *schema.Module) (*manifest.Module, error) {
	logger := ctxlog.FromContext(ctx).With("module", s.Name)
	logger.Debug("Translating HCL module block.", "strategy", s.Strategy, "declarations", len(s.Declares))

	m := &manifest.Module{
		Name:      s.Name,
		Binary:    s.Binary,
		Strategy:  s.Strategy,
		Headers:   s.Headers,
		Links:     s.Links,
		DependsOn: s.DependsOn,
	}
	for _, d := range s.Declares {
		var sig abi.Signature
		if d.Signature != "" {
			parsed, err := abi.ParseSignature(d.Signature)
			if err != nil {
				return nil, fmt.Errorf("module %q, declare %q: %w", s.Name, d.Name, err)
			}
			sig = parsed
		}
		m.Declarations = append(m.Declarations, surface.Declaration{
			Name:       d.Name,
			Signature:  sig,
			Visibility: surface.Visibility(d.Visibility),
			Header:     d.Header,
		})
	}

	if s.Shim != nil {
		sh, err := translateShim(ctx, s.Name, s.Shim)
		if err != nil {
			return nil, err
		}
		m.Shim = sh
	}
	return m, nil
}

func translateShim(ctx context.Context, module string, s *schema.Shim) (*manifest.Shim, error) {
	out := &manifest.Shim{
		Spec: shim.Spec{
			Name:   s.Name,
			Prefix: s.Prefix,
			Hidden: s.Hidden,
		},
		Include: s.Include,
	}
	if isExprDefined(ctx, s.Renames, "renames") {
		renames, err := stringMap(s.Renames)
		if err != nil {
			return nil, fmt.Errorf("module %q, shim %q: renames: %w", module, s.Name, err)
		}
		out.Renames = shim.RenameTable(renames)
	}
	if len(s.Adapters) > 0 {
		out.Adapters = make(map[string]abi.Signature, len(s.Adapters))
		for _, a := range s.Adapters {
			sig, err := abi.ParseSignature(a.Signature)
			if err != nil {
				return nil, fmt.Errorf("module %q, adapter %q: %w", module, a.Symbol, err)
			}
			if _, dup := out.Adapters[a.Symbol]; dup {
				return nil, fmt.Errorf("module %q: adapter %q is declared twice", module, a.Symbol)
			}
			out.Adapters[a.Symbol] = sig
		}
	}
	return out, nil
}
