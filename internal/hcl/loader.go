package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/fsutil"
	"github.com/specialistvlad/nativebind/internal/manifest"
	"github.com/specialistvlad/nativebind/internal/schema"
)

// Loader is the HCL-specific implementation of the manifest.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

var _ manifest.Loader = (*Loader)(nil)

// Load parses every .hcl file under the given paths and merges them into a
// single manifest. Exactly one file must declare the package block.
func (l *Loader) Load(ctx context.Context, paths ...string) (*manifest.Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl manifest files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	m := &manifest.Manifest{}
	var schemaFile, packageFile string
	parser := hclparse.NewParser()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.File
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		dir := filepath.Dir(file)

		if isExprDefined(ctx, root.SchemaVersion, "schema_version") {
			if schemaFile != "" {
				return nil, fmt.Errorf("%s: schema_version is already set in %s", file, schemaFile)
			}
			raw, err := stringValue(root.SchemaVersion)
			if err != nil {
				return nil, fmt.Errorf("%s: schema_version: %w", file, err)
			}
			m.Schema = raw
			schemaFile = file
		}

		for _, p := range root.Packages {
			if packageFile != "" {
				return nil, fmt.Errorf("%s: package %q is already declared in %s", file, m.Package, packageFile)
			}
			if err := l.translatePackage(ctx, p, m); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			m.Dir = dir
			packageFile = file
		}
		for _, b := range root.Binaries {
			m.Binaries = append(m.Binaries, &manifest.Binary{Name: b.Name, Path: b.Path})
		}
		for _, mod := range root.Modules {
			translated, err := l.translateModule(ctx, mod)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			m.Modules = append(m.Modules, translated)
		}
		for _, p := range root.Products {
			m.Products = append(m.Products, &manifest.Product{Name: p.Name, Modules: p.Modules})
		}

		if attrs, _ := root.Body.JustAttributes(); len(attrs) > 0 {
			names := make([]string, 0, len(attrs))
			for name := range attrs {
				names = append(names, name)
			}
			sort.Strings(names)
			logger.Debug("Ignoring unknown top-level attributes.", "file", file, "attributes", names)
		}
	}

	if packageFile == "" {
		return nil, fmt.Errorf("no package block found in %v", paths)
	}

	logger.Debug("HCL loading complete.",
		"package", m.Package,
		"schema", m.Schema,
		"targets", len(m.Targets),
		"binaries", len(m.Binaries),
		"modules", len(m.Modules),
		"products", len(m.Products),
	)
	return m, nil
}

// findAllHCLFiles walks all given paths and returns a sorted list of all
// .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			files, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		} else if filepath.Ext(path) == ".hcl" {
			add(path)
		}
	}
	sort.Strings(allFiles)
	return allFiles, nil
}
