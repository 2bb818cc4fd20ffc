package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/platform"
)

// MetadataFile is the container metadata header, relative to the container.
const MetadataFile = "Info.jsonc"

// containerMetadata is the on-disk shape of MetadataFile. It is JSON
// extended with comments and trailing commas.
type containerMetadata struct {
	Name       string          `json:"name"`
	ABIVersion string          `json:"abi_version"`
	Slices     []sliceMetadata `json:"slices"`
}

type sliceMetadata struct {
	Identifier    string          `json:"identifier"`
	Platform      platform.OS     `json:"platform"`
	Architectures []platform.Arch `json:"architectures"`
	// Variant is a pointer so that "absent" and "" (device) differ.
	Variant      *platform.Variant `json:"variant"`
	MinOSVersion platform.Version  `json:"min_os_version"`
	MaxOSVersion platform.Version  `json:"max_os_version"`
	LibraryPath  string            `json:"library_path"`
	Symbols      []abi.Symbol      `json:"symbols"`
}

// Parse reads container metadata bytes. containerPath is recorded on the
// artifact and used to resolve library paths; fallbackName names the
// artifact when the metadata does not.
func Parse(data []byte, containerPath, fallbackName string) (*BinaryArtifact, error) {
	var meta containerMetadata
	if err := json.Unmarshal(jsonc.ToJSON(data), &meta); err != nil {
		return nil, fmt.Errorf("parsing container metadata: %w", err)
	}
	name := meta.Name
	if name == "" {
		name = fallbackName
	}

	specs := make([]SliceSpec, 0, len(meta.Slices))
	for _, s := range meta.Slices {
		specs = append(specs, SliceSpec{
			ID:           s.Identifier,
			OS:           s.Platform,
			Archs:        s.Architectures,
			Variant:      s.Variant,
			MinOSVersion: s.MinOSVersion,
			MaxOSVersion: s.MaxOSVersion,
			LibraryPath:  s.LibraryPath,
			Symbols:      s.Symbols,
		})
	}
	return New(name, containerPath, meta.ABIVersion, specs...)
}

// Open reads the metadata header of the container at path. Nothing but the
// header is read; the libraries themselves stay opaque.
func Open(path string) (*BinaryArtifact, error) {
	metaPath := filepath.Join(path, MetadataFile)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", metaPath, err)
	}
	base := filepath.Base(path)
	art, err := Parse(data, path, base[:len(base)-len(filepath.Ext(base))])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", metaPath, err)
	}
	return art, nil
}

// LibraryFile returns the absolute location of the slice's library inside
// the artifact container, or "" when the slice does not name one.
func (a *BinaryArtifact) LibraryFile(s *Slice) string {
	if s.LibraryPath == "" {
		return ""
	}
	if filepath.IsAbs(s.LibraryPath) {
		return s.LibraryPath
	}
	return filepath.Join(a.Path, s.LibraryPath)
}
