// Package publish renders a resolved publication for downstream consumers.
package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/nativebind/internal/codec"
	"github.com/specialistvlad/nativebind/internal/resolver"
)

// Format is an output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

var formats = map[Format]func(io.Writer, any) error{
	JSON: writeJSON,
	YAML: writeYAML,
	CBOR: writeCBOR,
}

// Formats lists the supported formats in name order.
func Formats() []string {
	out := make([]string, 0, len(formats))
	for f := range formats {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// ParseFormat accepts a format name in any case. "yml" is an alias.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		f = YAML
	}
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unknown output format %q: must be one of %s", s, strings.Join(Formats(), ", "))
	}
	return f, nil
}

// Write renders pub to w.
func Write(w io.Writer, pub *resolver.Publication, f Format) error {
	write, ok := formats[f]
	if !ok {
		return fmt.Errorf("unknown output format %q", f)
	}
	return write(w, pub)
}

// WriteFile renders pub to path. The file is written next to its final
// location and renamed into place, so readers never see a partial product.
func WriteFile(path string, pub *resolver.Publication, f Format) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err = Write(tmp, pub, f); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publishing %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeCBOR(w io.Writer, v any) error {
	return codec.NewEncoder(w).Encode(v)
}
