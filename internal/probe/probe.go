// Package probe double-checks declared symbols against the real library.
//
// Container metadata is trusted for validation, but when a slice happens to
// be loadable on the build host the prober opens it with the host's dynamic
// loader and looks every symbol up. Slices for other platforms, static
// archives and slices without a library file are skipped.
//
// Library locations checked (in order):
//   - the slice's library path inside the artifact container
//   - every directory in NATIVEBIND_LIB_PATH
//   - the library's base name, left to the loader's own search
//
// A library found outside the container is logged at warn level, since it
// may be a different build of the same library.
package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/platform"
)

// SearchPathEnv lists extra directories to look for libraries in.
const SearchPathEnv = "NATIVEBIND_LIB_PATH"

// errUnsupportedHost is returned by openLibrary where no dynamic loader is
// wired up.
var errUnsupportedHost = errors.New("probe: dynamic loading is not supported on this host")

// library is an opened shared library.
type library interface {
	has(symbol string) bool
	close() error
}

// MissingSymbolsError lists every symbol the loaded library does not export.
type MissingSymbolsError struct {
	Library string
	Slice   string
	Symbols []string
}

func (e *MissingSymbolsError) Error() string {
	return fmt.Sprintf("probe: %s (slice %s) does not export %s", e.Library, e.Slice, strings.Join(e.Symbols, ", "))
}

// Prober loads host-compatible slices and looks symbols up.
type Prober struct {
	searchPaths []string
	host        platform.Target
	open        func(path string) (library, error)
}

// Option configures a Prober.
type Option func(*Prober)

// WithSearchPaths appends directories to search for libraries.
func WithSearchPaths(dirs ...string) Option {
	return func(p *Prober) { p.searchPaths = append(p.searchPaths, dirs...) }
}

// New creates a Prober for the running host. NATIVEBIND_LIB_PATH is read
// once, here.
func New(opts ...Option) *Prober {
	p := &Prober{
		host: Host(),
		open: openLibrary,
	}
	if env := os.Getenv(SearchPathEnv); env != "" {
		p.searchPaths = append(p.searchPaths, filepath.SplitList(env)...)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Host returns the target of the running process. Only the OS family and
// architecture are set; both are empty on hosts with no matching family.
func Host() platform.Target {
	var t platform.Target
	switch runtime.GOOS {
	case "darwin":
		t.OS = platform.MacOS
	case "linux":
		t.OS = platform.Linux
	case "windows":
		t.OS = platform.Windows
	case "android":
		t.OS = platform.Android
	}
	switch runtime.GOARCH {
	case "amd64":
		t.Arch = platform.X86_64
	case "arm64":
		t.Arch = platform.ARM64
	case "386":
		t.Arch = platform.I386
	}
	return t
}

// Loadable reports whether the host's loader can open the slice's library.
func (p *Prober) Loadable(s *artifact.Slice) bool {
	if s.LibraryPath == "" || p.host.OS == "" {
		return false
	}
	if s.OS != p.host.OS || !s.SupportsArch(p.host.Arch) {
		return false
	}
	if s.VariantKnown && s.Variant != platform.Device {
		return false
	}
	switch strings.ToLower(filepath.Ext(s.LibraryPath)) {
	case ".a", ".lib":
		return false
	}
	return true
}

func (p *Prober) candidates(art *artifact.BinaryArtifact, s *artifact.Slice) []string {
	base := filepath.Base(s.LibraryPath)
	paths := []string{art.LibraryFile(s)}
	for _, dir := range p.searchPaths {
		if dir != "" {
			paths = append(paths, filepath.Join(dir, base))
		}
	}
	return append(paths, base)
}

// Probe opens the slice's library and checks that every symbol resolves.
// It returns nil for slices the host cannot load.
func (p *Prober) Probe(ctx context.Context, art *artifact.BinaryArtifact, s *artifact.Slice, symbols []string) error {
	logger := ctxlog.FromContext(ctx)
	if !p.Loadable(s) {
		logger.Debug("Slice is not loadable on this host, skipping probe.", "slice", s.ID)
		return nil
	}

	var lib library
	var opened string
	var lastErr error
	for _, path := range p.candidates(art, s) {
		l, err := p.open(path)
		if errors.Is(err, errUnsupportedHost) {
			logger.Debug("No dynamic loader on this host, skipping probe.", "slice", s.ID)
			return nil
		}
		if err == nil {
			lib, opened = l, path
			break
		}
		lastErr = err
	}
	if lib == nil {
		return fmt.Errorf("probe: cannot load library of slice %s: %w", s.ID, lastErr)
	}
	if opened != art.LibraryFile(s) {
		logger.Warn("Probing a library found outside the artifact container.", "slice", s.ID, "path", opened)
	}
	defer func() {
		if err := lib.close(); err != nil {
			logger.Warn("Failed to close probed library.", "path", opened, "error", err)
		}
	}()

	var missing []string
	for _, name := range symbols {
		if !lib.has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingSymbolsError{Library: opened, Slice: s.ID, Symbols: missing}
	}
	logger.Info("Symbols probed.", "slice", s.ID, "path", opened, "count", len(symbols))
	return nil
}
