package probe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/artifact"
	"github.com/specialistvlad/nativebind/internal/ctxlog"
	"github.com/specialistvlad/nativebind/internal/platform"
)

type fakeLibrary struct {
	symbols map[string]bool
	closed  bool
}

func (l *fakeLibrary) has(name string) bool { return l.symbols[name] }
func (l *fakeLibrary) close() error {
	l.closed = true
	return nil
}

// fakeLoader serves libraries from a path-keyed table and records every
// path it was asked for.
type fakeLoader struct {
	libs  map[string]*fakeLibrary
	tried []string
}

func (f *fakeLoader) open(path string) (library, error) {
	f.tried = append(f.tried, path)
	if lib, ok := f.libs[path]; ok {
		return lib, nil
	}
	return nil, errors.New(path + ": cannot open shared object file")
}

func linuxArtifact(t *testing.T, libraryPath string) (*artifact.BinaryArtifact, *artifact.Slice) {
	t.Helper()
	art, err := artifact.New("codec", "/pkg/codec.artifact", "1.0", artifact.SliceSpec{
		ID:          "linux-x86_64",
		OS:          platform.Linux,
		Archs:       []platform.Arch{platform.X86_64},
		LibraryPath: libraryPath,
		Symbols:     []abi.Symbol{{Name: "decode_frame"}, {Name: "free_frame"}},
	})
	require.NoError(t, err)
	return art, art.Slices()[0]
}

func newTestProber(loader *fakeLoader, opts ...Option) *Prober {
	p := &Prober{
		host: platform.Target{OS: platform.Linux, Arch: platform.X86_64},
		open: loader.open,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func TestProbe(t *testing.T) {
	t.Parallel()

	t.Run("all symbols resolve", func(t *testing.T) {
		// --- Arrange ---
		lib := &fakeLibrary{symbols: map[string]bool{"decode_frame": true, "free_frame": true}}
		loader := &fakeLoader{libs: map[string]*fakeLibrary{"/pkg/codec.artifact/linux-x86_64/libcodec.so": lib}}
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")

		// --- Act ---
		err := newTestProber(loader).Probe(context.Background(), art, s, []string{"decode_frame", "free_frame"})

		// --- Assert ---
		require.NoError(t, err)
		assert.True(t, lib.closed, "the library is closed after probing")
	})

	t.Run("missing symbols are all reported", func(t *testing.T) {
		lib := &fakeLibrary{symbols: map[string]bool{"decode_frame": true}}
		loader := &fakeLoader{libs: map[string]*fakeLibrary{"/pkg/codec.artifact/linux-x86_64/libcodec.so": lib}}
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")

		err := newTestProber(loader).Probe(context.Background(), art, s, []string{"decode_frame", "free_frame", "seek_frame"})

		var missing *MissingSymbolsError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"free_frame", "seek_frame"}, missing.Symbols)
		assert.Equal(t, "linux-x86_64", missing.Slice)
		assert.True(t, lib.closed)
	})

	t.Run("search paths are tried after the container", func(t *testing.T) {
		lib := &fakeLibrary{symbols: map[string]bool{"decode_frame": true}}
		loader := &fakeLoader{libs: map[string]*fakeLibrary{filepath.Join("/opt/codec/lib", "libcodec.so"): lib}}
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")

		err := newTestProber(loader, WithSearchPaths("/usr/local/lib", "", "/opt/codec/lib")).
			Probe(context.Background(), art, s, []string{"decode_frame"})

		require.NoError(t, err)
		assert.Equal(t, []string{
			"/pkg/codec.artifact/linux-x86_64/libcodec.so",
			"/usr/local/lib/libcodec.so",
			"/opt/codec/lib/libcodec.so",
		}, loader.tried)
	})

	t.Run("a library outside the container is reported", func(t *testing.T) {
		// --- Arrange ---
		lib := &fakeLibrary{symbols: map[string]bool{"decode_frame": true}}
		loader := &fakeLoader{libs: map[string]*fakeLibrary{"libcodec.so": lib}}
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")
		var logs bytes.Buffer
		ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

		// --- Act ---
		err := newTestProber(loader).Probe(ctx, art, s, []string{"decode_frame"})

		// --- Assert ---
		require.NoError(t, err)
		assert.Contains(t, logs.String(), `level=WARN msg="Probing a library found outside the artifact container."`)
		assert.Contains(t, logs.String(), `level=INFO msg="Symbols probed." slice=linux-x86_64 path=libcodec.so`)
	})

	t.Run("unloadable library is an error", func(t *testing.T) {
		loader := &fakeLoader{}
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")

		err := newTestProber(loader).Probe(context.Background(), art, s, []string{"decode_frame"})

		assert.ErrorContains(t, err, "cannot load library of slice linux-x86_64")
		assert.Equal(t, []string{"/pkg/codec.artifact/linux-x86_64/libcodec.so", "libcodec.so"}, loader.tried, "the loader's own search is the last resort")
	})

	t.Run("host without a loader skips", func(t *testing.T) {
		art, s := linuxArtifact(t, "linux-x86_64/libcodec.so")
		p := newTestProber(&fakeLoader{})
		p.open = func(string) (library, error) { return nil, errUnsupportedHost }

		assert.NoError(t, p.Probe(context.Background(), art, s, []string{"decode_frame"}))
	})
}

func TestLoadable(t *testing.T) {
	t.Parallel()

	p := newTestProber(&fakeLoader{})
	simulator := platform.Simulator

	cases := []struct {
		name string
		spec artifact.SliceSpec
		want bool
	}{
		{"host slice", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.X86_64}, LibraryPath: "libcodec.so"}, true},
		{"fat host slice", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.ARM64, platform.X86_64}, LibraryPath: "libcodec.so"}, true},
		{"other OS", artifact.SliceSpec{OS: platform.IOS, Archs: []platform.Arch{platform.X86_64}, LibraryPath: "codec.framework/codec"}, false},
		{"other arch", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.ARM64}, LibraryPath: "libcodec.so"}, false},
		{"simulator variant", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.X86_64}, Variant: &simulator, LibraryPath: "libcodec.so"}, false},
		{"static archive", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.X86_64}, LibraryPath: "libcodec.a"}, false},
		{"no library", artifact.SliceSpec{OS: platform.Linux, Archs: []platform.Arch{platform.X86_64}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.spec.ID = "slice"
			art, err := artifact.New("codec", "/pkg", "1", tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Loadable(art.Slices()[0]))
		})
	}
}

func TestProbe_SkipsForeignSlices(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{}
	art, err := artifact.New("codec", "/pkg", "1", artifact.SliceSpec{
		ID:          "ios-arm64",
		OS:          platform.IOS,
		Archs:       []platform.Arch{platform.ARM64},
		LibraryPath: "ios-arm64/codec.framework/codec",
	})
	require.NoError(t, err)

	err = newTestProber(loader).Probe(context.Background(), art, art.Slices()[0], []string{"decode_frame"})

	require.NoError(t, err)
	assert.Empty(t, loader.tried, "nothing is loaded for a foreign slice")
}

func TestNew_ReadsSearchPathEnv(t *testing.T) {
	t.Setenv(SearchPathEnv, "/a"+string(filepath.ListSeparator)+"/b")

	p := New(WithSearchPaths("/c"))

	assert.Equal(t, []string{"/a", "/b", "/c"}, p.searchPaths)
	assert.Equal(t, Host(), p.host)
}
