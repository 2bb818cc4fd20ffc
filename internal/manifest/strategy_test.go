package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/dag"
	"github.com/specialistvlad/nativebind/internal/shim"
	"github.com/specialistvlad/nativebind/internal/surface"
)

func frameSurface(t *testing.T) *surface.Surface {
	t.Helper()
	s, err := surface.New(
		surface.Declaration{Name: "decode_frame", Signature: abi.MustParseSignature("int(Decoder*, Frame*)")},
		surface.Declaration{Name: "free_frame", Signature: abi.MustParseSignature("void(Frame*)")},
	)
	require.NoError(t, err)
	return s
}

func wire(t *testing.T, m *Module) (*Plan, *dag.Graph, error) {
	t.Helper()
	strategy, ok := Lookup(m.Strategy)
	require.True(t, ok, m.Strategy)
	g := dag.New()
	plan, err := strategy.Wire(Input{Module: m, Surface: frameSurface(t), Graph: g})
	return plan, g, err
}

func TestLookupAndKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Kind{KindDirectLink, KindShimWithHeaders, KindSystemLibraryShim, KindGlueTarget}, Kinds())
	for i, k := range Kinds() {
		s, ok := Lookup(string(k))
		require.True(t, ok)
		assert.Equal(t, k, s.Kind())
		assert.Equal(t, i+1, s.Since())
		assert.LessOrEqual(t, s.Since(), CurrentSchema)
	}
	_, ok := Lookup("prebuilt-module")
	assert.False(t, ok)
}

func TestDirectLink(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	m := &Module{Name: "dav1d", Binary: "dav1d", Strategy: "direct-link", Headers: []string{"include"}, Links: []string{"c++"}}

	// --- Act ---
	plan, g, err := wire(t, m)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, KindDirectLink, plan.Strategy)
	assert.Equal(t, "module:dav1d", plan.Node)
	assert.Equal(t, []string{"decode_frame", "free_frame"}, plan.Surface.Names())
	assert.Equal(t, []string{"include"}, plan.HeaderSearchPaths)
	assert.False(t, plan.Compiled)

	links, err := g.LinkOrder(plan.Node)
	require.NoError(t, err)
	assert.Equal(t, []string{"system:c++", "binary:dav1d"}, links)

	m.Shim = &Shim{}
	_, _, err = wire(t, m)
	assert.ErrorContains(t, err, "direct-link takes no shim")
}

func TestShimWithHeaders(t *testing.T) {
	t.Parallel()

	m := &Module{
		Name:     "Dav1d",
		Binary:   "dav1d",
		Strategy: "shim-with-public-headers",
		Shim:     &Shim{Spec: shim.Spec{Name: "Dav1dShim", Prefix: "AV1", Hidden: []string{"free_frame"}}},
	}

	plan, g, err := wire(t, m)
	require.NoError(t, err)
	assert.True(t, plan.Compiled)
	assert.Equal(t, "AV1", plan.Namespace)
	assert.Equal(t, []string{"AV1decode_frame", "free_frame"}, plan.Surface.Names())
	assert.Equal(t, []string{"Sources/Dav1dShim/include"}, plan.HeaderSearchPaths)

	links, err := g.LinkOrder(plan.Node)
	require.NoError(t, err)
	assert.Equal(t, []string{"shim:Dav1dShim", "binary:dav1d"}, links)
	shimDeps, err := g.Dependencies("shim:Dav1dShim")
	require.NoError(t, err)
	assert.Equal(t, []string{"binary:dav1d"}, shimDeps, "the shim is wired to a binary node it registers itself")

	t.Run("needs a shim", func(t *testing.T) {
		_, _, err := wire(t, &Module{Name: "Dav1d", Binary: "dav1d", Strategy: "shim-with-public-headers"})
		assert.ErrorContains(t, err, "needs a shim block")
	})

	t.Run("rejects adapters", func(t *testing.T) {
		_, _, err := wire(t, &Module{Name: "Dav1d", Binary: "dav1d", Strategy: "shim-with-public-headers", Shim: &Shim{Spec: shim.Spec{
			Adapters: map[string]abi.Signature{"free_frame": abi.MustParseSignature("int(void*)")},
		}}})
		assert.ErrorContains(t, err, "need glue-target")
	})

	t.Run("duplicate mapping surfaces from the shim", func(t *testing.T) {
		_, _, err := wire(t, &Module{Name: "Dav1d", Binary: "dav1d", Strategy: "shim-with-public-headers", Shim: &Shim{Spec: shim.Spec{
			Renames: shim.RenameTable{"decode_frame": "frame", "free_frame": "frame"},
		}}})
		var dup *shim.DuplicateMappingError
		assert.ErrorAs(t, err, &dup)
	})
}

func TestSystemLibraryShim(t *testing.T) {
	t.Parallel()

	plan, _, err := wire(t, &Module{
		Name:     "CDav1d",
		Binary:   "dav1d",
		Strategy: "system-library-shim",
		Shim:     &Shim{Spec: shim.Spec{Hidden: []string{"free_frame"}}},
	})
	require.NoError(t, err)
	assert.False(t, plan.Compiled)
	assert.Len(t, plan.Surface.Public(), 1)

	_, _, err = wire(t, &Module{
		Name:     "CDav1d",
		Binary:   "dav1d",
		Strategy: "system-library-shim",
		Shim:     &Shim{Spec: shim.Spec{Renames: shim.RenameTable{"free_frame": "release"}}},
	})
	assert.ErrorContains(t, err, "can only hide symbols")
}

func TestGlueTarget(t *testing.T) {
	t.Parallel()

	plan, g, err := wire(t, &Module{
		Name:     "Dav1dKit",
		Binary:   "dav1d",
		Strategy: "glue-target",
		Shim: &Shim{
			Spec: shim.Spec{
				Name:     "CDav1d",
				Adapters: map[string]abi.Signature{"free_frame": abi.MustParseSignature("int(void*)")},
			},
			Include: "Sources/CDav1d/public",
		},
	})
	require.NoError(t, err)
	assert.True(t, plan.Compiled)
	d, ok := plan.Surface.Lookup("free_frame")
	require.True(t, ok)
	assert.True(t, d.Adapter)
	assert.Equal(t, []string{"Sources/CDav1d/public"}, plan.HeaderSearchPaths)

	deps, err := g.Dependencies(plan.Node)
	require.NoError(t, err)
	assert.Equal(t, []string{"binary:dav1d", "shim:CDav1d"}, deps, "glue depends on both the binary and the shim")
	links, err := g.LinkOrder(plan.Node)
	require.NoError(t, err)
	assert.Equal(t, []string{"shim:CDav1d", "binary:dav1d"}, links)
}

func TestWireSelfDependency(t *testing.T) {
	t.Parallel()

	_, _, err := wire(t, &Module{Name: "dav1d", Binary: "dav1d", Strategy: "direct-link", DependsOn: []string{"dav1d"}})
	var cycle *dag.CycleError
	assert.ErrorAs(t, err, &cycle)
}

func TestWire_RejectsInvalidNodeNames(t *testing.T) {
	t.Parallel()

	m := &Module{Name: "dav1d", Binary: "dav1d", Strategy: "direct-link", Links: []string{"lib c"}}

	_, _, err := wire(t, m)

	assert.EqualError(t, err, `invalid system name: "lib c"`)
}
