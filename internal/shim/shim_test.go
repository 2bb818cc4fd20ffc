package shim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/nativebind/internal/abi"
	"github.com/specialistvlad/nativebind/internal/surface"
)

func dav1dSurface(t *testing.T) *surface.Surface {
	t.Helper()
	s, err := surface.New(
		surface.Declaration{Name: "dav1d_open", Signature: abi.MustParseSignature("int(Dav1dContext**, const Dav1dSettings*)")},
		surface.Declaration{Name: "dav1d_close", Signature: abi.MustParseSignature("void(Dav1dContext**)")},
		surface.Declaration{Name: "dav1d_send_data", Signature: abi.MustParseSignature("int(Dav1dContext*, Dav1dData*)")},
	)
	require.NoError(t, err)
	return s
}

func TestWrapInjective(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := dav1dSurface(t)

	// --- Act ---
	wrapped, err := Wrap(s, RenameTable{"dav1d_open": "AV1Open", "dav1d_close": "AV1Close"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"AV1Close", "AV1Open", "dav1d_send_data"}, wrapped.Names())
	assert.Equal(t, map[string]string{"dav1d_open": "AV1Open", "dav1d_close": "AV1Close"}, wrapped.Renames())

	d, ok := wrapped.Lookup("AV1Open")
	require.True(t, ok)
	assert.Equal(t, "dav1d_open", d.LinkName)
	orig, _ := s.Lookup("dav1d_open")
	assert.Equal(t, orig.Signature, d.Signature, "wrap never touches signatures")
	assert.False(t, d.Adapter)

	// The input surface is unchanged.
	assert.Equal(t, []string{"dav1d_close", "dav1d_open", "dav1d_send_data"}, s.Names())
}

func TestWrapSwapAndRewrap(t *testing.T) {
	t.Parallel()

	s := dav1dSurface(t)
	swapped, err := Wrap(s, RenameTable{"dav1d_open": "dav1d_close", "dav1d_close": "dav1d_open"})
	require.NoError(t, err)
	d, _ := swapped.Lookup("dav1d_open")
	assert.Equal(t, "dav1d_close", d.LinkName)

	again, err := Wrap(swapped, RenameTable{"dav1d_open": "close"})
	require.NoError(t, err)
	d, _ = again.Lookup("close")
	assert.Equal(t, "dav1d_close", d.LinkName, "renames compose back to the binary symbol")
	assert.Equal(t, map[string]string{"dav1d_open": "dav1d_close", "dav1d_close": "close"}, again.Renames())
}

func TestWrapNonInjective(t *testing.T) {
	t.Parallel()

	s := dav1dSurface(t)

	t.Run("two old names map to one new name", func(t *testing.T) {
		_, err := Wrap(s, RenameTable{"dav1d_open": "av1", "dav1d_close": "av1"})
		var dup *DuplicateMappingError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, map[string][]string{"av1": {"dav1d_close", "dav1d_open"}}, dup.Collisions)
		assert.ErrorContains(t, err, "av1 <- {dav1d_close, dav1d_open}")
	})

	t.Run("non-injective even when the names are unknown", func(t *testing.T) {
		_, err := Wrap(s, RenameTable{"x": "y", "z": "y"})
		var dup *DuplicateMappingError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("rename onto a kept name", func(t *testing.T) {
		_, err := Wrap(s, RenameTable{"dav1d_open": "dav1d_send_data"})
		var dup *DuplicateMappingError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, []string{"dav1d_open", "dav1d_send_data"}, dup.Collisions["dav1d_send_data"])
	})
}

func TestWrapUnknownSymbol(t *testing.T) {
	t.Parallel()

	_, err := Wrap(dav1dSurface(t), RenameTable{"dav1d_seek": "seek"})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	assert.ErrorContains(t, err, "dav1d_seek")

	_, err = Wrap(dav1dSurface(t), RenameTable{"dav1d_open": ""})
	assert.ErrorContains(t, err, "empty target")
}

func TestNamespace(t *testing.T) {
	t.Parallel()

	s, err := Restrict(dav1dSurface(t), "dav1d_send_data")
	require.NoError(t, err)

	table := Namespace(s, "dav1d_")
	assert.Empty(t, table, "already prefixed")

	table = Namespace(s, "AV1")
	assert.Equal(t, RenameTable{"dav1d_open": "AV1dav1d_open", "dav1d_close": "AV1dav1d_close"}, table)
	assert.Empty(t, Namespace(s, ""))
}

func TestRestrict(t *testing.T) {
	t.Parallel()

	s, err := Restrict(dav1dSurface(t), "dav1d_send_data")
	require.NoError(t, err)
	d, _ := s.Lookup("dav1d_send_data")
	assert.Equal(t, surface.Internal, d.Visibility)
	assert.Len(t, s.Public(), 2)

	_, err = Restrict(s, "nope")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestAdapt(t *testing.T) {
	t.Parallel()

	s := dav1dSurface(t)
	adapted, err := Adapt(s, "dav1d_open", abi.MustParseSignature("int64_t(void*)"))
	require.NoError(t, err)

	d, _ := adapted.Lookup("dav1d_open")
	assert.True(t, d.Adapter)
	assert.Equal(t, "c:i64(ptr)", d.Signature.Canonical())
	assert.Equal(t, "c:i32(ptr,ptr)", d.LinkSignature.Canonical(), "binary side unchanged")
	assert.NotEqual(t, s.Hash(), adapted.Hash())

	_, err = Adapt(s, "dav1d_seek", abi.MustParseSignature("int(void)"))
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = Adapt(s, "dav1d_open", abi.Signature{})
	assert.ErrorContains(t, err, "needs a signature")
}

func TestAdapt_UnsignedDeclaration(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s, err := surface.New(surface.Declaration{Name: "open_decoder"})
	require.NoError(t, err)

	// --- Act ---
	adapted, err := Adapt(s, "open_decoder", abi.MustParseSignature("void(void*)"))

	// --- Assert ---
	require.NoError(t, err)
	d, _ := adapted.Lookup("open_decoder")
	assert.True(t, d.Adapter)
	assert.False(t, d.Signature.IsZero())
	assert.True(t, d.LinkSignature.IsZero(), "the adapter signature never stands in for the binary's")
}

func TestApply(t *testing.T) {
	t.Parallel()

	out, err := Apply(dav1dSurface(t), Spec{
		Name:     "dav1d-shim",
		Prefix:   "AV1",
		Renames:  RenameTable{"dav1d_open": "AV1OpenDecoder"},
		Hidden:   []string{"dav1d_send_data"},
		Adapters: map[string]abi.Signature{"dav1d_close": abi.MustParseSignature("void(void*)")},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AV1OpenDecoder", "AV1dav1d_close", "dav1d_send_data"}, out.Names())
	closeDecl, _ := out.Lookup("AV1dav1d_close")
	assert.True(t, closeDecl.Adapter)
	assert.Equal(t, "dav1d_close", closeDecl.LinkName)
	hidden, _ := out.Lookup("dav1d_send_data")
	assert.Equal(t, surface.Internal, hidden.Visibility)

	same, err := Apply(dav1dSurface(t), Spec{})
	require.NoError(t, err)
	assert.Equal(t, dav1dSurface(t).Hash(), same.Hash())
}
