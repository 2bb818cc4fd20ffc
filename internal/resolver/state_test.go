package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/nativebind/internal/platform"
)

func TestBuild_Transitions(t *testing.T) {
	t.Parallel()

	t.Run("walks every state in order", func(t *testing.T) {
		b := newBuild(platform.MustParse("ios-arm64"))
		assert.Equal(t, Unresolved, b.state)

		require.NoError(t, b.advance(ArtifactSelected))
		require.NoError(t, b.advance(SurfaceValidated))
		require.NoError(t, b.advance(Published))

		assert.Equal(t, Published, b.state)
		assert.True(t, b.state.Terminal())
		assert.NoError(t, b.Err())
	})

	t.Run("no state is skipped", func(t *testing.T) {
		b := newBuild(platform.MustParse("ios-arm64"))

		err := b.advance(SurfaceValidated)

		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, Unresolved, te.From)
		assert.Equal(t, SurfaceValidated, te.To)
		assert.EqualError(t, err, "resolver: invalid transition from unresolved to surface-validated")
		assert.Equal(t, Unresolved, b.state, "a rejected transition leaves the state alone")
	})

	t.Run("failed is only reached through fail", func(t *testing.T) {
		b := newBuild(platform.MustParse("ios-arm64"))
		assert.Error(t, b.advance(Failed))
		require.NoError(t, b.advance(ArtifactSelected))
		require.NoError(t, b.advance(SurfaceValidated))
		assert.Error(t, b.advance(Failed))
		assert.Equal(t, SurfaceValidated, b.state)
	})

	t.Run("failed is reachable from every non-terminal state", func(t *testing.T) {
		cause := errors.New("boom")
		for _, reached := range []State{Unresolved, ArtifactSelected, SurfaceValidated} {
			b := newBuild(platform.MustParse("ios-arm64-simulator"))
			for s := ArtifactSelected; s <= reached; s++ {
				require.NoError(t, b.advance(s))
			}

			err := b.fail(cause)

			var te *TargetError
			require.ErrorAs(t, err, &te, reached.String())
			assert.Equal(t, reached, te.State, "the reason records where the build stopped")
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, Failed, b.state)
			assert.Equal(t, err, b.Err())
		}
	})

	t.Run("terminal states have no way out", func(t *testing.T) {
		failed := newBuild(platform.MustParse("ios-arm64"))
		_ = failed.fail(errors.New("boom"))
		assert.Error(t, failed.advance(ArtifactSelected))
		assert.Error(t, failed.fail(errors.New("again")))

		published := newBuild(platform.MustParse("ios-arm64"))
		for s := ArtifactSelected; s <= Published; s++ {
			require.NoError(t, published.advance(s))
		}
		var te *TransitionError
		assert.ErrorAs(t, published.fail(errors.New("late")), &te)
		assert.Equal(t, Published, published.state)
	})
}

func TestCommit(t *testing.T) {
	t.Parallel()

	t.Run("publishes every validated build", func(t *testing.T) {
		a := newBuild(platform.MustParse("ios-arm64"))
		b := newBuild(platform.MustParse("ios-arm64-simulator"))
		for _, x := range []*build{a, b} {
			require.NoError(t, x.advance(ArtifactSelected))
			require.NoError(t, x.advance(SurfaceValidated))
		}

		require.NoError(t, commit([]*build{a, b}))
		assert.Equal(t, Published, a.state)
		assert.Equal(t, Published, b.state)
	})

	t.Run("one failure aborts the rest", func(t *testing.T) {
		ok := newBuild(platform.MustParse("ios-arm64"))
		require.NoError(t, ok.advance(ArtifactSelected))
		require.NoError(t, ok.advance(SurfaceValidated))
		pending := newBuild(platform.MustParse("macos-arm64"))
		bad := newBuild(platform.MustParse("ios-arm64-simulator"))
		cause := errors.New("no slice")
		_ = bad.fail(cause)

		err := commit([]*build{ok, pending, bad})

		require.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, errAborted, "aborted targets are not reported as causes")
		for _, x := range []*build{ok, pending, bad} {
			assert.Equal(t, Failed, x.state, x.target.String())
		}
		assert.ErrorIs(t, ok.Err(), errAborted)
		assert.Equal(t, SurfaceValidated, ok.reason.State)
	})
}
