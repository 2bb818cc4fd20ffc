package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("device target", func(t *testing.T) {
		target, err := Parse("ios-arm64")
		require.NoError(t, err)
		assert.Equal(t, IOS, target.OS)
		assert.Equal(t, ARM64, target.Arch)
		assert.Equal(t, Device, target.Variant)
		assert.True(t, target.MinVersion.IsZero())
		assert.Equal(t, "ios-arm64", target.String())
	})

	t.Run("simulator with version", func(t *testing.T) {
		target, err := Parse("iOS-arm64-simulator@13")
		require.NoError(t, err)
		assert.Equal(t, Simulator, target.Variant)
		assert.Equal(t, "ios-arm64-simulator", target.Key())
		assert.Equal(t, "ios-arm64-simulator@13.0", target.String())
	})

	t.Run("errors", func(t *testing.T) {
		for _, bad := range []string{
			"",
			"ios",
			"beos-arm64",
			"ios-sparc",
			"ios-arm64-emulator",
			"ios-arm64-simulator-extra",
			"ios-arm64@thirteen",
			"ios-arm64@13.0-beta",
		} {
			_, err := Parse(bad)
			assert.Error(t, err, bad)
		}
	})
}

func TestVersion(t *testing.T) {
	t.Parallel()

	v13 := MustParse("ios-arm64@13").MinVersion
	v12_3 := MustParse("macos-arm64@12.3").MinVersion
	v13_0_1 := MustParse("ios-arm64@v13.0.1").MinVersion

	assert.Equal(t, 0, v13.Compare(MustParse("ios-arm64@13.0.0").MinVersion))
	assert.Equal(t, 1, v13.Compare(v12_3))
	assert.Equal(t, -1, v13.Compare(v13_0_1))
	assert.Equal(t, -1, Version{}.Compare(v12_3))
	assert.Equal(t, 0, Version{}.Compare(Version{}))

	assert.Equal(t, "12.3", v12_3.String())
	assert.Equal(t, "13.0.1", v13_0_1.String())
}

func TestTargetText(t *testing.T) {
	t.Parallel()

	var target Target
	require.NoError(t, target.UnmarshalText([]byte("tvos-arm64-simulator@13.0")))
	out, err := target.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "tvos-arm64-simulator@13.0", string(out))

	assert.Error(t, target.UnmarshalText([]byte("tvos")))
}
