package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string            `cbor:"name"`
	Symbols []string          `cbor:"symbols"`
	Tags    map[string]string `cbor:"tags"`
}

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()

	v := sample{Name: "dav1d", Symbols: []string{"dav1d_open"}, Tags: map[string]string{"z": "1", "a": "2", "m": "3"}}

	first, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	var back sample
	require.NoError(t, Unmarshal(first, &back))
	assert.Equal(t, v, back)

	diag, err := Diagnose(first)
	require.NoError(t, err)
	assert.Contains(t, diag, `"dav1d"`)
}
