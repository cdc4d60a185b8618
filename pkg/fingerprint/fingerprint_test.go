package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()

	image := []byte("fake jpeg bytes")

	first := Derive(image)
	second := Derive(image)

	require.Equal(t, first, second)
	require.Len(t, first, Size*2)
}

func TestDerive_DistinctInputs(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, Derive([]byte("rose")), Derive([]byte("tulip")))
}

func TestDerive_EmptyInput(t *testing.T) {
	t.Parallel()

	require.Len(t, Derive(nil), Size*2)
	require.Equal(t, Derive(nil), Derive([]byte{}))
}
