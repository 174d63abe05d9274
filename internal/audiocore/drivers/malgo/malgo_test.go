package malgo

import (
	"encoding/hex"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want malgo.Backend
	}{
		{"alsa", malgo.BackendAlsa},
		{"ALSA", malgo.BackendAlsa},
		{"pulse", malgo.BackendPulseaudio},
		{"wasapi", malgo.BackendWasapi},
		{"coreaudio", malgo.BackendCoreaudio},
		{"null", malgo.BackendNull},
	}
	for _, tt := range tests {
		got, err := BackendFor(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := BackendFor("oss-ng")
	require.Error(t, err)
}

func TestHexToASCII(t *testing.T) {
	t.Parallel()

	id := hex.EncodeToString([]byte("hw:1,0\x00\x00"))
	got, err := hexToASCII(id)
	require.NoError(t, err)
	assert.Equal(t, "hw:1,0", got, "trailing NULs are trimmed")

	_, err = hexToASCII("not hex")
	require.Error(t, err)
}

func TestFloat32RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.25, 1}
	raw := make([]byte, len(in)*4)
	encodeFloat32(raw, in)

	out := make([]float32, len(in))
	assert.Equal(t, len(in), decodeFloat32(out, raw))
	assert.Equal(t, in, out)

	short := make([]float32, 2)
	assert.Equal(t, 2, decodeFloat32(short, raw), "bounded by the destination")
	assert.Equal(t, 1, decodeFloat32(out, raw[:7]), "partial samples are ignored")
}
