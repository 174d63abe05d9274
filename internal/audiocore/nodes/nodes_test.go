package nodes

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/logger"
)

var (
	stereo = audiocore.Format{SampleRate: 48000, Channels: 2}
	mono   = audiocore.Format{SampleRate: 48000, Channels: 1}
)

// renderThrough connects n to the main mixer of a fresh graph and renders
// one cycle
func renderThrough(t *testing.T, frames int, chain ...audiocore.Node) (*audiocore.PCMBuffer, audiocore.RenderStatus, error) {
	t.Helper()
	g, err := audiocore.NewGraph(stereo, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC))
	require.NoError(t, err)

	for _, n := range chain {
		require.NoError(t, g.Attach(n))
	}
	for i := 1; i < len(chain); i++ {
		require.NoError(t, g.Connect(chain[i-1], 0, chain[i], 0, audiocore.Format{}))
	}
	require.NoError(t, g.Connect(chain[len(chain)-1], 0, g.MainMixer(), 0, audiocore.Format{}))

	dst := audiocore.NewPCMBuffer(stereo, frames)
	status, err := g.Render(dst, frames)
	return dst, status, err
}

func TestToneRendersSine(t *testing.T) {
	t.Parallel()

	tone, err := NewTone("tone", stereo, 1000, 0.5)
	require.NoError(t, err)

	dst, status, err := renderThrough(t, 48, tone)
	require.NoError(t, err)
	require.Equal(t, audiocore.StatusSuccess, status)

	samples := dst.Samples()
	for f := range 48 {
		want := 0.5 * math.Sin(2*math.Pi*1000*float64(f)/48000)
		assert.InDelta(t, want, samples[2*f], 1e-5, "frame %d", f)
		assert.InDelta(t, samples[2*f], samples[2*f+1], 1e-9, "channels carry the same sample")
	}
}

func TestToneParameters(t *testing.T) {
	t.Parallel()

	_, err := NewTone("bad", stereo, 0, 0.5)
	require.ErrorIs(t, err, ErrInvalidParameter)
	_, err = NewTone("bad", stereo, 24000, 0.5)
	require.ErrorIs(t, err, ErrInvalidParameter, "Nyquist is excluded")
	_, err = NewTone("bad", stereo, 440, 1.5)
	require.ErrorIs(t, err, ErrInvalidParameter)

	tone, err := NewTone("tone", stereo, 440, 0.2)
	require.NoError(t, err)
	require.NoError(t, tone.SetFrequency(880))
	assert.InDelta(t, 880, tone.Frequency(), 1e-9)
	require.Error(t, tone.SetAmplitude(-0.1))
	assert.InDelta(t, 0.2, tone.Amplitude(), 1e-6)
}

func TestGainScalesInput(t *testing.T) {
	t.Parallel()

	tone, err := NewTone("tone", stereo, 1000, 0.5)
	require.NoError(t, err)
	gain, err := NewGain("gain", stereo, 0.5)
	require.NoError(t, err)

	dst, status, err := renderThrough(t, 16, tone, gain)
	require.NoError(t, err)
	require.Equal(t, audiocore.StatusSuccess, status)

	for f := range 16 {
		want := 0.25 * math.Sin(2*math.Pi*1000*float64(f)/48000)
		assert.InDelta(t, want, dst.Samples()[2*f], 1e-5)
	}

	_, err = NewGain("bad", stereo, MaxGain+1)
	require.ErrorIs(t, err, ErrInvalidParameter)
	require.NoError(t, gain.SetGain(2))
	assert.InDelta(t, 2, gain.Gain(), 1e-6)
}

func TestInputQueue(t *testing.T) {
	t.Parallel()

	in, err := NewInput("mic", mono, 8)
	require.NoError(t, err)

	assert.Equal(t, 3, in.Write([]float32{0.1, 0.2, 0.3}))
	assert.Equal(t, 3, in.Available())

	_, status, err := renderThrough(t, 4, in)
	require.NoError(t, err, "insufficient input is a status, not an error")
	assert.Equal(t, audiocore.StatusInsufficientInput, status)
	assert.Equal(t, uint64(1), in.Underruns())
	assert.Equal(t, 3, in.Available(), "a short queue is left intact")

	assert.Equal(t, 5, in.Write([]float32{0.4, 0.5, 0.6, 0.7, 0.8, 0.9}), "only free space is used")
	assert.Equal(t, uint64(1), in.Overruns())

	in.Reset()
	assert.Zero(t, in.Available())
}

func TestInputRendersQueuedFrames(t *testing.T) {
	t.Parallel()

	in, err := NewInput("mic", mono, 16)
	require.NoError(t, err)
	in.Write([]float32{0.1, 0.2, 0.3, 0.4, 0.5})

	dst, status, err := renderThrough(t, 4, in)
	require.NoError(t, err)
	require.Equal(t, audiocore.StatusSuccess, status)
	assert.InDeltaSlice(t, []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3, 0.4, 0.4}, dst.Samples(), 1e-6,
		"mono input is spread to both channels")
	assert.Equal(t, 1, in.Available())
}

func TestInputRejectsBadCapacity(t *testing.T) {
	t.Parallel()

	_, err := NewInput("mic", mono, 0)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPlayerPlayback(t *testing.T) {
	t.Parallel()

	clip := &Clip{Format: mono, Samples: []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}}
	p, err := NewPlayer("player", stereo, clip)
	require.NoError(t, err)
	assert.Equal(t, int64(6), p.Frames())

	g, err := audiocore.NewGraph(stereo, logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC))
	require.NoError(t, err)
	require.NoError(t, g.Attach(p))
	require.NoError(t, g.Connect(p, 0, g.MainMixer(), 0, audiocore.Format{}))
	dst := audiocore.NewPCMBuffer(stereo, 4)

	_, err = g.Render(dst, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0, 0, 0}, dst.Samples(), "silent until played")

	p.Play()
	_, err = g.Render(dst, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3, 0.4, 0.4}, dst.Samples(), 1e-6)

	_, err = g.Render(dst, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.6, 0.6, 0, 0, 0, 0}, dst.Samples(), 1e-6, "tail padded with silence")
	assert.True(t, p.Finished())
	assert.False(t, p.Playing())

	p.Stop()
	p.SetLoop(true)
	p.Play()
	_, err = g.Render(dst, 4)
	require.NoError(t, err)
	_, err = g.Render(dst, 4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 0.6, 0.6, 0.1, 0.1, 0.2, 0.2}, dst.Samples(), 1e-6, "loop wraps")
	assert.Equal(t, int64(2), p.Position())
}

func TestDecodeWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 48000, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 48000},
		Data:           []int{0, 16384, -16384, 32767},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	clip, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, mono, clip.Format)
	assert.InDeltaSlice(t, []float32{0, 0.5, -0.5, 32767.0 / 32768}, clip.Samples, 1e-6)

	p, err := LoadPlayer("wav", stereo, path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Frames())
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeFile(filepath.Join(t.TempDir(), "clip.aiff"))
	require.ErrorIs(t, err, ErrUnsupportedFile)

	missing := filepath.Join(t.TempDir(), "missing.wav")
	_, err = DecodeFile(missing)
	require.ErrorIs(t, err, os.ErrNotExist)

	for _, ext := range []string{".wav", ".ogg", ".flac"} {
		_, err = Decode(io.LimitReader(zeroReader{}, 64), ext)
		require.ErrorIs(t, err, ErrDecode, ext)
	}
}

func TestClipResample(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 2*4410)
	for i := range samples {
		samples[i] = 0.25
	}
	clip := &Clip{Format: audiocore.Format{SampleRate: 44100, Channels: 2}, Samples: samples}

	out := clip.Resample(48000)
	assert.InDelta(t, 48000, out.Format.SampleRate, 0)
	assert.Equal(t, 2, out.Format.Channels)
	assert.InDelta(t, 4800, out.Frames(), 100)
	assert.Same(t, clip, clip.Resample(44100))
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestPCMSample(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []byte
		want int32
	}{
		{[]byte{0x7f}, 127},
		{[]byte{0x80}, -128},
		{[]byte{0x00, 0x80}, -32768},
		{[]byte{0xff, 0x7f}, 32767},
		{[]byte{0xff, 0xff, 0xff}, -1},
		{[]byte{0x00, 0x00, 0x80}, -8388608},
		{[]byte{0xff, 0xff, 0x7f}, 8388607},
		{[]byte{0x01, 0x00, 0x00, 0x80}, -2147483647},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pcmSample(tt.in), "%x", tt.in)
	}
}
