package nodes

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/audiograph/internal/audiocore"
)

// Tone is a sine wave source. Frequency and amplitude can be changed while
// rendering.
type Tone struct {
	audiocore.BaseNode
	frequency atomic.Uint64 // float64 bits
	amplitude atomic.Uint32 // float32 bits
	phase     float64
}

// NewTone creates a sine source. The frequency must be below Nyquist and the
// amplitude within [0, 1].
func NewTone(name string, format audiocore.Format, frequency float64, amplitude float32) (*Tone, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	t := &Tone{BaseNode: audiocore.NewBaseNode(name, audiocore.NodeKindSource, 0, 1, format)}
	if err := t.SetFrequency(frequency); err != nil {
		return nil, err
	}
	if err := t.SetAmplitude(amplitude); err != nil {
		return nil, err
	}
	return t, nil
}

// Frequency returns the tone frequency in Hz
func (t *Tone) Frequency() float64 {
	return math.Float64frombits(t.frequency.Load())
}

// SetFrequency changes the tone frequency
func (t *Tone) SetFrequency(hz float64) error {
	nyquist := t.OutputFormat(0).SampleRate / 2
	if hz <= 0 || hz >= nyquist || math.IsNaN(hz) {
		return paramError("frequency", hz, "must be between 0 and Nyquist")
	}
	t.frequency.Store(math.Float64bits(hz))
	return nil
}

// Amplitude returns the peak amplitude
func (t *Tone) Amplitude() float32 {
	return math.Float32frombits(t.amplitude.Load())
}

// SetAmplitude changes the peak amplitude
func (t *Tone) SetAmplitude(a float32) error {
	if a < 0 || a > 1 {
		return paramError("amplitude", a, "must be between 0 and 1")
	}
	t.amplitude.Store(math.Float32bits(a))
	return nil
}

// Render writes the same sine sample to every channel of each frame
func (t *Tone) Render(_ audiocore.Inputs, _ int, dst *audiocore.PCMBuffer) error {
	format := t.OutputFormat(0)
	step := 2 * math.Pi * t.Frequency() / format.SampleRate
	amp := float64(t.Amplitude())
	samples := dst.Samples()
	ch := format.Channels

	for f := range dst.FrameLength() {
		v := float32(amp * math.Sin(t.phase))
		for c := range ch {
			samples[f*ch+c] = v
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return nil
}
