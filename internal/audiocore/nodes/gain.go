package nodes

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/audiograph/internal/audiocore"
)

// MaxGain is the largest linear gain a Gain node accepts
const MaxGain = 10.0

// Gain scales its single input by a linear factor
type Gain struct {
	audiocore.BaseNode
	gain atomic.Uint32 // float32 bits
}

// NewGain creates a gain effect with the given initial factor
func NewGain(name string, format audiocore.Format, gain float32) (*Gain, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	g := &Gain{BaseNode: audiocore.NewBaseNode(name, audiocore.NodeKindEffect, 1, 1, format)}
	if err := g.SetGain(gain); err != nil {
		return nil, err
	}
	return g, nil
}

// Gain returns the current factor
func (g *Gain) Gain() float32 {
	return math.Float32frombits(g.gain.Load())
}

// SetGain changes the factor. Safe to call while rendering.
func (g *Gain) SetGain(gain float32) error {
	if gain < 0 || gain > MaxGain || math.IsNaN(float64(gain)) {
		return paramError("gain", gain, "must be between 0 and 10")
	}
	g.gain.Store(math.Float32bits(gain))
	return nil
}

// Render pulls bus 0 and applies the gain
func (g *Gain) Render(in audiocore.Inputs, _ int, dst *audiocore.PCMBuffer) error {
	fed, err := in.Pull(0, dst)
	if err != nil || !fed {
		return err
	}
	gain := g.Gain()
	if gain == 1 {
		return nil
	}
	samples := dst.Samples()
	for i := range samples {
		samples[i] *= gain
	}
	return nil
}
