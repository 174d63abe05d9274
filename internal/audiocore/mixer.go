package audiocore

import (
	"math"
	"sync/atomic"
)

// MixerNode sums any number of input buses into a single output bus. Its input
// bus count is managed by the graph: it grows when connections need more
// buses and never shrinks.
type MixerNode struct {
	BaseNode
	busCount int
	volume   atomic.Uint32
	scratch  *PCMBuffer
}

// NewMixerNode creates a mixer with no input buses
func NewMixerNode(name string, format Format) *MixerNode {
	m := &MixerNode{BaseNode: NewBaseNode(name, NodeKindMixer, 0, 1, format)}
	m.volume.Store(math.Float32bits(1))
	return m
}

// NumInputs returns the current input bus count
func (m *MixerNode) NumInputs() int { return m.busCount }

// Volume returns the output gain
func (m *MixerNode) Volume() float32 {
	return math.Float32frombits(m.volume.Load())
}

// SetVolume sets the output gain. Safe to call while rendering.
func (m *MixerNode) SetVolume(v float32) {
	m.volume.Store(math.Float32bits(v))
}

// growTo raises the bus count to at least n. Called with the graph write lock.
func (m *MixerNode) growTo(n int) {
	if n > m.busCount {
		m.busCount = n
	}
}

// Render sums every fed input bus into dst. Only connected buses are pulled,
// so sparse high bus indices cost nothing per cycle.
func (m *MixerNode) Render(in Inputs, _ int, dst *PCMBuffer) error {
	dst.Silence()
	frames := dst.FrameLength()
	if m.scratch == nil {
		m.scratch = NewPCMBuffer(m.format, frames)
	}
	m.scratch.ensureCapacity(frames)
	m.scratch.SetFrameLength(frames)

	gain := m.Volume()
	for _, bus := range in.Connected() {
		fed, err := in.Pull(bus, m.scratch)
		if err != nil {
			return err
		}
		if fed {
			dst.MixFrom(m.scratch, gain)
		}
	}
	return nil
}
