package audiocore

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
)

// NodeID uniquely identifies a node
type NodeID string

// NewNodeID returns a random node identifier
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// NodeKind classifies nodes by their role in the graph
type NodeKind int

const (
	// NodeKindSource produces audio and has no inputs
	NodeKindSource NodeKind = iota
	// NodeKindEffect transforms its inputs
	NodeKindEffect
	// NodeKindMixer sums a variable number of input buses
	NodeKindMixer
	// NodeKindInput feeds externally captured audio into the graph
	NodeKindInput
)

// String returns the string representation of the node kind
func (k NodeKind) String() string {
	switch k {
	case NodeKindSource:
		return "source"
	case NodeKindEffect:
		return "effect"
	case NodeKindMixer:
		return "mixer"
	case NodeKindInput:
		return "input"
	default:
		return "unknown"
	}
}

// Format describes PCM audio as sample rate and channel count. Samples are
// always interleaved float32.
type Format struct {
	SampleRate float64
	Channels   int
}

// Validate checks that the format is usable
func (f Format) Validate() error {
	if f.SampleRate <= 0 || math.IsNaN(f.SampleRate) || math.IsInf(f.SampleRate, 0) {
		return newError(ErrFormatMismatch, "invalid sample rate %v", f.SampleRate)
	}
	if f.Channels <= 0 {
		return newError(ErrFormatMismatch, "invalid channel count %d", f.Channels)
	}
	return nil
}

// IsZero reports whether the format is unset
func (f Format) IsZero() bool {
	return f.SampleRate == 0 && f.Channels == 0
}

// SameRate reports whether two formats share a sample rate
func (f Format) SameRate(other Format) bool {
	return f.SampleRate == other.SampleRate
}

// FramesFor returns the number of frames covering the given duration,
// rounded up so the duration is always fully rendered.
func (f Format) FramesFor(seconds float64) int64 {
	return int64(math.Ceil(seconds * f.SampleRate))
}

// AudioFormat converts to the go-audio format descriptor
func (f Format) AudioFormat() *audio.Format {
	return &audio.Format{
		NumChannels: f.Channels,
		SampleRate:  int(math.Round(f.SampleRate)),
	}
}

// FormatFromAudio converts a go-audio format descriptor
func FormatFromAudio(af *audio.Format) Format {
	if af == nil {
		return Format{}
	}
	return Format{SampleRate: float64(af.SampleRate), Channels: af.NumChannels}
}

// String returns e.g. "48000 Hz, 2 ch"
func (f Format) String() string {
	return fmt.Sprintf("%g Hz, %d ch", f.SampleRate, f.Channels)
}
