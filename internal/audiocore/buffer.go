package audiocore

import (
	"math"

	"github.com/go-audio/audio"
)

// PCMBuffer holds interleaved float32 frames with a fixed frame capacity and
// a variable frame length. The backing store is a go-audio Float32Buffer.
type PCMBuffer struct {
	buf           *audio.Float32Buffer
	format        Format
	frameCapacity int
	frameLength   int
}

// NewPCMBuffer allocates a buffer for frameCapacity frames of the format
func NewPCMBuffer(format Format, frameCapacity int) *PCMBuffer {
	if frameCapacity < 0 {
		frameCapacity = 0
	}
	return &PCMBuffer{
		buf: &audio.Float32Buffer{
			Format: format.AudioFormat(),
			Data:   make([]float32, frameCapacity*format.Channels),
		},
		format:        format,
		frameCapacity: frameCapacity,
	}
}

// Format returns the buffer format
func (b *PCMBuffer) Format() Format { return b.format }

// FrameCapacity returns the maximum number of frames the buffer holds
func (b *PCMBuffer) FrameCapacity() int { return b.frameCapacity }

// FrameLength returns the number of valid frames
func (b *PCMBuffer) FrameLength() int { return b.frameLength }

// SetFrameLength sets the number of valid frames, clamped to capacity
func (b *PCMBuffer) SetFrameLength(frames int) {
	b.frameLength = min(max(frames, 0), b.frameCapacity)
}

// Samples returns the interleaved samples of the valid frames
func (b *PCMBuffer) Samples() []float32 {
	return b.buf.Data[:b.frameLength*b.format.Channels]
}

// Silence zeroes the valid frames
func (b *PCMBuffer) Silence() {
	clear(b.Samples())
}

// Reset zeroes the whole buffer and sets the length to zero
func (b *PCMBuffer) Reset() {
	clear(b.buf.Data)
	b.frameLength = 0
}

// ensureCapacity grows the buffer to hold at least frames frames
func (b *PCMBuffer) ensureCapacity(frames int) {
	if frames <= b.frameCapacity {
		return
	}
	b.buf.Data = make([]float32, frames*b.format.Channels)
	b.frameCapacity = frames
}

// Float32Buffer returns a go-audio view of the valid frames
func (b *PCMBuffer) Float32Buffer() *audio.Float32Buffer {
	return &audio.Float32Buffer{
		Format: b.buf.Format,
		Data:   b.Samples(),
	}
}

// IntBuffer converts the valid frames to integer PCM at the given bit depth,
// clipping to [-1, 1].
func (b *PCMBuffer) IntBuffer(bitDepth int) *audio.IntBuffer {
	scale := float64(int64(1)<<(bitDepth-1)) - 1
	samples := b.Samples()
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * scale))
	}
	return &audio.IntBuffer{
		Format:         b.buf.Format,
		Data:           data,
		SourceBitDepth: bitDepth,
	}
}

// CopyFrom copies frames from src, adapting channel counts. The destination
// length is set to the number of frames copied.
func (b *PCMBuffer) CopyFrom(src *PCMBuffer) {
	b.SetFrameLength(src.frameLength)
	convertChannels(src.Samples(), src.format.Channels, b.Samples(), b.format.Channels, b.frameLength)
}

// MixFrom adds frames from src into the buffer, adapting channel counts
func (b *PCMBuffer) MixFrom(src *PCMBuffer, gain float32) {
	frames := min(src.frameLength, b.frameLength)
	srcCh, dstCh := src.format.Channels, b.format.Channels
	in, out := src.Samples(), b.Samples()

	for f := range frames {
		for c := range dstCh {
			out[f*dstCh+c] += gain * sampleFor(in, f, c, srcCh, dstCh)
		}
	}
}

// convertChannels copies frames between interleaved layouts. Mono is spread
// to every output channel, multi-channel folds to mono by averaging, and other
// mismatches copy the shared channels and zero the rest.
func convertChannels(in []float32, inCh int, out []float32, outCh, frames int) {
	if inCh == outCh {
		copy(out[:frames*outCh], in[:frames*inCh])
		return
	}
	for f := range frames {
		for c := range outCh {
			out[f*outCh+c] = sampleFor(in, f, c, inCh, outCh)
		}
	}
}

func sampleFor(in []float32, frame, ch, inCh, outCh int) float32 {
	switch {
	case inCh == outCh:
		return in[frame*inCh+ch]
	case inCh == 1:
		return in[frame]
	case outCh == 1:
		var sum float32
		for c := range inCh {
			sum += in[frame*inCh+c]
		}
		return sum / float32(inCh)
	case ch < inCh:
		return in[frame*inCh+ch]
	default:
		return 0
	}
}
