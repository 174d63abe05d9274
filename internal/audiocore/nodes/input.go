package nodes

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

const bytesPerSample = 4

// Input feeds externally captured audio into the graph. A producer, usually a
// capture callback, writes interleaved float32 frames with Write; the graph
// reads them back on render. When fewer frames are queued than a render
// needs, the node outputs silence and reports audiocore.ErrInsufficientInput.
type Input struct {
	audiocore.BaseNode
	rb         *ringbuffer.RingBuffer
	frameBytes int
	scratch    []byte
	overruns   atomic.Uint64
	underruns  atomic.Uint64
	log        logger.Logger
}

// NewInput creates an input node queueing up to capacityFrames frames
func NewInput(name string, format audiocore.Format, capacityFrames int) (*Input, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if capacityFrames <= 0 {
		return nil, paramError("capacity", capacityFrames, "must be positive")
	}
	frameBytes := format.Channels * bytesPerSample
	return &Input{
		BaseNode:   audiocore.NewBaseNode(name, audiocore.NodeKindInput, 0, 1, format),
		rb:         ringbuffer.New(capacityFrames * frameBytes),
		frameBytes: frameBytes,
		log:        GetLogger().With(logger.String("node", name)),
	}, nil
}

// Write queues interleaved samples and returns the number of whole frames
// queued. Frames that do not fit are dropped and counted as overruns.
func (n *Input) Write(samples []float32) int {
	ch := n.OutputFormat(0).Channels
	frames := len(samples) / ch
	fit := min(frames, n.rb.Free()/n.frameBytes)
	if fit < frames {
		n.overruns.Add(uint64(frames - fit))
	}
	if fit == 0 {
		return 0
	}

	buf := make([]byte, fit*n.frameBytes)
	for i, s := range samples[:fit*ch] {
		binary.LittleEndian.PutUint32(buf[i*bytesPerSample:], math.Float32bits(s))
	}
	written, err := n.rb.Write(buf)
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		n.log.Warn("input queue write failed", logger.Error(err))
	}
	return written / n.frameBytes
}

// Available returns the number of queued frames
func (n *Input) Available() int {
	return n.rb.Length() / n.frameBytes
}

// Overruns returns the number of frames dropped because the queue was full
func (n *Input) Overruns() uint64 { return n.overruns.Load() }

// Underruns returns the number of renders that found too few frames
func (n *Input) Underruns() uint64 { return n.underruns.Load() }

// Reset drops all queued frames
func (n *Input) Reset() {
	n.rb.Reset()
}

// Render dequeues exactly the requested frames, or none at all
func (n *Input) Render(_ audiocore.Inputs, _ int, dst *audiocore.PCMBuffer) error {
	frames := dst.FrameLength()
	need := frames * n.frameBytes
	if n.rb.Length() < need {
		dst.Silence()
		n.underruns.Add(1)
		return errors.Newf("%w: %d of %d frames queued", audiocore.ErrInsufficientInput, n.Available(), frames).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryRender).
			Context("node", n.Name()).
			Build()
	}

	if cap(n.scratch) < need {
		n.scratch = make([]byte, need)
	}
	buf := n.scratch[:need]
	read, err := n.rb.Read(buf)
	if err != nil {
		dst.Silence()
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryBuffer).
			Context("node", n.Name()).
			Build()
	}

	samples := dst.Samples()
	for i := range read / bytesPerSample {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*bytesPerSample:]))
	}
	clear(samples[read/bytesPerSample:])
	return nil
}
