package export

import (
	"sync"

	"github.com/tphakala/audiograph/internal/audiocore"
)

// MemorySink collects rendered frames in memory
type MemorySink struct {
	format audiocore.Format

	mu      sync.Mutex
	samples []float32
}

// NewMemorySink creates an empty sink
func NewMemorySink(format audiocore.Format) *MemorySink {
	return &MemorySink{format: format}
}

// Format returns the sink format
func (s *MemorySink) Format() audiocore.Format { return s.format }

// FramePosition returns the number of frames collected
func (s *MemorySink) FramePosition() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.samples) / s.format.Channels)
}

// WriteFrames appends the valid frames of buf, converting channels if needed
func (s *MemorySink) WriteFrames(buf *audiocore.PCMBuffer) error {
	samples := buf.Samples()
	if buf.Format().Channels != s.format.Channels {
		converted := audiocore.NewPCMBuffer(s.format, buf.FrameLength())
		converted.CopyFrom(buf)
		samples = converted.Samples()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, samples...)
	return nil
}

// Samples returns a copy of the collected interleaved samples
func (s *MemorySink) Samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.samples...)
}

// Close does nothing; MemorySink satisfies Sink
func (s *MemorySink) Close() error { return nil }
