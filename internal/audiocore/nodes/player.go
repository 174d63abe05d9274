package nodes

import (
	"sync/atomic"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/logger"
)

// Player is a source node that plays a decoded clip. It renders silence
// until Play is called and after the clip ends, unless looping.
type Player struct {
	audiocore.BaseNode
	clip     *Clip
	scratch  *audiocore.PCMBuffer // clip format
	out      *audiocore.PCMBuffer // output format
	position atomic.Int64
	playing  atomic.Bool
	loop     atomic.Bool
	finished atomic.Bool
}

// NewPlayer creates a player for the clip, resampling it to the format's
// sample rate. The clip keeps its own channel count and is adapted to the
// output channels on render.
func NewPlayer(name string, format audiocore.Format, clip *Clip) (*Player, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if clip == nil {
		return nil, paramError("clip", nil, "must not be nil")
	}
	resampled := clip.Resample(format.SampleRate)
	if resampled != clip {
		GetLogger().Debug("clip resampled",
			logger.String("node", name),
			logger.Float64("from_rate", clip.Format.SampleRate),
			logger.Float64("to_rate", format.SampleRate),
			logger.Int("frames", resampled.Frames()))
	}
	return &Player{
		BaseNode: audiocore.NewBaseNode(name, audiocore.NodeKindSource, 0, 1, format),
		clip:     resampled,
	}, nil
}

// LoadPlayer decodes the file and creates a player for it
func LoadPlayer(name string, format audiocore.Format, path string) (*Player, error) {
	clip, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	return NewPlayer(name, format, clip)
}

// Play starts or resumes playback
func (p *Player) Play() {
	p.finished.Store(false)
	p.playing.Store(true)
}

// Pause stops playback and keeps the position
func (p *Player) Pause() { p.playing.Store(false) }

// Stop stops playback and rewinds
func (p *Player) Stop() {
	p.playing.Store(false)
	p.position.Store(0)
}

// SetLoop makes playback restart from the beginning at the end of the clip
func (p *Player) SetLoop(loop bool) { p.loop.Store(loop) }

// Playing reports whether the player is producing audio
func (p *Player) Playing() bool { return p.playing.Load() }

// Finished reports whether playback reached the end of the clip
func (p *Player) Finished() bool { return p.finished.Load() }

// Position returns the playback position in frames
func (p *Player) Position() int64 { return p.position.Load() }

// Frames returns the clip length in frames at the output rate
func (p *Player) Frames() int64 { return int64(p.clip.Frames()) }

// Render copies the next frames of the clip into dst
func (p *Player) Render(_ audiocore.Inputs, _ int, dst *audiocore.PCMBuffer) error {
	frames := dst.FrameLength()
	if !p.playing.Load() {
		dst.Silence()
		return nil
	}

	if p.scratch == nil || p.scratch.FrameCapacity() < frames {
		p.scratch = audiocore.NewPCMBuffer(p.clip.Format, frames)
	}
	if p.out == nil || p.out.FrameCapacity() < frames || p.out.Format() != dst.Format() {
		p.out = audiocore.NewPCMBuffer(dst.Format(), frames)
	}

	ch := p.clip.Format.Channels
	outCh := dst.Format().Channels
	total := p.clip.Frames()
	pos := int(p.position.Load())
	done := 0
	for done < frames {
		if pos >= total {
			if !p.loop.Load() || total == 0 {
				break
			}
			pos = 0
		}
		n := min(frames-done, total-pos)
		p.scratch.SetFrameLength(n)
		copy(p.scratch.Samples(), p.clip.Samples[pos*ch:(pos+n)*ch])
		p.out.CopyFrom(p.scratch)
		copy(dst.Samples()[done*outCh:], p.out.Samples())
		pos += n
		done += n
	}

	clear(dst.Samples()[done*outCh:])
	p.position.Store(int64(pos))
	if done < frames {
		p.playing.Store(false)
		p.finished.Store(true)
	}
	return nil
}
