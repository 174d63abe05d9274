package audiocore

import (
	"context"
	"math"
	"time"

	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// FileSink receives rendered frames. FramePosition is the absolute number of
// frames written so far.
type FileSink interface {
	Format() Format
	FramePosition() int64
	WriteFrames(buf *PCMBuffer) error
}

// RenderHandler observes every render result. For StatusSuccess buf holds
// the rendered frames. A returned error aborts the render.
type RenderHandler func(status RenderStatus, buf *PCMBuffer) error

// OfflineOptions tunes an offline render
type OfflineOptions struct {
	// MaxFrames caps a single render request. Zero means the buffer capacity.
	MaxFrames int
	// MaxStalls is the number of consecutive renders without progress
	// tolerated before the render fails with ErrRenderStalled
	MaxStalls int
	// RetryBackoff is the pause after StatusCannotRender
	RetryBackoff time.Duration
	// PreRender runs once after offline mode is enabled and before the first
	// render, so players can arm themselves
	PreRender func() error
}

// RenderResult summarizes an offline render
type RenderResult struct {
	TargetFrames   int64
	FramesRendered int64
	Buffers        int
	Stalls         int
	StatusCounts   map[RenderStatus]int
}

// Renders returns the total number of render calls made
func (r *RenderResult) Renders() int {
	total := 0
	for _, n := range r.StatusCounts {
		total += n
	}
	return total
}

// offlineEngine is the part of the transport the offline renderer drives
type offlineEngine interface {
	EnableOfflineMode(format Format, maxFrames int) error
	DisableOfflineMode() error
	RenderOffline(dst *PCMBuffer, frames int) (RenderStatus, error)
}

// OfflineRenderer drives the graph from the caller until a duration has been
// rendered
type OfflineRenderer struct {
	engine offlineEngine
	log    logger.Logger
}

// NewOfflineRenderer creates an offline renderer for the engine
func NewOfflineRenderer(engine offlineEngine, log logger.Logger) *OfflineRenderer {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("offline")
	}
	return &OfflineRenderer{engine: engine, log: log}
}

// Render renders durationSeconds of audio into target, one buffer at a time,
// passing each result to handler.
func (r *OfflineRenderer) Render(ctx context.Context, durationSeconds float64, target *PCMBuffer, opts OfflineOptions, handler RenderHandler) (*RenderResult, error) {
	if err := validateDuration(durationSeconds); err != nil {
		return nil, err
	}

	result := newRenderResult(target.Format().FramesFor(durationSeconds))
	if result.TargetFrames == 0 {
		return result, nil
	}

	remaining := func() int64 { return result.TargetFrames - result.FramesRendered }
	consume := func(status RenderStatus, buf *PCMBuffer) error {
		if handler == nil {
			return nil
		}
		return handler(status, buf)
	}

	err := r.run(ctx, target, opts, result, remaining, consume)
	return result, err
}

// RenderToFile renders until the sink's frame position reaches
// durationSeconds at the sink's sample rate.
func (r *OfflineRenderer) RenderToFile(ctx context.Context, sink FileSink, durationSeconds float64, opts OfflineOptions) (*RenderResult, error) {
	if err := validateDuration(durationSeconds); err != nil {
		return nil, err
	}

	format := sink.Format()
	result := newRenderResult(format.FramesFor(durationSeconds))
	if result.TargetFrames == 0 {
		return result, nil
	}

	frames := opts.MaxFrames
	if frames <= 0 {
		frames = DefaultMaxOfflineFrames
	}
	buf := NewPCMBuffer(format, frames)

	remaining := func() int64 { return result.TargetFrames - sink.FramePosition() }
	consume := func(status RenderStatus, buf *PCMBuffer) error {
		if status != StatusSuccess {
			return nil
		}
		return sink.WriteFrames(buf)
	}

	err := r.run(ctx, buf, opts, result, remaining, consume)
	if err == nil {
		r.log.Info("offline render to file complete",
			logger.Int64("frames", sink.FramePosition()),
			logger.Int("buffers", result.Buffers),
			logger.Int("stalls", result.Stalls))
	}
	return result, err
}

func (r *OfflineRenderer) run(ctx context.Context, buf *PCMBuffer, opts OfflineOptions, result *RenderResult,
	remaining func() int64, consume RenderHandler) error {
	if buf.FrameCapacity() == 0 {
		return newError(ErrConfiguration, "render buffer has no capacity")
	}

	maxFrames := buf.FrameCapacity()
	if opts.MaxFrames > 0 {
		maxFrames = min(maxFrames, opts.MaxFrames)
	}
	maxStalls := opts.MaxStalls
	if maxStalls <= 0 {
		maxStalls = DefaultMaxStalls
	}

	if err := r.engine.EnableOfflineMode(buf.Format(), maxFrames); err != nil {
		return err
	}
	defer func() {
		if err := r.engine.DisableOfflineMode(); err != nil {
			r.log.Warn("failed to leave offline mode", logger.Error(err))
		}
	}()

	if opts.PreRender != nil {
		if err := opts.PreRender(); err != nil {
			return wrapError(ErrRenderFatal, err, "pre_render")
		}
	}

	stalls := 0
	for {
		left := remaining()
		if left <= 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return wrapError(ErrRenderCancelled, err, "render_offline")
		}

		frames := int(min(int64(maxFrames), left))
		status, err := r.engine.RenderOffline(buf, frames)
		result.StatusCounts[status]++

		if cerr := consume(status, buf); cerr != nil {
			return wrapError(ErrRenderFatal, cerr, "consume_buffer")
		}
		if status == StatusError {
			if err == nil {
				return newError(ErrRenderFatal, "render reported an error status")
			}
			return wrapError(ErrRenderFatal, err, "render_offline")
		}

		progressed := status == StatusSuccess && buf.FrameLength() > 0
		if progressed {
			stalls = 0
			result.Buffers++
			result.FramesRendered += int64(buf.FrameLength())
			continue
		}

		stalls++
		result.Stalls++
		if stalls > maxStalls {
			return errors.Join(
				newError(ErrRenderStalled, "%d consecutive renders without progress", stalls),
				status.Err())
		}
		if status == StatusCannotRender && opts.RetryBackoff > 0 {
			if err := sleepContext(ctx, opts.RetryBackoff); err != nil {
				return wrapError(ErrRenderCancelled, err, "render_offline")
			}
		}
	}
}

func newRenderResult(target int64) *RenderResult {
	return &RenderResult{
		TargetFrames: target,
		StatusCounts: make(map[RenderStatus]int),
	}
}

func validateDuration(seconds float64) error {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return newError(ErrInvalidDuration, "duration %v seconds", seconds)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
