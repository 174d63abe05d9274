package malgo

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// SampleWriter receives captured interleaved float32 frames, typically a
// nodes.Input
type SampleWriter interface {
	Write(samples []float32) int
}

// CaptureSource records from a miniaudio capture device into a SampleWriter
type CaptureSource struct {
	config Config
	format audiocore.Format
	sink   SampleWriter
	log    logger.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	samples []float32
	onStop  func(reason string)

	stopping atomic.Bool
	dropped  atomic.Uint64
}

// NewCaptureSource creates a capture source delivering frames in format
func NewCaptureSource(config Config, format audiocore.Format, sink SampleWriter, log logger.Logger) *CaptureSource {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("malgo")
	}
	return &CaptureSource{config: config, format: format, sink: sink, log: log}
}

// OnStop registers a callback for capture stops the source did not request
func (c *CaptureSource) OnStop(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStop = fn
}

// Start opens the capture device and begins recording
func (c *CaptureSource) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return errors.Newf("capture already running").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Build()
	}
	if err := c.format.Validate(); err != nil {
		return err
	}

	ctx, err := initContext(c.config.Backend)
	if err != nil {
		return err
	}
	info, err := findDevice(ctx, malgo.Capture, c.config.DeviceID)
	if err != nil {
		releaseContext(ctx)
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(c.format.Channels)
	cfg.SampleRate = uint32(c.format.SampleRate)
	cfg.Alsa.NoMMap = 1
	if info != nil {
		cfg.Capture.DeviceID = info.ID.Pointer()
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onDeviceStop,
	})
	if err != nil {
		releaseContext(ctx)
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "init_device").
			Context("device_id", c.config.DeviceID).
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(ctx)
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "start_device").
			Build()
	}

	c.ctx = ctx
	c.device = device
	c.log.Info("capture device started",
		logger.String("device_id", c.config.DeviceID),
		logger.Int("sample_rate", int(device.SampleRate())))
	return nil
}

func (c *CaptureSource) onData(_, in []byte, frameCount uint32) {
	n := int(frameCount) * c.format.Channels
	if cap(c.samples) < n {
		c.samples = make([]float32, n)
	}
	samples := c.samples[:n]
	n = decodeFloat32(samples, in)
	frames := n / c.format.Channels
	if written := c.sink.Write(samples[:n]); written < frames {
		c.dropped.Add(uint64(frames - written))
	}
}

func (c *CaptureSource) onDeviceStop() {
	if c.stopping.Load() {
		return
	}
	c.mu.Lock()
	fn := c.onStop
	c.mu.Unlock()

	c.log.Warn("capture device stopped unexpectedly")
	if fn != nil {
		go fn("capture device stopped")
	}
}

// Dropped returns the number of captured frames the sink could not take
func (c *CaptureSource) Dropped() uint64 { return c.dropped.Load() }

// Stop stops recording and releases the device
func (c *CaptureSource) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	c.stopping.Store(true)
	defer c.stopping.Store(false)

	err := c.device.Stop()
	c.device.Uninit()
	releaseContext(c.ctx)
	c.device, c.ctx = nil, nil
	if err != nil {
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}
