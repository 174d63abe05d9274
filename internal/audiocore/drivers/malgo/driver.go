package malgo

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// Config selects the playback backend and device
type Config struct {
	Backend  string // "auto", "alsa", "pulseaudio", "wasapi", "coreaudio", "null"
	DeviceID string // catalog device ID, empty for the system default
}

// Driver plays the engine output on a miniaudio playback device. It
// implements audiocore.Driver.
type Driver struct {
	config Config
	log    logger.Logger

	mu        sync.Mutex
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	format    audiocore.Format
	period    int
	interrupt func(reason string)

	// render state, touched only on the device thread while started
	render audiocore.RenderFunc
	buf    *audiocore.PCMBuffer

	stopping atomic.Bool
}

// NewDriver creates a playback driver
func NewDriver(config Config, log logger.Logger) *Driver {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("malgo")
	}
	return &Driver{config: config, log: log}
}

// Name returns "malgo"
func (d *Driver) Name() string { return "malgo" }

// Prepare initializes the backend context and records the stream format
func (d *Driver) Prepare(format audiocore.Format, periodFrames int) error {
	if err := format.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		ctx, err := initContext(d.config.Backend)
		if err != nil {
			return err
		}
		d.ctx = ctx
	}
	d.format = format
	d.period = periodFrames
	return nil
}

// Start opens the playback device and begins streaming
func (d *Driver) Start(render audiocore.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil {
		return errors.Newf("driver not prepared").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("driver", d.Name()).
			Build()
	}
	if d.device != nil {
		return nil
	}

	info, err := findDevice(d.ctx, malgo.Playback, d.config.DeviceID)
	if err != nil {
		return err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(d.format.Channels)
	cfg.SampleRate = uint32(d.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(max(d.period, 0))
	cfg.Alsa.NoMMap = 1
	if info != nil {
		cfg.Playback.DeviceID = info.ID.Pointer()
	}

	d.render = render
	d.buf = audiocore.NewPCMBuffer(d.format, max(d.period, audiocore.DefaultPeriodFrames))

	device, err := malgo.InitDevice(d.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.onData,
		Stop: d.onStop,
	})
	if err != nil {
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "init_device").
			Context("device_id", d.config.DeviceID).
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "start_device").
			Build()
	}
	d.device = device

	d.log.Info("playback device started",
		logger.String("device_id", d.config.DeviceID),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.Int("channels", int(device.PlaybackChannels())))
	return nil
}

// onData renders one period into the device output
func (d *Driver) onData(out, _ []byte, frameCount uint32) {
	frames := int(frameCount)
	if frames > d.buf.FrameCapacity() {
		d.buf = audiocore.NewPCMBuffer(d.format, frames)
	}
	d.buf.SetFrameLength(frames)
	d.render(d.buf)
	encodeFloat32(out, d.buf.Samples())
}

// onStop runs on every device stop. Only stops the driver did not request
// are reported as interruptions.
func (d *Driver) onStop() {
	if d.stopping.Load() {
		return
	}
	d.mu.Lock()
	handler := d.interrupt
	d.mu.Unlock()

	d.log.Warn("playback device stopped unexpectedly")
	if handler != nil {
		go handler("playback device stopped")
	}
}

// Stop stops and releases the playback device
func (d *Driver) Stop() error {
	d.mu.Lock()
	device := d.device
	d.device = nil
	d.mu.Unlock()

	if device == nil {
		return nil
	}
	d.stopping.Store(true)
	defer d.stopping.Store(false)

	err := device.Stop()
	device.Uninit()
	if err != nil {
		return errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryDevice).
			Context("operation", "stop_device").
			Build()
	}
	return nil
}

// SetInterruptHandler registers the involuntary stop callback
func (d *Driver) SetInterruptHandler(handler func(reason string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interrupt = handler
}

// Close stops the device and releases the backend context
func (d *Driver) Close() error {
	err := d.Stop()
	d.mu.Lock()
	defer d.mu.Unlock()
	releaseContext(d.ctx)
	d.ctx = nil
	return err
}
