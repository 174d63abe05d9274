package audiocore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiograph/internal/logger"
)

// TransportState is the state of the engine transport
type TransportState int32

const (
	TransportStopped TransportState = iota
	TransportPreparing
	TransportRunning
	TransportRenderingOffline
)

// String returns the string representation of the state
func (s TransportState) String() string {
	switch s {
	case TransportStopped:
		return "stopped"
	case TransportPreparing:
		return "preparing"
	case TransportRunning:
		return "running"
	case TransportRenderingOffline:
		return "rendering_offline"
	default:
		return "unknown"
	}
}

// RenderFunc fills dst with the next period of audio. It is called from the
// driver's audio thread and must not block.
type RenderFunc func(dst *PCMBuffer)

// Driver is a live audio output backend
type Driver interface {
	// Name identifies the driver in logs
	Name() string
	// Prepare configures the device for the format and period size
	Prepare(format Format, periodFrames int) error
	// Start begins streaming, calling render once per period
	Start(render RenderFunc) error
	// Stop ends streaming and releases the device. Safe to call when stopped.
	Stop() error
	// SetInterruptHandler registers a callback for involuntary stream stops
	SetInterruptHandler(handler func(reason string))
}

// Category is the platform audio session category
type Category string

const (
	CategoryPlayback      Category = "playback"
	CategoryRecord        Category = "record"
	CategoryPlayAndRecord Category = "playandrecord"
)

// SessionConfigurator applies platform audio session settings before the
// device is prepared
type SessionConfigurator interface {
	Configure(category Category) error
}

// NopSessionConfigurator accepts every category
type NopSessionConfigurator struct{}

// Configure does nothing
func (NopSessionConfigurator) Configure(Category) error { return nil }

// RunIntent records whether the engine should be running. It is owned by a
// session and survives involuntary stops so recovery knows to restart.
type RunIntent struct {
	v atomic.Bool
}

// Set marks the engine as wanted running
func (i *RunIntent) Set() { i.v.Store(true) }

// Clear marks the engine as wanted stopped
func (i *RunIntent) Clear() { i.v.Store(false) }

// ShouldBeRunning reports the current intent
func (i *RunIntent) ShouldBeRunning() bool { return i.v.Load() }

// TransportConfig configures a Transport
type TransportConfig struct {
	Category     Category
	PeriodFrames int
}

// Transport drives the graph either from the driver clock (Running) or from
// the caller (RenderingOffline).
type Transport struct {
	mu           sync.Mutex
	state        atomic.Int32
	graph        *Graph
	driver       Driver
	configurator SessionConfigurator
	intent       *RunIntent
	config       TransportConfig
	log          logger.Logger

	// offline bookkeeping
	offlineMaxFrames int
	resumeLive       bool

	onInterrupt func(ChangeEvent)
}

// NewTransport creates a stopped transport for the graph
func NewTransport(graph *Graph, driver Driver, intent *RunIntent, config TransportConfig, log logger.Logger) *Transport {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("transport")
	}
	if intent == nil {
		intent = &RunIntent{}
	}
	if config.PeriodFrames <= 0 {
		config.PeriodFrames = DefaultPeriodFrames
	}
	if config.Category == "" {
		config.Category = CategoryPlayback
	}

	t := &Transport{
		graph:        graph,
		driver:       driver,
		configurator: NopSessionConfigurator{},
		intent:       intent,
		config:       config,
		log:          log,
	}
	driver.SetInterruptHandler(t.handleInterruption)
	return t
}

// SetSessionConfigurator replaces the session configuration hook
func (t *Transport) SetSessionConfigurator(c SessionConfigurator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c == nil {
		c = NopSessionConfigurator{}
	}
	t.configurator = c
}

// OnInterrupt registers the observer for involuntary stops
func (t *Transport) OnInterrupt(fn func(ChangeEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onInterrupt = fn
}

// State returns the current transport state
func (t *Transport) State() TransportState {
	return TransportState(t.state.Load())
}

// IsRunning reports whether the live stream is running
func (t *Transport) IsRunning() bool {
	return t.State() == TransportRunning
}

// ShouldBeRunning reports the run intent
func (t *Transport) ShouldBeRunning() bool {
	return t.intent.ShouldBeRunning()
}

func (t *Transport) setState(to TransportState) {
	from := TransportState(t.state.Swap(int32(to)))
	if from == to {
		return
	}
	t.log.Debug("transport state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()))
	GetMetrics().RecordTransportTransition(from, to)
}

// Prepare applies the session category and prepares the driver
func (t *Transport) Prepare() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prepareLocked()
}

func (t *Transport) prepareLocked() error {
	if err := t.configurator.Configure(t.config.Category); err != nil {
		return wrapError(ErrConfiguration, err, "configure_session")
	}
	if err := t.driver.Prepare(t.graph.Format(), t.config.PeriodFrames); err != nil {
		return wrapError(ErrConfiguration, err, "prepare_driver")
	}
	return nil
}

// Start prepares the driver and begins live rendering. On success the run
// intent is set. Starting a running transport is a no-op.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked()
}

func (t *Transport) startLocked() error {
	switch t.State() {
	case TransportRunning:
		return nil
	case TransportRenderingOffline:
		return newError(ErrOfflineActive, "cannot start live rendering")
	}

	t.setState(TransportPreparing)
	if err := t.prepareLocked(); err != nil {
		t.setState(TransportStopped)
		GetMetrics().RecordEngineStart(false)
		t.log.Error("engine prepare failed",
			logger.String("driver", t.driver.Name()),
			logger.Error(err))
		return err
	}

	t.graph.SetLive(true)
	if err := t.driver.Start(t.renderLive); err != nil {
		t.graph.SetLive(false)
		_ = t.driver.Stop()
		t.setState(TransportStopped)
		GetMetrics().RecordEngineStart(false)
		t.log.Error("engine start failed",
			logger.String("driver", t.driver.Name()),
			logger.Error(err))
		return wrapError(ErrEngineStart, err, "start_driver")
	}

	t.setState(TransportRunning)
	t.intent.Set()
	GetMetrics().RecordEngineStart(true)
	t.log.Info("engine started",
		logger.String("driver", t.driver.Name()),
		logger.String("format", t.graph.Format().String()))
	return nil
}

// Stop ends live rendering and releases the driver. The run intent is cleared
// only when clearIntent is set.
func (t *Transport) Stop(clearIntent bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if clearIntent {
		t.intent.Clear()
	}
	return t.stopLocked()
}

func (t *Transport) stopLocked() error {
	if t.State() == TransportStopped {
		return nil
	}
	err := t.driver.Stop()
	t.graph.SetLive(false)
	t.setState(TransportStopped)
	if err != nil {
		t.log.Warn("driver stop reported an error", logger.Error(err))
		return wrapError(ErrConfiguration, err, "driver_stop")
	}
	return nil
}

// handleInterruption runs when the driver stream stops on its own. The
// intent is kept so recovery can restart the engine.
func (t *Transport) handleInterruption(reason string) {
	t.mu.Lock()
	if t.State() != TransportRunning {
		t.mu.Unlock()
		return
	}
	_ = t.driver.Stop()
	t.graph.SetLive(false)
	t.setState(TransportStopped)
	observer := t.onInterrupt
	t.mu.Unlock()

	t.log.Warn("engine interrupted", logger.String("reason", reason))
	if observer != nil {
		observer(ChangeEvent{
			Kind:    ConfigurationChange,
			Reason:  reason,
			Payload: map[string]any{"driver": t.driver.Name()},
			Time:    time.Now(),
		})
	}
}

// renderLive is the driver callback. Anything but a successful render
// produces silence.
func (t *Transport) renderLive(dst *PCMBuffer) {
	start := time.Now()
	frames := dst.FrameLength()
	status, err := t.graph.Render(dst, frames)
	if status != StatusSuccess {
		dst.SetFrameLength(frames)
		dst.Silence()
	}
	if err != nil {
		t.log.Trace("live render failed", logger.Error(err))
	}
	GetMetrics().RecordRender("live", status, frames, time.Since(start))
}

// EnableOfflineMode switches to caller-driven rendering. A running live
// stream is stopped first with its intent kept.
func (t *Transport) EnableOfflineMode(format Format, maxFrames int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() == TransportRenderingOffline {
		return newError(ErrOfflineActive, "offline mode already enabled")
	}
	if !format.SameRate(t.graph.Format()) {
		return newError(ErrFormatMismatch, "offline rate %g Hz, graph runs at %g Hz",
			format.SampleRate, t.graph.Format().SampleRate)
	}
	if maxFrames <= 0 {
		return newError(ErrConfiguration, "offline max frames %d", maxFrames)
	}

	// A failed driver stop is logged by stopLocked; the transport is
	// stopped either way and live playback resumes after the render.
	t.resumeLive = t.State() == TransportRunning
	if t.resumeLive {
		_ = t.stopLocked()
	}

	t.offlineMaxFrames = maxFrames
	t.graph.SetLive(false)
	t.setState(TransportRenderingOffline)
	t.log.Debug("offline mode enabled",
		logger.String("format", format.String()),
		logger.Int("max_frames", maxFrames),
		logger.Bool("resume_live", t.resumeLive))
	return nil
}

// DisableOfflineMode leaves offline mode. The live stream is restarted when
// it was running before and the intent is still set.
func (t *Transport) DisableOfflineMode() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() != TransportRenderingOffline {
		return nil
	}
	t.setState(TransportStopped)

	resume := t.resumeLive
	t.resumeLive = false
	if resume && t.intent.ShouldBeRunning() {
		return t.startLocked()
	}
	return nil
}

// MaxOfflineFrames returns the largest render request in offline mode
func (t *Transport) MaxOfflineFrames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offlineMaxFrames
}

// RenderOffline renders up to frames frames into dst
func (t *Transport) RenderOffline(dst *PCMBuffer, frames int) (RenderStatus, error) {
	if t.State() != TransportRenderingOffline {
		return StatusError, newError(ErrRenderFatal, "transport is %s, not rendering offline", t.State())
	}
	start := time.Now()
	status, err := t.graph.Render(dst, frames)
	GetMetrics().RecordRender("offline", status, dst.FrameLength(), time.Since(start))
	return status, err
}
