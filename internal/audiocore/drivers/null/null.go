// Package null provides a headless audio driver clocked by a ticker. It
// renders the graph on schedule and hands each period to an optional output
// hook instead of a sound card, which makes it suitable for CI and dry runs.
package null

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// Config configures the null driver
type Config struct {
	// Output receives every rendered period. It runs on the driver goroutine
	// and must not retain the buffer.
	Output func(buf *audiocore.PCMBuffer)

	// Interval overrides the period duration derived from the format. Zero
	// means real time.
	Interval time.Duration
}

// Driver implements audiocore.Driver without hardware
type Driver struct {
	config Config
	log    logger.Logger

	mu        sync.Mutex
	format    audiocore.Format
	period    int
	prepared  bool
	interrupt func(reason string)
	stop      chan struct{}
	done      chan struct{}

	periods atomic.Uint64
}

// New creates a null driver
func New(config Config, log logger.Logger) *Driver {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("null_driver")
	}
	return &Driver{config: config, log: log}
}

// Name returns "null"
func (d *Driver) Name() string { return "null" }

// Prepare records the format and period size
func (d *Driver) Prepare(format audiocore.Format, periodFrames int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if periodFrames <= 0 {
		return errors.Newf("invalid period size: %d", periodFrames).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryConfiguration).
			Context("driver", d.Name()).
			Build()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = format
	d.period = periodFrames
	d.prepared = true
	return nil
}

// Start begins the render loop
func (d *Driver) Start(render audiocore.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.prepared {
		return errors.Newf("driver not prepared").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("driver", d.Name()).
			Build()
	}
	if d.stop != nil {
		return errors.Newf("driver already running").
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryState).
			Context("driver", d.Name()).
			Build()
	}

	interval := d.config.Interval
	if interval <= 0 {
		interval = time.Duration(float64(d.period) / d.format.SampleRate * float64(time.Second))
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(render, audiocore.NewPCMBuffer(d.format, d.period), interval, d.stop, d.done)

	d.log.Debug("null driver started",
		logger.Int("period_frames", d.period),
		logger.Duration("interval", interval))
	return nil
}

func (d *Driver) loop(render audiocore.RenderFunc, buf *audiocore.PCMBuffer, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			buf.SetFrameLength(buf.FrameCapacity())
			render(buf)
			d.periods.Add(1)
			if d.config.Output != nil {
				d.config.Output(buf)
			}
		}
	}
}

// Stop ends the render loop and waits for it to exit
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

func (d *Driver) stopLocked() bool {
	if d.stop == nil {
		return false
	}
	close(d.stop)
	<-d.done
	d.stop, d.done = nil, nil
	return true
}

// SetInterruptHandler registers the involuntary stop callback
func (d *Driver) SetInterruptHandler(handler func(reason string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interrupt = handler
}

// SimulateInterruption stops the stream as if the device went away and
// reports it to the interrupt handler on a new goroutine. It reports false
// when the driver was not running.
func (d *Driver) SimulateInterruption(reason string) bool {
	d.mu.Lock()
	stopped := d.stopLocked()
	handler := d.interrupt
	d.mu.Unlock()

	if !stopped {
		return false
	}
	d.log.Info("simulated interruption", logger.String("reason", reason))
	if handler != nil {
		go handler(reason)
	}
	return true
}

// Running reports whether the render loop is active
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stop != nil
}

// Periods returns the number of periods rendered since creation
func (d *Driver) Periods() uint64 { return d.periods.Load() }
