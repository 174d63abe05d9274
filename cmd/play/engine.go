package play

import (
	"fmt"
	"time"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/audiocore/drivers/malgo"
	"github.com/tphakala/audiograph/internal/audiocore/drivers/null"
	"github.com/tphakala/audiograph/internal/audiocore/nodes"
	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/events"
	"github.com/tphakala/audiograph/internal/logger"
)

// engine bundles a session with the driver, route watcher and capture
// sources feeding it
type engine struct {
	settings *conf.Settings
	session  *audiocore.Session
	driver   audiocore.Driver
	watcher  *audiocore.RouteWatcher
	captures []*malgo.CaptureSource
	log      logger.Logger
}

func newEngine(settings *conf.Settings, bus *events.EventBus, log logger.Logger) (*engine, error) {
	e := &engine{settings: settings, log: log}
	opts := []audiocore.SessionOption{
		audiocore.WithLogger(log.Module("engine")),
		audiocore.WithPublisher(bus),
	}

	switch settings.Engine.Driver {
	case conf.DriverNull:
		e.driver = null.New(null.Config{}, log.Module("null_driver"))

	case conf.DriverMalgo:
		e.driver = malgo.NewDriver(malgo.Config{
			Backend:  settings.Engine.Backend,
			DeviceID: settings.Engine.OutputDevice,
		}, log.Module("malgo"))

		enumerator := malgo.Enumerator{Backend: settings.Engine.Backend}
		catalog := audiocore.NewDeviceCatalog(enumerator, settings.Devices.CacheTTL, log.Module("devices"))
		opts = append(opts, audiocore.WithCacheInvalidator(catalog))
		if settings.Recovery.RoutePollInterval > 0 {
			e.watcher = audiocore.NewRouteWatcher(enumerator, settings.Recovery.RoutePollInterval,
				e.notify, log.Module("route_watcher"))
		}

	default:
		return nil, fmt.Errorf("unknown driver %q", settings.Engine.Driver)
	}

	session, err := audiocore.NewSession(audiocore.SessionConfigFromSettings(settings), e.driver, opts...)
	if err != nil {
		return nil, err
	}
	e.session = session
	return e, nil
}

// notify forwards change events once the session exists
func (e *engine) notify(ev audiocore.ChangeEvent) bool {
	if e.session == nil {
		return false
	}
	return e.session.Notify(ev)
}

// startCapture records from the input device into every input node. With
// the null driver input nodes stay empty and render silence.
func (e *engine) startCapture(inputs map[string]*nodes.Input) error {
	if len(inputs) == 0 {
		return nil
	}
	if e.settings.Engine.Driver == conf.DriverNull {
		e.log.Warn("input nodes have no capture source with the null driver", logger.Int("inputs", len(inputs)))
		return nil
	}

	for name, in := range inputs {
		capture := malgo.NewCaptureSource(malgo.Config{
			Backend:  e.settings.Engine.Backend,
			DeviceID: e.settings.Engine.InputDevice,
		}, in.OutputFormat(0), in, e.log.Module("capture").With(logger.String("node", name)))

		capture.OnStop(func(reason string) {
			in.Reset()
			e.notify(audiocore.ChangeEvent{
				Kind:    audiocore.ConfigurationChange,
				Reason:  reason,
				Payload: map[string]any{"node": name},
				Time:    time.Now(),
			})

			// Reopen on whatever device now matches the configured ID
			if err := capture.Stop(); err != nil {
				e.log.Warn("releasing stopped capture device", logger.Error(err))
			}
			if err := capture.Start(); err != nil {
				e.log.Error("reopening capture device", logger.String("node", name), logger.Error(err))
			}
		})
		if err := capture.Start(); err != nil {
			return err
		}
		e.captures = append(e.captures, capture)
	}
	return nil
}

func (e *engine) captureDropped() uint64 {
	var total uint64
	for _, c := range e.captures {
		total += c.Dropped()
	}
	return total
}

func (e *engine) close() {
	for _, c := range e.captures {
		if err := c.Stop(); err != nil {
			e.log.Warn("stopping capture", logger.Error(err))
		}
	}
	if err := e.session.Close(); err != nil {
		e.log.Warn("closing session", logger.Error(err))
	}
	if closer, ok := e.driver.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			e.log.Warn("closing driver", logger.Error(err))
		}
	}
}
