package audiocore

import (
	"context"
	"sync/atomic"

	"github.com/tphakala/audiograph/internal/conf"
	"github.com/tphakala/audiograph/internal/events"
	"github.com/tphakala/audiograph/internal/logger"
)

// SessionConfig configures an engine session
type SessionConfig struct {
	Format       Format
	PeriodFrames int
	Category     Category
	Recovery     RecoveryConfig
	Offline      OfflineOptions
}

// SessionConfigFromSettings maps loaded settings to a session configuration
func SessionConfigFromSettings(settings *conf.Settings) SessionConfig {
	return SessionConfig{
		Format: Format{
			SampleRate: settings.Engine.SampleRate,
			Channels:   settings.Engine.Channels,
		},
		PeriodFrames: settings.Engine.BufferFrames,
		Category:     Category(settings.Engine.Category),
		Recovery: RecoveryConfig{
			Enabled:            settings.Recovery.Enabled,
			Notifications:      settings.Recovery.Notifications,
			BackgroundAudio:    settings.Recovery.BackgroundAudio,
			MinRestartInterval: settings.Recovery.MinRestartInterval,
			InboxSize:          settings.Recovery.InboxSize,
		},
		Offline: OfflineOptions{
			MaxFrames:    settings.Render.MaxFrames,
			MaxStalls:    settings.Render.MaxStalls,
			RetryBackoff: settings.Render.RetryBackoff,
		},
	}
}

// SessionOption customizes a session
type SessionOption func(*Session)

// WithLogger sets the session logger
func WithLogger(log logger.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithPublisher sets where engine notifications are published
func WithPublisher(p Publisher) SessionOption {
	return func(s *Session) { s.publisher = p }
}

// WithLifecycle sets the foreground/background source for recovery
func WithLifecycle(l Lifecycle) SessionOption {
	return func(s *Session) { s.lifecycle = l }
}

// WithSessionConfigurator sets the platform session category hook
func WithSessionConfigurator(c SessionConfigurator) SessionOption {
	return func(s *Session) { s.configurator = c }
}

// WithCacheInvalidator registers a cache dropped on route changes
func WithCacheInvalidator(c CacheInvalidator) SessionOption {
	return func(s *Session) { s.invalidators = append(s.invalidators, c) }
}

// Session owns one engine: its graph, transport, connection manager,
// recovery loop and offline renderer, plus the run intent. The caller owns
// the session lifecycle and must call Close.
type Session struct {
	config SessionConfig
	intent *RunIntent

	graph       *Graph
	transport   *Transport
	connections *ConnectionManager
	recovery    *Recovery
	offline     *OfflineRenderer

	log          logger.Logger
	publisher    Publisher
	lifecycle    Lifecycle
	configurator SessionConfigurator
	invalidators []CacheInvalidator

	closed atomic.Bool
}

// NewSession builds a stopped engine session on the driver
func NewSession(config SessionConfig, driver Driver, opts ...SessionOption) (*Session, error) {
	s := &Session{
		config: config,
		intent: &RunIntent{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("audiocore")
	}

	graph, err := NewGraph(config.Format, s.log.Module("graph"))
	if err != nil {
		return nil, err
	}
	s.graph = graph

	s.transport = NewTransport(graph, driver, s.intent, TransportConfig{
		Category:     config.Category,
		PeriodFrames: config.PeriodFrames,
	}, s.log.Module("transport"))
	if s.configurator != nil {
		s.transport.SetSessionConfigurator(s.configurator)
	}

	s.connections = NewConnectionManager(graph, s.transport, s.log.Module("connections"))
	s.offline = NewOfflineRenderer(s.transport, s.log.Module("offline"))
	s.recovery = NewRecovery(config.Recovery, s.transport, s.lifecycle, s.publisher, s.log.Module("recovery"))
	for _, c := range s.invalidators {
		s.recovery.AddInvalidator(c)
	}
	s.transport.OnInterrupt(s.handleInterruption)

	s.log.Info("engine session created",
		logger.String("driver", driver.Name()),
		logger.String("format", config.Format.String()),
		logger.Bool("recovery", config.Recovery.Enabled))
	return s, nil
}

// Graph returns the session graph
func (s *Session) Graph() *Graph { return s.graph }

// Transport returns the session transport
func (s *Session) Transport() *Transport { return s.transport }

// Connections returns the connection manager
func (s *Session) Connections() *ConnectionManager { return s.connections }

// Recovery returns the recovery loop
func (s *Session) Recovery() *Recovery { return s.recovery }

// Offline returns the offline renderer
func (s *Session) Offline() *OfflineRenderer { return s.offline }

// ShouldBeRunning reports the run intent
func (s *Session) ShouldBeRunning() bool { return s.intent.ShouldBeRunning() }

// Start starts live rendering
func (s *Session) Start() error { return s.transport.Start() }

// Stop stops live rendering and clears the run intent
func (s *Session) Stop() error { return s.transport.Stop(true) }

// Notify forwards a route or configuration change to recovery
func (s *Session) Notify(ev ChangeEvent) bool { return s.recovery.Notify(ev) }

// Run runs the recovery loop until ctx is done
func (s *Session) Run(ctx context.Context) error { return s.recovery.Run(ctx) }

// RenderOffline renders durationSeconds into target using the session's
// offline defaults for unset options
func (s *Session) RenderOffline(ctx context.Context, durationSeconds float64, target *PCMBuffer, opts OfflineOptions, handler RenderHandler) (*RenderResult, error) {
	return s.offline.Render(ctx, durationSeconds, target, s.withDefaults(opts), handler)
}

// RenderToFile renders durationSeconds into the sink using the session's
// offline defaults for unset options
func (s *Session) RenderToFile(ctx context.Context, sink FileSink, durationSeconds float64, opts OfflineOptions) (*RenderResult, error) {
	return s.offline.RenderToFile(ctx, sink, durationSeconds, s.withDefaults(opts))
}

func (s *Session) withDefaults(opts OfflineOptions) OfflineOptions {
	if opts.MaxFrames <= 0 {
		opts.MaxFrames = s.config.Offline.MaxFrames
	}
	if opts.MaxStalls <= 0 {
		opts.MaxStalls = s.config.Offline.MaxStalls
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = s.config.Offline.RetryBackoff
	}
	if opts.PreRender == nil {
		opts.PreRender = s.config.Offline.PreRender
	}
	return opts
}

// Close stops the engine. The session cannot be restarted afterwards by
// recovery because the run intent is cleared.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.transport.Stop(true)
	s.log.Info("engine session closed")
	return err
}

func (s *Session) handleInterruption(ev ChangeEvent) {
	if s.config.Recovery.Notifications && s.publisher != nil {
		n := events.NewNotification(KindEngineInterrupted, "engine stopped unexpectedly").
			WithMetadata("reason", ev.Reason)
		s.publisher.TryPublish(n)
	}
	s.recovery.Notify(ev)
}
