package audiocore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/audiograph/internal/events"
	"github.com/tphakala/audiograph/internal/logger"
)

// ChangeKind classifies an out-of-band engine change
type ChangeKind int

const (
	// RouteChange means the set or routing of audio devices changed
	RouteChange ChangeKind = iota
	// ConfigurationChange means the hardware configuration changed or the
	// stream stopped on its own
	ConfigurationChange
)

// String returns the string representation of the change kind
func (k ChangeKind) String() string {
	switch k {
	case RouteChange:
		return "route_change"
	case ConfigurationChange:
		return "configuration_change"
	default:
		return "unknown"
	}
}

// ChangeEvent is a route or configuration change delivered to recovery
type ChangeEvent struct {
	Kind    ChangeKind
	Reason  string
	Payload map[string]any
	Time    time.Time
}

// Notification kinds published on the event bus
const (
	KindEngineRestartedPrefix = "engine.restarted."
	KindEngineInterrupted     = "engine.interrupted"
)

// Recovery outcomes used in logs and metrics
const (
	OutcomeSkipped    = "skipped"
	OutcomeSuppressed = "suppressed"
	OutcomeRestarted  = "restarted"
	OutcomeFailed     = "failed"
)

// Lifecycle reports whether the process is in the foreground
type Lifecycle interface {
	InForeground() bool
}

// AlwaysForeground is the lifecycle of processes without a background state
type AlwaysForeground struct{}

// InForeground always reports true
func (AlwaysForeground) InForeground() bool { return true }

// Publisher accepts notifications without blocking
type Publisher interface {
	TryPublish(event events.Event) bool
}

// CacheInvalidator drops cached state that a route change makes stale
type CacheInvalidator interface {
	Invalidate()
}

// restarter is the part of the transport recovery drives
type restarter interface {
	ShouldBeRunning() bool
	IsRunning() bool
	Start() error
}

// RecoveryConfig configures the recovery loop
type RecoveryConfig struct {
	Enabled            bool
	Notifications      bool
	BackgroundAudio    bool
	MinRestartInterval time.Duration
	InboxSize          int
}

// RecoveryStats counts handled events by outcome
type RecoveryStats struct {
	Received   uint64
	Dropped    uint64
	Skipped    uint64
	Suppressed uint64
	Restarted  uint64
	Failed     uint64
}

// Recovery restarts the engine after route and configuration changes.
// Events are queued by Notify from any goroutine and handled by Run. Restart
// failures are logged and counted; the run intent stays set so the next event
// retries.
type Recovery struct {
	config    RecoveryConfig
	engine    restarter
	lifecycle Lifecycle
	publisher Publisher
	limiter   *rate.Limiter
	inbox     chan ChangeEvent
	log       logger.Logger

	mu           sync.Mutex
	invalidators []CacheInvalidator

	received   atomic.Uint64
	dropped    atomic.Uint64
	skipped    atomic.Uint64
	suppressed atomic.Uint64
	restarted  atomic.Uint64
	failed     atomic.Uint64
}

// NewRecovery creates a recovery loop for the engine
func NewRecovery(config RecoveryConfig, engine restarter, lifecycle Lifecycle, publisher Publisher, log logger.Logger) *Recovery {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("recovery")
	}
	if lifecycle == nil {
		lifecycle = AlwaysForeground{}
	}
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultRecoveryInbox
	}

	limit := rate.Inf
	if config.MinRestartInterval > 0 {
		limit = rate.Every(config.MinRestartInterval)
	}

	return &Recovery{
		config:    config,
		engine:    engine,
		lifecycle: lifecycle,
		publisher: publisher,
		limiter:   rate.NewLimiter(limit, 1),
		inbox:     make(chan ChangeEvent, config.InboxSize),
		log:       log,
	}
}

// AddInvalidator registers a cache dropped on every route change
func (r *Recovery) AddInvalidator(c CacheInvalidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidators = append(r.invalidators, c)
}

// Notify queues an event without blocking. It returns false when recovery is
// disabled or the inbox is full.
func (r *Recovery) Notify(ev ChangeEvent) bool {
	if !r.config.Enabled {
		return false
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	select {
	case r.inbox <- ev:
		r.received.Add(1)
		return true
	default:
		r.dropped.Add(1)
		r.log.Warn("recovery inbox full, event dropped",
			logger.String("kind", ev.Kind.String()),
			logger.String("reason", ev.Reason))
		return false
	}
}

// Run handles queued events until ctx is done
func (r *Recovery) Run(ctx context.Context) error {
	if !r.config.Enabled {
		r.log.Info("auto-recovery disabled")
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.inbox:
			outcome := r.handle(ctx, ev)
			GetMetrics().RecordRecoveryAttempt(ev.Kind, outcome)
		}
	}
}

func (r *Recovery) handle(ctx context.Context, ev ChangeEvent) string {
	log := r.log.With(
		logger.String("kind", ev.Kind.String()),
		logger.String("reason", ev.Reason))

	if ev.Kind == RouteChange {
		r.invalidate()
	}

	if !r.engine.ShouldBeRunning() || r.engine.IsRunning() {
		r.skipped.Add(1)
		log.Debug("no restart needed",
			logger.Bool("should_be_running", r.engine.ShouldBeRunning()),
			logger.Bool("running", r.engine.IsRunning()))
		return OutcomeSkipped
	}

	if !r.lifecycle.InForeground() && !r.config.BackgroundAudio {
		r.suppressed.Add(1)
		log.Info("restart suppressed while in background")
		return OutcomeSuppressed
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.skipped.Add(1)
		return OutcomeSkipped
	}

	if err := r.engine.Start(); err != nil {
		r.failed.Add(1)
		log.Error("engine restart failed", logger.Error(err))
		return OutcomeFailed
	}

	r.restarted.Add(1)
	log.Info("engine restarted")
	r.notifyRestarted(ev)
	return OutcomeRestarted
}

func (r *Recovery) notifyRestarted(ev ChangeEvent) {
	if !r.config.Notifications || r.publisher == nil {
		return
	}

	n := events.NewNotification(KindEngineRestartedPrefix+ev.Kind.String(),
		fmt.Sprintf("engine restarted after %s", ev.Kind))
	for k, v := range ev.Payload {
		n.WithMetadata(k, v)
	}
	n.WithMetadata("trigger_reason", ev.Reason)
	if !r.publisher.TryPublish(n) {
		r.log.Warn("restart notification dropped", logger.String("kind", n.Kind))
	}
}

func (r *Recovery) invalidate() {
	r.mu.Lock()
	invalidators := append([]CacheInvalidator(nil), r.invalidators...)
	r.mu.Unlock()

	for _, c := range invalidators {
		c.Invalidate()
	}
}

// Stats returns event counts by outcome
func (r *Recovery) Stats() RecoveryStats {
	return RecoveryStats{
		Received:   r.received.Load(),
		Dropped:    r.dropped.Load(),
		Skipped:    r.skipped.Load(),
		Suppressed: r.suppressed.Load(),
		Restarted:  r.restarted.Load(),
		Failed:     r.failed.Load(),
	}
}
