package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// Config holds event bus configuration
type Config struct {
	BufferSize    int
	Workers       int
	Enabled       bool
	Deduplication *DeduplicationConfig
}

// DefaultConfig returns the default event bus configuration
func DefaultConfig() *Config {
	return &Config{
		BufferSize:    1000,
		Workers:       2,
		Enabled:       true,
		Deduplication: DefaultDeduplicationConfig(),
	}
}

// EventBus provides asynchronous event processing with non-blocking guarantees.
// Workers start when the first consumer registers.
type EventBus struct {
	eventChan chan Event

	bufferSize int
	workers    int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex

	consumers    []EventConsumer
	hasConsumers atomic.Bool

	deduplicator *ErrorDeduplicator

	stats EventBusStats

	logger logger.Logger
}

// New creates an event bus. It returns nil when the config disables the bus;
// all methods are safe on a nil bus.
func New(config *Config, log logger.Logger) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		return nil
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if log == nil {
		log = logger.Global().Module("events")
	}

	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		eventChan:  make(chan Event, config.BufferSize),
		bufferSize: config.BufferSize,
		workers:    config.Workers,
		ctx:        ctx,
		cancel:     cancel,
		logger:     log,
	}

	if config.Deduplication != nil && config.Deduplication.Enabled {
		eb.deduplicator = NewErrorDeduplicator(config.Deduplication, log.Module("dedup"))
	}

	eb.logger.Info("event bus initialized",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", config.Workers))

	return eb
}

// RegisterConsumer adds a new event consumer
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	if eb == nil {
		return fmt.Errorf("event bus not initialized")
	}
	if eb.closed.Load() {
		return fmt.Errorf("event bus is shut down")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, existing := range eb.consumers {
		if existing.Name() == consumer.Name() {
			return fmt.Errorf("consumer %s already registered", consumer.Name())
		}
	}

	eb.consumers = append(eb.consumers, consumer)
	eb.hasConsumers.Store(true)

	eb.logger.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(eb.consumers) == 1 {
		eb.start()
	}

	return nil
}

// TryPublish attempts to publish an event without blocking.
// Returns true if the event was accepted, false if dropped.
func (eb *EventBus) TryPublish(event Event) bool {
	if eb == nil || !eb.running.Load() || event == nil {
		return false
	}

	if !eb.hasConsumers.Load() {
		atomic.AddUint64(&eb.stats.FastPathHits, 1)
		return false
	}

	select {
	case eb.eventChan <- event:
		atomic.AddUint64(&eb.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&eb.stats.EventsDropped, 1)
		eb.logger.Debug("event dropped due to full buffer", logger.String("kind", event.GetKind()))
		return false
	}
}

// TryPublishError publishes an error event, suppressing duplicates.
// It satisfies errors.EventPublisher.
func (eb *EventBus) TryPublishError(ee *errors.EnhancedError) bool {
	if eb == nil || ee == nil {
		return false
	}
	if !eb.deduplicator.ShouldProcess(ee) {
		atomic.AddUint64(&eb.stats.EventsSuppressed, 1)
		// Suppressed duplicates count as handled so the caller skips direct reporting
		return true
	}
	return eb.TryPublish(errorEnvelope{err: ee})
}

// start begins the worker goroutines; callers hold eb.mu
func (eb *EventBus) start() {
	if eb.running.Swap(true) {
		return
	}

	eb.logger.Debug("starting event bus workers", logger.Int("count", eb.workers))

	for i := range eb.workers {
		eb.wg.Add(1)
		go eb.worker(i)
	}
}

// worker processes events from the channel
func (eb *EventBus) worker(id int) {
	defer eb.wg.Done()

	log := eb.logger.With(logger.Int("worker_id", id))

	for {
		select {
		case <-eb.ctx.Done():
			eb.drain(log)
			return
		case event := <-eb.eventChan:
			eb.processEvent(event, log)
		}
	}
}

// drain delivers whatever was queued before shutdown
func (eb *EventBus) drain(log logger.Logger) {
	for {
		select {
		case event := <-eb.eventChan:
			eb.processEvent(event, log)
		default:
			return
		}
	}
}

// processEvent sends the event to all registered consumers
func (eb *EventBus) processEvent(event Event, log logger.Logger) {
	eb.mu.Lock()
	consumers := make([]EventConsumer, len(eb.consumers))
	copy(consumers, eb.consumers)
	eb.mu.Unlock()

	for _, consumer := range consumers {
		eb.deliver(consumer, event, log)
	}
}

func (eb *EventBus) deliver(consumer EventConsumer, event Event, log logger.Logger) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
			log.Error("consumer panicked",
				logger.String("consumer", consumer.Name()),
				logger.Any("panic", r),
				logger.String("kind", event.GetKind()))
		}
	}()

	if err := consumer.ProcessEvent(event); err != nil {
		atomic.AddUint64(&eb.stats.ConsumerErrors, 1)
		log.Error("consumer error",
			logger.String("consumer", consumer.Name()),
			logger.Error(err),
			logger.String("kind", event.GetKind()))
		return
	}
	atomic.AddUint64(&eb.stats.EventsProcessed, 1)
}

// Shutdown stops accepting events and waits for workers to finish
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	if eb == nil || eb.closed.Swap(true) {
		return nil
	}

	eb.logger.Debug("shutting down event bus", logger.Duration("timeout", timeout))

	eb.running.Store(false)
	eb.cancel()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		eb.logger.Warn("event bus shutdown timeout exceeded")
		return fmt.Errorf("event bus shutdown timeout exceeded")
	}
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	if eb == nil {
		return EventBusStats{}
	}

	return EventBusStats{
		EventsReceived:   atomic.LoadUint64(&eb.stats.EventsReceived),
		EventsSuppressed: atomic.LoadUint64(&eb.stats.EventsSuppressed),
		EventsProcessed:  atomic.LoadUint64(&eb.stats.EventsProcessed),
		EventsDropped:    atomic.LoadUint64(&eb.stats.EventsDropped),
		ConsumerErrors:   atomic.LoadUint64(&eb.stats.ConsumerErrors),
		FastPathHits:     atomic.LoadUint64(&eb.stats.FastPathHits),
	}
}
