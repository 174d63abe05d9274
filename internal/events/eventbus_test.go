package events

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

// mockConsumer records delivered events
type mockConsumer struct {
	name           string
	errorOnProcess bool
	panicOnProcess bool
	mu             sync.Mutex
	events         []Event
	processed      atomic.Int32
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) ProcessEvent(event Event) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	m.processed.Add(1)

	if m.panicOnProcess {
		panic("boom")
	}
	if m.errorOnProcess {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *mockConsumer) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.GetKind())
	}
	return out
}

func newTestBus(t *testing.T, cfg *Config) *EventBus {
	t.Helper()
	eb := New(cfg, testLogger())
	require.NotNil(t, eb)
	t.Cleanup(func() { _ = eb.Shutdown(time.Second) })
	return eb
}

func TestNewDisabledReturnsNil(t *testing.T) {
	t.Parallel()

	eb := New(&Config{Enabled: false}, testLogger())
	assert.Nil(t, eb)

	// Nil bus is inert
	assert.False(t, eb.TryPublish(NewNotification("x", "y")))
	assert.Error(t, eb.RegisterConsumer(&mockConsumer{name: "c"}))
	assert.NoError(t, eb.Shutdown(time.Second))
	assert.Equal(t, EventBusStats{}, eb.GetStats())
}

func TestPublishWithoutConsumersTakesFastPath(t *testing.T) {
	t.Parallel()

	eb := newTestBus(t, &Config{Enabled: true, BufferSize: 4, Workers: 1})

	assert.False(t, eb.TryPublish(NewNotification("engine.started", "")))
}

func TestPublishDeliversToAllConsumers(t *testing.T) {
	t.Parallel()

	eb := newTestBus(t, &Config{Enabled: true, BufferSize: 16, Workers: 2})
	first := &mockConsumer{name: "first"}
	second := &mockConsumer{name: "second"}
	require.NoError(t, eb.RegisterConsumer(first))
	require.NoError(t, eb.RegisterConsumer(second))

	for range 5 {
		require.True(t, eb.TryPublish(NewNotification("engine.restarted.route_change", "restarted")))
	}

	require.Eventually(t, func() bool {
		return first.processed.Load() == 5 && second.processed.Load() == 5
	}, 2*time.Second, 5*time.Millisecond)

	stats := eb.GetStats()
	assert.Equal(t, uint64(5), stats.EventsReceived)
	assert.Equal(t, uint64(10), stats.EventsProcessed)
}

func TestDuplicateConsumerRejected(t *testing.T) {
	t.Parallel()

	eb := newTestBus(t, nil)
	require.NoError(t, eb.RegisterConsumer(&mockConsumer{name: "dup"}))
	assert.Error(t, eb.RegisterConsumer(&mockConsumer{name: "dup"}))
}

func TestConsumerFailuresAreIsolated(t *testing.T) {
	t.Parallel()

	eb := newTestBus(t, &Config{Enabled: true, BufferSize: 8, Workers: 1})
	panicky := &mockConsumer{name: "panicky", panicOnProcess: true}
	failing := &mockConsumer{name: "failing", errorOnProcess: true}
	healthy := &mockConsumer{name: "healthy"}
	require.NoError(t, eb.RegisterConsumer(panicky))
	require.NoError(t, eb.RegisterConsumer(failing))
	require.NoError(t, eb.RegisterConsumer(healthy))

	require.True(t, eb.TryPublish(NewNotification("engine.interrupted", "")))

	require.Eventually(t, func() bool { return healthy.processed.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"engine.interrupted"}, healthy.kinds())
	assert.Equal(t, uint64(2), eb.GetStats().ConsumerErrors)
}

func TestFullBufferDropsEvents(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	eb := newTestBus(t, &Config{Enabled: true, BufferSize: 1, Workers: 1})
	require.NoError(t, eb.RegisterConsumer(ConsumerFunc{
		ConsumerName: "blocking",
		Fn: func(Event) error {
			<-block
			return nil
		},
	}))

	accepted := 0
	for range 10 {
		if eb.TryPublish(NewNotification("tick", "")) {
			accepted++
		}
	}
	close(block)

	assert.Less(t, accepted, 10)
	assert.Positive(t, eb.GetStats().EventsDropped)
}

func TestShutdownDrainsQueuedEvents(t *testing.T) {
	t.Parallel()

	eb := New(&Config{Enabled: true, BufferSize: 32, Workers: 1}, testLogger())
	consumer := &mockConsumer{name: "sink"}
	require.NoError(t, eb.RegisterConsumer(consumer))

	for range 20 {
		eb.TryPublish(NewNotification("tick", ""))
	}
	require.NoError(t, eb.Shutdown(2*time.Second))

	assert.Equal(t, int32(eb.GetStats().EventsReceived), consumer.processed.Load())
	assert.False(t, eb.TryPublish(NewNotification("late", "")), "closed bus rejects events")
	assert.Error(t, eb.RegisterConsumer(&mockConsumer{name: "late"}))
}

func TestTryPublishErrorSuppressesDuplicates(t *testing.T) {
	t.Parallel()

	eb := newTestBus(t, &Config{
		Enabled:       true,
		BufferSize:    16,
		Workers:       1,
		Deduplication: &DeduplicationConfig{Enabled: true, TTL: time.Minute},
	})
	consumer := &mockConsumer{name: "errors"}
	require.NoError(t, eb.RegisterConsumer(consumer))

	build := func() *errors.EnhancedError {
		return errors.Newf("device vanished").
			Component("driver.malgo").
			Category(errors.CategoryDevice).
			Build()
	}

	assert.True(t, eb.TryPublishError(build()))
	assert.True(t, eb.TryPublishError(build()))

	require.Eventually(t, func() bool { return consumer.processed.Load() == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"error.audio-device"}, consumer.kinds())
	assert.Equal(t, uint64(1), eb.GetStats().EventsSuppressed)

	consumer.mu.Lock()
	ee, ok := AsErrorEvent(consumer.events[0])
	consumer.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, "driver.malgo", ee.GetComponent())
}

func TestNotificationMetadataIsCopied(t *testing.T) {
	t.Parallel()

	n := NewNotification("engine.restarted.configuration_change", "restarted").
		WithMetadata("attempt", 1)

	md := n.GetMetadata()
	md["attempt"] = 2
	assert.Equal(t, 1, n.GetMetadata()["attempt"])

	_, ok := AsErrorEvent(n)
	assert.False(t, ok)
}
