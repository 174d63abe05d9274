package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingConfigurator struct{}

func (failingConfigurator) Configure(Category) error { return errMock }

func newTestTransport(t *testing.T) (*Transport, *mockDriver, *Graph) {
	t.Helper()
	g := newTestGraph(t)
	d := &mockDriver{}
	tr := NewTransport(g, d, &RunIntent{}, TransportConfig{PeriodFrames: 128}, testLogger())
	return tr, d, g
}

func TestTransportStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", TransportStopped.String())
	assert.Equal(t, "preparing", TransportPreparing.String())
	assert.Equal(t, "running", TransportRunning.String())
	assert.Equal(t, "rendering_offline", TransportRenderingOffline.String())
	assert.Equal(t, "unknown", TransportState(42).String())
}

func TestTransportStartStop(t *testing.T) {
	t.Parallel()

	tr, d, g := newTestTransport(t)
	assert.Equal(t, TransportStopped, tr.State())
	assert.False(t, tr.ShouldBeRunning())

	require.NoError(t, tr.Start())
	assert.Equal(t, TransportRunning, tr.State())
	assert.True(t, tr.ShouldBeRunning())
	assert.True(t, g.Live())
	assert.Equal(t, 128, d.lastPeriod)
	assert.Equal(t, testFormat, d.lastFormat)

	require.NoError(t, tr.Start(), "starting a running transport is a no-op")
	assert.Equal(t, 1, d.startCount())

	require.NoError(t, tr.Stop(false))
	assert.Equal(t, TransportStopped, tr.State())
	assert.True(t, tr.ShouldBeRunning(), "intent kept unless cleared")
	assert.False(t, g.Live())

	require.NoError(t, tr.Start())
	require.NoError(t, tr.Stop(true))
	assert.False(t, tr.ShouldBeRunning())
	require.NoError(t, tr.Stop(true), "stopping a stopped transport is a no-op")
}

func TestTransportStartFailures(t *testing.T) {
	t.Parallel()

	t.Run("prepare failure", func(t *testing.T) {
		t.Parallel()
		tr, d, _ := newTestTransport(t)
		d.prepareErr = errMock

		err := tr.Start()
		require.ErrorIs(t, err, ErrConfiguration)
		require.ErrorIs(t, err, errMock)
		assert.Equal(t, TransportStopped, tr.State())
		assert.False(t, tr.ShouldBeRunning())
		assert.Zero(t, d.startCount())
	})

	t.Run("session configuration failure", func(t *testing.T) {
		t.Parallel()
		tr, d, _ := newTestTransport(t)
		tr.SetSessionConfigurator(failingConfigurator{})

		require.ErrorIs(t, tr.Start(), ErrConfiguration)
		require.ErrorIs(t, tr.Prepare(), ErrConfiguration)
		assert.Zero(t, d.prepares)
	})

	t.Run("stream failure", func(t *testing.T) {
		t.Parallel()
		tr, d, g := newTestTransport(t)
		d.setStartErr(errMock)

		err := tr.Start()
		require.ErrorIs(t, err, ErrEngineStart)
		assert.NotErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, TransportStopped, tr.State())
		assert.False(t, tr.ShouldBeRunning())
		assert.False(t, g.Live())
	})
}

func TestTransportLiveRender(t *testing.T) {
	t.Parallel()

	tr, d, g := newTestTransport(t)
	src := newConstSource(0.3)
	require.NoError(t, g.Attach(src))
	_, err := g.ConnectAppend(src, 0, g.MainMixer())
	require.NoError(t, err)
	require.NoError(t, tr.Start())

	buf := d.tick(64)
	assert.InDelta(t, 0.3, buf.Samples()[0], 1e-6)

	src.err = errMock
	buf = d.tick(64)
	assert.Equal(t, 64, buf.FrameLength())
	for _, s := range buf.Samples() {
		assert.Zero(t, s, "failed renders output silence")
	}

	require.NoError(t, tr.Stop(true))
}

func TestTransportInterruption(t *testing.T) {
	t.Parallel()

	tr, d, _ := newTestTransport(t)
	var got []ChangeEvent
	tr.OnInterrupt(func(ev ChangeEvent) { got = append(got, ev) })

	d.fireInterrupt("device unplugged")
	assert.Empty(t, got, "interruptions while stopped are ignored")

	require.NoError(t, tr.Start())
	d.fireInterrupt("device unplugged")

	assert.Equal(t, TransportStopped, tr.State())
	assert.True(t, tr.ShouldBeRunning(), "involuntary stop keeps the intent")
	require.Len(t, got, 1)
	assert.Equal(t, ConfigurationChange, got[0].Kind)
	assert.Equal(t, "device unplugged", got[0].Reason)
}

func TestTransportOfflineMode(t *testing.T) {
	t.Parallel()

	t.Run("from running restarts live", func(t *testing.T) {
		t.Parallel()
		tr, d, g := newTestTransport(t)
		require.NoError(t, tr.Start())

		require.NoError(t, tr.EnableOfflineMode(testFormat, 256))
		assert.Equal(t, TransportRenderingOffline, tr.State())
		assert.False(t, g.Live())
		assert.Equal(t, 256, tr.MaxOfflineFrames())
		require.ErrorIs(t, tr.Start(), ErrOfflineActive)
		require.ErrorIs(t, tr.EnableOfflineMode(testFormat, 256), ErrOfflineActive)

		require.NoError(t, tr.DisableOfflineMode())
		assert.Equal(t, TransportRunning, tr.State())
		assert.Equal(t, 2, d.startCount())
		require.NoError(t, tr.Stop(true))
	})

	t.Run("from stopped stays stopped", func(t *testing.T) {
		t.Parallel()
		tr, d, _ := newTestTransport(t)

		require.NoError(t, tr.EnableOfflineMode(testFormat, 256))
		require.NoError(t, tr.DisableOfflineMode())
		assert.Equal(t, TransportStopped, tr.State())
		assert.Zero(t, d.startCount())
	})

	t.Run("cleared intent stays stopped", func(t *testing.T) {
		t.Parallel()
		tr, d, _ := newTestTransport(t)
		require.NoError(t, tr.Start())
		require.NoError(t, tr.EnableOfflineMode(testFormat, 256))
		tr.intent.Clear()

		require.NoError(t, tr.DisableOfflineMode())
		assert.Equal(t, TransportStopped, tr.State())
		assert.Equal(t, 1, d.startCount())
	})

	t.Run("rate mismatch", func(t *testing.T) {
		t.Parallel()
		tr, _, _ := newTestTransport(t)
		require.ErrorIs(t, tr.EnableOfflineMode(Format{SampleRate: 44100, Channels: 2}, 256), ErrFormatMismatch)
		assert.Equal(t, TransportStopped, tr.State())
	})

	t.Run("render requires offline mode", func(t *testing.T) {
		t.Parallel()
		tr, _, _ := newTestTransport(t)
		status, err := tr.RenderOffline(NewPCMBuffer(testFormat, 16), 16)
		require.ErrorIs(t, err, ErrRenderFatal)
		assert.Equal(t, StatusError, status)
	})
}
