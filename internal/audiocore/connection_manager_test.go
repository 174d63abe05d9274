package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnectionManager(t *testing.T) (*ConnectionManager, *Transport, *Graph, *mockDriver) {
	t.Helper()
	tr, d, g := newTestTransport(t)
	return NewConnectionManager(g, tr, testLogger()), tr, g, d
}

func TestConnectionManagerSafeAttach(t *testing.T) {
	t.Parallel()

	cm, _, g, _ := newTestConnectionManager(t)
	src := newConstSource(0.2)
	mixer := NewMixerNode("sub", testFormat)
	require.False(t, g.IsAttached(src))

	require.NoError(t, cm.Connect(src, 0, mixer, 0, Format{}))
	assert.True(t, g.IsAttached(src))
	assert.True(t, g.IsAttached(mixer))

	require.NoError(t, cm.Connect(src, 0, g.MainMixer(), 0, Format{}))
	assert.Len(t, g.Nodes(), 3, "attached nodes are left untouched")

	_, err := cm.ConnectAppend(newConstSource(0.1), 0, mixer)
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 4)
}

func TestConnectionManagerBusGrowthWhileRunning(t *testing.T) {
	t.Parallel()

	for _, target := range []int{0, 1, 5, 12} {
		cm, tr, g, _ := newTestConnectionManager(t)
		mixer := NewMixerNode("sub", testFormat)
		require.NoError(t, g.Attach(mixer))
		require.NoError(t, tr.Start())

		src := newConstSource(0.5)
		require.NoError(t, cm.Connect(src, 0, mixer, target, Format{}), "target bus %d", target)
		assert.Greater(t, mixer.NumInputs(), target)

		conns := g.Connections(BusPoint{Node: mixer, Bus: target, Direction: BusInput})
		require.Len(t, conns, 1)
		assert.True(t, conns[0].Active)
		assert.Len(t, g.Nodes(), 3, "dummies removed")

		require.NoError(t, tr.Stop(true))
	}
}

func TestConnectionManagerPrimesEmptyMixerWhileRunning(t *testing.T) {
	t.Parallel()

	cm, tr, g, d := newTestConnectionManager(t)
	require.NoError(t, tr.Start())

	src := newConstSource(0.4)
	require.NoError(t, cm.Connect(src, 0, g.MainMixer(), 0, Format{}))

	live, err := g.HasLiveInput(g.MainMixer())
	require.NoError(t, err)
	assert.True(t, live)

	buf := d.tick(32)
	assert.InDelta(t, 0.4, buf.Samples()[0], 1e-6, "audio flows after the call returns")

	require.NoError(t, tr.Stop(true))
}

func TestConnectionManagerDirectWhenStopped(t *testing.T) {
	t.Parallel()

	cm, _, g, _ := newTestConnectionManager(t)
	src := newConstSource(0.4)

	require.NoError(t, cm.Connect(src, 0, g.MainMixer(), 3, Format{}))
	assert.Equal(t, 4, g.MainMixer().NumInputs())
	assert.Len(t, g.Nodes(), 2)
	assert.Equal(t, 1, g.ConnectionCount())

	require.NoError(t, cm.Disconnect(g.MainMixer(), 3))
	assert.Zero(t, g.ConnectionCount())
}

func TestConnectionManagerUnmanagedConnectIsSilent(t *testing.T) {
	t.Parallel()

	_, tr, g, d := newTestConnectionManager(t)
	require.NoError(t, tr.Start())

	// Grow the bus without priming, then connect through the raw graph
	_, err := ensureBusCapacity(g, g.MainMixer(), 0)
	require.NoError(t, err)
	src := newConstSource(0.4)
	require.NoError(t, g.Attach(src))
	require.NoError(t, g.Connect(src, 0, g.MainMixer(), 0, Format{}))

	buf := d.tick(32)
	assert.Zero(t, buf.Samples()[0])

	require.NoError(t, tr.Stop(true))
}

func TestConnectionManagerGrowsToHighestBusWhileRunning(t *testing.T) {
	t.Parallel()

	cm, tr, g, _ := newTestConnectionManager(t)
	mixer := NewMixerNode("sub", testFormat)
	require.NoError(t, g.Attach(mixer))
	require.NoError(t, tr.Start())

	target := MaxMixerBuses - 1
	require.NoError(t, cm.Connect(newConstSource(0.5), 0, mixer, target, Format{}))
	assert.Equal(t, MaxMixerBuses, mixer.NumInputs())
	assert.Len(t, g.Nodes(), 3, "dummies removed")
	assert.Equal(t, 1, g.ConnectionCount())

	conns := g.Connections(BusPoint{Node: mixer, Bus: target, Direction: BusInput})
	require.Len(t, conns, 1)
	assert.True(t, conns[0].Active)

	require.ErrorIs(t, cm.Connect(newConstSource(0.5), 0, mixer, MaxMixerBuses, Format{}), ErrBusOutOfRange)
	require.NoError(t, tr.Stop(true))
}
