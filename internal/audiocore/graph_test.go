package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiograph/internal/errors"
)

func TestGraphAttachDetachSequences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ops      []string // "a" attach, "d" detach
		attached bool
		failAt   int // index of the detach that fails, -1 for none
	}{
		{"never attached", nil, false, -1},
		{"attach once", []string{"a"}, true, -1},
		{"attach is idempotent", []string{"a", "a", "a"}, true, -1},
		{"attach then detach", []string{"a", "d"}, false, -1},
		{"repeated attaches need one detach", []string{"a", "a", "d"}, false, -1},
		{"detach unattached fails", []string{"d"}, false, 0},
		{"second detach fails", []string{"a", "d", "d"}, false, 2},
		{"reattach after detach", []string{"a", "d", "a"}, true, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := newTestGraph(t)
			n := newConstSource(0.5)

			for i, op := range tt.ops {
				switch op {
				case "a":
					require.NoError(t, g.Attach(n))
				case "d":
					err := g.Detach(n)
					if i == tt.failAt {
						require.ErrorIs(t, err, ErrNodeNotFound)
					} else {
						require.NoError(t, err)
					}
				}
			}
			assert.Equal(t, tt.attached, g.IsAttached(n))
		})
	}
}

func TestGraphAttachNil(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	require.Error(t, g.Attach(nil))
	assert.False(t, g.IsAttached(nil))
	require.ErrorIs(t, g.Detach(nil), ErrNodeNotFound)
}

func TestGraphMainMixerProtected(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	assert.True(t, g.IsAttached(g.MainMixer()))

	err := g.Detach(g.MainMixer())
	require.ErrorIs(t, err, ErrProtectedNode)
	assert.True(t, errors.IsCategory(err, errors.CategoryGraph))
	assert.True(t, g.IsAttached(g.MainMixer()))
}

func TestGraphDetachRemovesConnections(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.25)
	fx := newPassthrough()
	require.NoError(t, g.Attach(src))
	require.NoError(t, g.Attach(fx))

	require.NoError(t, g.Connect(src, 0, fx, 0, Format{}))
	_, err := g.ConnectAppend(fx, 0, g.MainMixer())
	require.NoError(t, err)
	assert.Equal(t, 2, g.ConnectionCount())

	require.NoError(t, g.Detach(fx))
	assert.Equal(t, 0, g.ConnectionCount())
	assert.Empty(t, g.Connections(BusPoint{Node: src, Bus: 0, Direction: BusOutput}))
	assert.Empty(t, g.Connections(BusPoint{Node: g.MainMixer(), Bus: 0, Direction: BusInput}))
}

func TestGraphConnectionsQuery(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.1)
	m1 := NewMixerNode("m1", testFormat)
	m2 := NewMixerNode("m2", testFormat)
	for _, n := range []Node{src, m1, m2} {
		require.NoError(t, g.Attach(n))
	}

	require.NoError(t, g.ConnectPoints(src, 0, []ConnectionPoint{{Node: m1, Bus: 0}, {Node: m2, Bus: 3}}, Format{}))

	out := g.Connections(BusPoint{Node: src, Bus: 0, Direction: BusOutput})
	require.Len(t, out, 2)
	for _, c := range out {
		assert.True(t, c.Active)
		assert.Equal(t, testFormat, c.Format)
	}

	in := g.Connections(BusPoint{Node: m2, Bus: 3, Direction: BusInput})
	require.Len(t, in, 1)
	assert.Equal(t, src.ID(), in[0].Source.ID())

	count, err := g.InputBusCount(m2)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "stopped mixers grow to fit explicit connections")
}

func TestGraphConnectReplacesOccupiedBus(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	a := newConstSource(0.1)
	b := newConstSource(0.2)
	fx := newPassthrough()
	for _, n := range []Node{a, b, fx} {
		require.NoError(t, g.Attach(n))
	}

	require.NoError(t, g.Connect(a, 0, fx, 0, Format{}))
	require.NoError(t, g.Connect(b, 0, fx, 0, Format{}))

	in := g.Connections(BusPoint{Node: fx, Bus: 0, Direction: BusInput})
	require.Len(t, in, 1)
	assert.Equal(t, b.ID(), in[0].Source.ID())
	assert.Empty(t, g.Connections(BusPoint{Node: a, Bus: 0, Direction: BusOutput}))
}

func TestGraphConnectValidation(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.1)
	fx := newPassthrough()
	detached := newConstSource(0.3)
	slow := &constSource{BaseNode: NewBaseNode("slow", NodeKindSource, 0, 1, Format{SampleRate: 44100, Channels: 2})}
	for _, n := range []Node{src, fx, slow} {
		require.NoError(t, g.Attach(n))
	}

	require.ErrorIs(t, g.Connect(src, 1, fx, 0, Format{}), ErrBusOutOfRange)
	require.ErrorIs(t, g.Connect(src, 0, fx, 1, Format{}), ErrBusOutOfRange)
	require.ErrorIs(t, g.Connect(src, 0, fx, -1, Format{}), ErrBusOutOfRange)
	require.ErrorIs(t, g.Connect(detached, 0, fx, 0, Format{}), ErrNodeNotFound)
	require.ErrorIs(t, g.Connect(slow, 0, fx, 0, Format{}), ErrFormatMismatch)
	require.ErrorIs(t, g.Connect(src, 0, fx, 0, Format{SampleRate: 22050, Channels: 1}), ErrFormatMismatch)

	_, err := g.ConnectAppend(src, 0, fx)
	require.ErrorIs(t, err, ErrBusOutOfRange, "append needs a mixer")

	assert.Equal(t, 0, g.ConnectionCount())
}

func TestGraphRejectsCycles(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	m1 := NewMixerNode("m1", testFormat)
	m2 := NewMixerNode("m2", testFormat)
	fx := newPassthrough()
	for _, n := range []Node{m1, m2, fx} {
		require.NoError(t, g.Attach(n))
	}

	_, err := g.ConnectAppend(m1, 0, m2)
	require.NoError(t, err)
	require.NoError(t, g.Connect(m2, 0, fx, 0, Format{}))

	_, err = g.ConnectAppend(fx, 0, m1)
	require.ErrorIs(t, err, ErrCycleDetected)
	_, err = g.ConnectAppend(m1, 0, m1)
	require.ErrorIs(t, err, ErrCycleDetected)
	assert.Equal(t, 2, g.ConnectionCount())
}

func TestGraphAllPointsValidatedBeforeApply(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.1)
	fx := newPassthrough()
	require.NoError(t, g.Attach(src))
	require.NoError(t, g.Attach(fx))

	err := g.ConnectPoints(src, 0, []ConnectionPoint{{Node: g.MainMixer(), Bus: 0}, {Node: fx, Bus: 5}}, Format{})
	require.ErrorIs(t, err, ErrBusOutOfRange)
	assert.Equal(t, 0, g.ConnectionCount())
}

func TestGraphConnectAppendUsesFirstFreeBus(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	mixer := g.MainMixer()
	a, b, c := newConstSource(0.1), newConstSource(0.2), newConstSource(0.3)
	for _, n := range []Node{a, b, c} {
		require.NoError(t, g.Attach(n))
	}

	busA, err := g.ConnectAppend(a, 0, mixer)
	require.NoError(t, err)
	busB, err := g.ConnectAppend(b, 0, mixer)
	require.NoError(t, err)
	assert.Equal(t, 0, busA)
	assert.Equal(t, 1, busB)

	require.NoError(t, g.DisconnectInput(mixer, 0))
	busC, err := g.ConnectAppend(c, 0, mixer)
	require.NoError(t, err)
	assert.Equal(t, 0, busC, "freed bus is reused")
	assert.Equal(t, 2, mixer.NumInputs())
}

func TestGraphMixerNeverShrinks(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	mixer := g.MainMixer()
	src := newConstSource(0.1)
	require.NoError(t, g.Attach(src))

	require.NoError(t, g.Connect(src, 0, mixer, 6, Format{}))
	assert.Equal(t, 7, mixer.NumInputs())

	require.NoError(t, g.DisconnectOutput(src, 0))
	require.NoError(t, g.Detach(src))
	assert.Equal(t, 7, mixer.NumInputs())
}

func TestGraphLiveHazards(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	mixer := NewMixerNode("sub", testFormat)
	src := newConstSource(0.5)
	require.NoError(t, g.Attach(mixer))
	require.NoError(t, g.Attach(src))
	g.SetLive(true)

	err := g.Connect(src, 0, mixer, 0, Format{})
	require.ErrorIs(t, err, ErrBusOutOfRange, "explicit form cannot grow a running mixer")

	_, err = g.ConnectAppend(newDummyAttached(t, g), 0, mixer)
	require.NoError(t, err)
	require.NoError(t, g.DisconnectInput(mixer, 0))

	require.NoError(t, g.Connect(src, 0, mixer, 0, Format{}))
	conns := g.Connections(BusPoint{Node: mixer, Bus: 0, Direction: BusInput})
	require.Len(t, conns, 1)
	assert.False(t, conns[0].Active, "connection into an unengaged running mixer is silent")

	live, err := g.HasLiveInput(mixer)
	require.NoError(t, err)
	assert.False(t, live)

	g.SetLive(false)
	conns = g.Connections(BusPoint{Node: mixer, Bus: 0, Direction: BusInput})
	assert.True(t, conns[0].Active, "stopped graphs carry every connection")
}

func TestGraphSetLiveEngagesMixersWithInputs(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.5)
	require.NoError(t, g.Attach(src))
	_, err := g.ConnectAppend(src, 0, g.MainMixer())
	require.NoError(t, err)

	g.SetLive(true)
	live, err := g.HasLiveInput(g.MainMixer())
	require.NoError(t, err)
	assert.True(t, live)
}

func TestGraphRenderMixesSources(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	a, b := newConstSource(0.25), newConstSource(0.5)
	for _, n := range []Node{a, b} {
		require.NoError(t, g.Attach(n))
		_, err := g.ConnectAppend(n, 0, g.MainMixer())
		require.NoError(t, err)
	}

	dst := NewPCMBuffer(testFormat, 64)
	status, err := g.Render(dst, 32)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, 32, dst.FrameLength())
	for _, s := range dst.Samples() {
		assert.InDelta(t, 0.75, s, 1e-6)
	}
}

func TestGraphRenderMemoizesFanOut(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.1)
	m1 := NewMixerNode("m1", testFormat)
	m2 := NewMixerNode("m2", testFormat)
	for _, n := range []Node{src, m1, m2} {
		require.NoError(t, g.Attach(n))
	}
	require.NoError(t, g.ConnectPoints(src, 0, []ConnectionPoint{{Node: m1, Bus: 0}, {Node: m2, Bus: 0}}, Format{}))
	_, err := g.ConnectAppend(m1, 0, g.MainMixer())
	require.NoError(t, err)
	_, err = g.ConnectAppend(m2, 0, g.MainMixer())
	require.NoError(t, err)

	dst := NewPCMBuffer(testFormat, 16)
	status, err := g.Render(dst, 16)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, 1, src.renders, "fan-out renders the source once per cycle")
	assert.InDelta(t, 0.2, dst.Samples()[0], 1e-6)

	_, err = g.Render(dst, 16)
	require.NoError(t, err)
	assert.Equal(t, 2, src.renders)
}

func TestGraphRenderStatuses(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.1)
	require.NoError(t, g.Attach(src))
	_, err := g.ConnectAppend(src, 0, g.MainMixer())
	require.NoError(t, err)
	dst := NewPCMBuffer(testFormat, 8)

	src.err = ErrInsufficientInput
	status, err := g.Render(dst, 8)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientInput, status)

	src.err = errMock
	status, err = g.Render(dst, 8)
	require.ErrorIs(t, err, errMock)
	assert.Equal(t, StatusError, status)

	src.err = nil
	g.mu.Lock()
	status, err = g.Render(dst, 8)
	g.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, StatusCannotRender, status, "render never waits for a mutation")
}

func TestGraphRenderChannelConversion(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	mono := &constSource{
		BaseNode: NewBaseNode("mono", NodeKindSource, 0, 1, Format{SampleRate: 48000, Channels: 1}),
		value:    0.4,
	}
	require.NoError(t, g.Attach(mono))
	_, err := g.ConnectAppend(mono, 0, g.MainMixer())
	require.NoError(t, err)

	dst := NewPCMBuffer(Format{SampleRate: 48000, Channels: 1}, 4)
	status, err := g.Render(dst, 4)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Len(t, dst.Samples(), 4)
	assert.InDelta(t, 0.4, dst.Samples()[3], 1e-6)

	stereo := NewPCMBuffer(testFormat, 4)
	_, err = g.Render(stereo, 4)
	require.NoError(t, err)
	assert.Len(t, stereo.Samples(), 8)
	assert.InDelta(t, 0.4, stereo.Samples()[7], 1e-6)
}

func TestGraphInactiveConnectionIsSilent(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.9)
	require.NoError(t, g.Attach(src))
	g.SetLive(true)

	_, err := g.ConnectAppend(newDummyAttached(t, g), 0, g.MainMixer())
	require.NoError(t, err)
	require.NoError(t, g.DisconnectInput(g.MainMixer(), 0))
	require.NoError(t, g.Connect(src, 0, g.MainMixer(), 0, Format{}))

	dst := NewPCMBuffer(testFormat, 8)
	status, err := g.Render(dst, 8)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Zero(t, src.renders)
	for _, s := range dst.Samples() {
		assert.Zero(t, s)
	}
}

func newDummyAttached(t *testing.T, g *Graph) Node {
	t.Helper()
	d := newDummySource(testFormat)
	require.NoError(t, g.Attach(d))
	return d
}

func TestGraphMixerBusLimit(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	src := newConstSource(0.25)
	require.NoError(t, g.Attach(src))

	err := g.Connect(src, 0, g.MainMixer(), MaxMixerBuses, Format{})
	require.ErrorIs(t, err, ErrBusOutOfRange)
	assert.Zero(t, g.MainMixer().NumInputs(), "rejected bus does not grow the mixer")

	require.NoError(t, g.Connect(src, 0, g.MainMixer(), MaxMixerBuses-1, Format{}))
	assert.Equal(t, MaxMixerBuses, g.MainMixer().NumInputs())

	dst := NewPCMBuffer(testFormat, 64)
	status, err := g.Render(dst, 64)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.InDelta(t, 0.25, dst.Samples()[0], 1e-6)
	assert.Equal(t, []Node{g.MainMixer(), src}, g.Nodes())
}

func TestFirstFreeBus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		connected []int
		want      int
	}{
		{nil, 0},
		{[]int{0, 1, 2}, 3},
		{[]int{0, 2}, 1},
		{[]int{1, 2}, 0},
		{[]int{0, 1, 5, 9}, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, firstFreeBus(tt.connected), "%v", tt.connected)
	}
}

// recordingInputs feeds a constant to every pulled bus and records the pulls
type recordingInputs struct {
	connected []int
	pulled    []int
}

func (r *recordingInputs) Frames() int      { return 0 }
func (r *recordingInputs) Connected() []int { return r.connected }
func (r *recordingInputs) Pull(bus int, dst *PCMBuffer) (bool, error) {
	r.pulled = append(r.pulled, bus)
	for i := range dst.Samples() {
		dst.Samples()[i] = 0.125
	}
	return true, nil
}

func TestMixerPullsOnlyConnectedBuses(t *testing.T) {
	t.Parallel()

	m := NewMixerNode("m", testFormat)
	m.growTo(MaxMixerBuses)
	in := &recordingInputs{connected: []int{3, MaxMixerBuses - 1}}

	dst := NewPCMBuffer(testFormat, 32)
	dst.SetFrameLength(32)
	require.NoError(t, m.Render(in, 0, dst))
	assert.Equal(t, []int{3, MaxMixerBuses - 1}, in.pulled)
	assert.InDelta(t, 0.25, dst.Samples()[0], 1e-6)
}

func TestGraphDetachKeepsBusIndex(t *testing.T) {
	t.Parallel()

	g := newTestGraph(t)
	mixer := g.MainMixer()
	a, b := newConstSource(0.1), newConstSource(0.2)
	require.NoError(t, g.Attach(a))
	require.NoError(t, g.Attach(b))
	require.NoError(t, g.Connect(a, 0, mixer, 2, Format{}))
	require.NoError(t, g.Connect(b, 0, mixer, 5, Format{}))

	require.NoError(t, g.Detach(a))
	assert.Equal(t, 1, g.ConnectionCount())
	assert.Empty(t, g.Connections(BusPoint{Node: mixer, Bus: 2, Direction: BusInput}))
	bus, err := g.ConnectAppend(newAttached(t, g, 0.3), 0, mixer)
	require.NoError(t, err)
	assert.Equal(t, 0, bus)

	require.NoError(t, g.Detach(b))
	live, err := g.HasLiveInput(mixer)
	require.NoError(t, err)
	assert.True(t, live, "appended source still feeds bus 0")
	assert.Equal(t, 1, g.ConnectionCount())
}

func newAttached(t *testing.T, g *Graph, v float32) Node {
	t.Helper()
	src := newConstSource(v)
	require.NoError(t, g.Attach(src))
	return src
}
