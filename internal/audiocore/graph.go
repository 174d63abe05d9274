package audiocore

import (
	"cmp"
	"slices"
	"sort"
	"sync"

	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// RenderStatus is the outcome of a single graph render
type RenderStatus int

const (
	// StatusSuccess means the buffer holds valid audio
	StatusSuccess RenderStatus = iota
	// StatusCannotRender means the graph could not render in the current context
	StatusCannotRender
	// StatusInsufficientInput means an input node had too little data
	StatusInsufficientInput
	// StatusError means rendering failed
	StatusError
)

// String returns the metric label form of the status
func (s RenderStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCannotRender:
		return "cannot_render"
	case StatusInsufficientInput:
		return "insufficient_input"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Err maps the status to its error class: nil for success, ErrTransientRender
// for statuses the caller may retry or skip, and ErrRenderFatal otherwise.
func (s RenderStatus) Err() error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusCannotRender, StatusInsufficientInput:
		return ErrTransientRender
	default:
		return ErrRenderFatal
	}
}

// BusDirection selects the input or output side of a node
type BusDirection int

const (
	BusInput BusDirection = iota
	BusOutput
)

// BusPoint addresses one bus of one node
type BusPoint struct {
	Node      Node
	Bus       int
	Direction BusDirection
}

// ConnectionPoint is the destination half of an explicit connection
type ConnectionPoint struct {
	Node Node
	Bus  int
}

// Connection is a directed edge from a source output bus to a destination
// input bus. Active is false for connections into a mixer that has not been
// engaged in the live render plan; such connections carry no audio.
type Connection struct {
	Source    Node
	SourceBus int
	Dest      Node
	DestBus   int
	Format    Format
	Active    bool
}

type busKey struct {
	id  NodeID
	bus int
}

type renderedBus struct {
	cycle uint64
	buf   *PCMBuffer
	err   error
}

// Graph is the set of attached nodes and the connections between them.
//
// The render path pulls the main mixer. Structural mutations take the write
// lock, and Render only try-locks for reading, so an in-flight mutation makes
// the render report StatusCannotRender instead of blocking.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[NodeID]Node
	seq     map[NodeID]uint64
	nextSeq uint64
	inputs  map[busKey]*Connection
	outputs map[busKey][]*Connection
	fed     map[NodeID][]int // connected input buses per node, ascending
	live    bool
	plan    map[NodeID]bool

	mainMixer *MixerNode
	format    Format
	log       logger.Logger

	renderMu sync.Mutex
	cycle    uint64
	frames   int
	memo     map[busKey]*renderedBus
}

// NewGraph creates a graph whose main mixer renders in the given format
func NewGraph(format Format, log logger.Logger) (*Graph, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Global().Module("audiocore").Module("graph")
	}

	g := &Graph{
		nodes:     make(map[NodeID]Node),
		seq:       make(map[NodeID]uint64),
		inputs:    make(map[busKey]*Connection),
		outputs:   make(map[busKey][]*Connection),
		fed:       make(map[NodeID][]int),
		plan:      make(map[NodeID]bool),
		mainMixer: NewMixerNode("main", format),
		format:    format,
		log:       log,
		memo:      make(map[busKey]*renderedBus),
	}
	g.attachLocked(g.mainMixer)
	return g, nil
}

// Format returns the main mixer format
func (g *Graph) Format() Format { return g.format }

// MainMixer returns the mixer the transport renders
func (g *Graph) MainMixer() *MixerNode { return g.mainMixer }

// Attach adds a node to the graph. Attaching an attached node is a no-op.
func (g *Graph) Attach(n Node) error {
	if n == nil {
		return errors.Newf("cannot attach nil node").
			Component(ComponentAudioCore).
			Category(errors.CategoryValidation).
			Build()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[n.ID()]; ok {
		return nil
	}
	g.attachLocked(n)
	g.log.Debug("node attached",
		logger.String("node", n.Name()),
		logger.String("kind", n.Kind().String()))
	g.reportSize()
	return nil
}

func (g *Graph) attachLocked(n Node) {
	g.nextSeq++
	g.nodes[n.ID()] = n
	g.seq[n.ID()] = g.nextSeq
}

// Detach removes every connection touching the node, then the node
func (g *Graph) Detach(n Node) error {
	if n == nil {
		return newError(ErrNodeNotFound, "nil node")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[n.ID()]; !ok {
		return newError(ErrNodeNotFound, "node %q", n.Name())
	}
	if n.ID() == g.mainMixer.ID() {
		return newError(ErrProtectedNode, "main mixer")
	}

	for _, c := range g.connectionsTouching(n) {
		g.removeConnection(c, true)
	}

	delete(g.nodes, n.ID())
	delete(g.seq, n.ID())
	delete(g.plan, n.ID())
	for bus := range n.NumOutputs() {
		delete(g.memo, busKey{n.ID(), bus})
	}

	g.log.Debug("node detached", logger.String("node", n.Name()))
	g.reportSize()
	return nil
}

// IsAttached reports whether the node is in the graph
func (g *Graph) IsAttached(n Node) bool {
	if n == nil {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[n.ID()]
	return ok
}

// Nodes returns the attached nodes in attach order
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Node) int {
		return cmp.Compare(g.seq[a.ID()], g.seq[b.ID()])
	})
	return out
}

// ConnectionCount returns the number of connections in the graph
func (g *Graph) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.inputs)
}

// Connections lists the connections on one bus of a node. Input buses have at
// most one connection.
func (g *Graph) Connections(point BusPoint) []Connection {
	if point.Node == nil {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	key := busKey{point.Node.ID(), point.Bus}
	var conns []*Connection
	if point.Direction == BusInput {
		if c, ok := g.inputs[key]; ok {
			conns = append(conns, c)
		}
	} else {
		conns = g.outputs[key]
	}

	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		cp := *c
		cp.Active = g.isActive(c)
		out = append(out, cp)
	}
	return out
}

// InputBusCount returns the number of input buses on a node
func (g *Graph) InputBusCount(n Node) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := g.requireAttached(n); err != nil {
		return 0, err
	}
	return n.NumInputs(), nil
}

// HasLiveInput reports whether any input bus of the node has an active
// connection
func (g *Graph) HasLiveInput(n Node) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := g.requireAttached(n); err != nil {
		return false, err
	}
	for _, bus := range g.fed[n.ID()] {
		if g.isActive(g.inputs[busKey{n.ID(), bus}]) {
			return true, nil
		}
	}
	return false, nil
}

// Live reports whether the graph is in live mode
func (g *Graph) Live() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.live
}

// SetLive switches live mode. Entering live mode engages every mixer that has
// inputs. Leaving it activates every connection.
func (g *Graph) SetLive(live bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.live = live
	clear(g.plan)
	if !live {
		return
	}
	for id := range g.fed {
		if n := g.nodes[id]; n != nil && n.Kind() == NodeKindMixer {
			g.plan[id] = true
		}
	}
}

// ConnectAppend connects src to the first free input bus of the mixer,
// growing the mixer when every bus is taken. When live, the mixer is engaged
// in the render plan so all of its connections become active.
func (g *Graph) ConnectAppend(src Node, srcBus int, mixer Node) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireAttached(src); err != nil {
		return 0, err
	}
	if err := g.requireAttached(mixer); err != nil {
		return 0, err
	}
	m, ok := mixer.(*MixerNode)
	if !ok {
		return 0, newError(ErrBusOutOfRange, "append target %q is not a mixer", mixer.Name())
	}
	format, err := g.validateSource(src, srcBus)
	if err != nil {
		return 0, err
	}
	if err := g.validateDest(format, m); err != nil {
		return 0, err
	}
	if src.ID() == m.ID() || g.reachable(m.ID(), src.ID()) {
		return 0, newError(ErrCycleDetected, "%q -> %q", src.Name(), m.Name())
	}

	bus := firstFreeBus(g.fed[m.ID()])
	if bus >= MaxMixerBuses {
		return 0, newError(ErrBusOutOfRange, "mixer %q has all %d buses connected", m.Name(), MaxMixerBuses)
	}
	m.growTo(bus + 1)

	g.addConnection(&Connection{Source: src, SourceBus: srcBus, Dest: m, DestBus: bus, Format: format})
	if g.live {
		g.plan[m.ID()] = true
	}
	g.reportSize()
	return bus, nil
}

// Connect connects one source bus to one destination bus
func (g *Graph) Connect(src Node, srcBus int, dst Node, dstBus int, format Format) error {
	return g.ConnectPoints(src, srcBus, []ConnectionPoint{{Node: dst, Bus: dstBus}}, format)
}

// ConnectPoints connects one source bus to several destinations. Every point
// is validated before any is applied. A zero format means the source's
// output format.
//
// While live, a mixer bus at or beyond the mixer's bus count is rejected with
// ErrBusOutOfRange, and a connection to a mixer outside the render plan is
// recorded inactive.
func (g *Graph) ConnectPoints(src Node, srcBus int, points []ConnectionPoint, format Format) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireAttached(src); err != nil {
		return err
	}
	srcFormat, err := g.validateSource(src, srcBus)
	if err != nil {
		return err
	}
	if format.IsZero() {
		format = srcFormat
	}
	if !format.SameRate(srcFormat) {
		return newError(ErrFormatMismatch, "connection rate %g Hz, source %q outputs %g Hz",
			format.SampleRate, src.Name(), srcFormat.SampleRate)
	}

	for _, p := range points {
		if err := g.requireAttached(p.Node); err != nil {
			return err
		}
		if err := g.validateDest(format, p.Node); err != nil {
			return err
		}
		if p.Bus < 0 {
			return newError(ErrBusOutOfRange, "input bus %d on %q", p.Bus, p.Node.Name())
		}
		if _, isMixer := p.Node.(*MixerNode); isMixer {
			if p.Bus >= MaxMixerBuses {
				return newError(ErrBusOutOfRange, "input bus %d on mixer %q, maximum is %d",
					p.Bus, p.Node.Name(), MaxMixerBuses-1)
			}
			if g.live && p.Bus >= p.Node.NumInputs() {
				return newError(ErrBusOutOfRange, "input bus %d on running mixer %q with %d buses",
					p.Bus, p.Node.Name(), p.Node.NumInputs())
			}
		} else if p.Bus >= p.Node.NumInputs() {
			return newError(ErrBusOutOfRange, "input bus %d on %q with %d inputs",
				p.Bus, p.Node.Name(), p.Node.NumInputs())
		}
		if p.Node.ID() == src.ID() || g.reachable(p.Node.ID(), src.ID()) {
			return newError(ErrCycleDetected, "%q -> %q", src.Name(), p.Node.Name())
		}
	}

	for _, p := range points {
		if m, isMixer := p.Node.(*MixerNode); isMixer {
			m.growTo(p.Bus + 1)
		}
		if old, ok := g.inputs[busKey{p.Node.ID(), p.Bus}]; ok {
			g.removeConnection(old, false)
		}
		g.addConnection(&Connection{Source: src, SourceBus: srcBus, Dest: p.Node, DestBus: p.Bus, Format: format})
	}
	g.reportSize()
	return nil
}

// DisconnectInput removes the connection feeding an input bus, if any
func (g *Graph) DisconnectInput(n Node, bus int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireAttached(n); err != nil {
		return err
	}
	if c, ok := g.inputs[busKey{n.ID(), bus}]; ok {
		g.removeConnection(c, true)
		g.reportSize()
	}
	return nil
}

// DisconnectOutput removes every connection leaving an output bus
func (g *Graph) DisconnectOutput(n Node, bus int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.requireAttached(n); err != nil {
		return err
	}
	conns := append([]*Connection(nil), g.outputs[busKey{n.ID(), bus}]...)
	for _, c := range conns {
		g.removeConnection(c, true)
	}
	if len(conns) > 0 {
		g.reportSize()
	}
	return nil
}

// Render pulls frames from the main mixer into dst. It never blocks on a
// structural mutation.
func (g *Graph) Render(dst *PCMBuffer, frames int) (RenderStatus, error) {
	if !g.mu.TryRLock() {
		return StatusCannotRender, nil
	}
	defer g.mu.RUnlock()

	g.renderMu.Lock()
	defer g.renderMu.Unlock()

	frames = min(frames, dst.FrameCapacity())
	dst.SetFrameLength(frames)
	if frames == 0 {
		return StatusSuccess, nil
	}

	g.cycle++
	g.frames = frames

	buf, err := g.renderBus(g.mainMixer, 0)
	if err != nil {
		dst.Silence()
		if errors.Is(err, ErrInsufficientInput) {
			return StatusInsufficientInput, nil
		}
		return StatusError, err
	}
	dst.CopyFrom(buf)
	return StatusSuccess, nil
}

// renderBus renders one output bus of a node once per cycle
func (g *Graph) renderBus(n Node, bus int) (*PCMBuffer, error) {
	key := busKey{n.ID(), bus}
	r := g.memo[key]
	if r != nil && r.cycle == g.cycle {
		return r.buf, r.err
	}
	if r == nil {
		r = &renderedBus{}
		g.memo[key] = r
	}

	format := n.OutputFormat(bus)
	if r.buf == nil || r.buf.Format() != format {
		r.buf = NewPCMBuffer(format, g.frames)
	}
	r.buf.ensureCapacity(g.frames)
	r.buf.SetFrameLength(g.frames)

	r.cycle = g.cycle
	r.err = n.Render(graphInputs{g: g, node: n}, bus, r.buf)
	return r.buf, r.err
}

type graphInputs struct {
	g    *Graph
	node Node
}

func (in graphInputs) Frames() int { return in.g.frames }

func (in graphInputs) Connected() []int { return in.g.fed[in.node.ID()] }

func (in graphInputs) Pull(bus int, dst *PCMBuffer) (bool, error) {
	c, ok := in.g.inputs[busKey{in.node.ID(), bus}]
	if !ok || !in.g.isActive(c) {
		dst.Silence()
		return false, nil
	}
	buf, err := in.g.renderBus(c.Source, c.SourceBus)
	if err != nil {
		dst.Silence()
		return false, err
	}
	dst.CopyFrom(buf)
	return true, nil
}

func (g *Graph) isActive(c *Connection) bool {
	return !g.live || c.Dest.Kind() != NodeKindMixer || g.plan[c.Dest.ID()]
}

func (g *Graph) requireAttached(n Node) error {
	if n == nil {
		return newError(ErrNodeNotFound, "nil node")
	}
	if _, ok := g.nodes[n.ID()]; !ok {
		return newError(ErrNodeNotFound, "node %q", n.Name())
	}
	return nil
}

func (g *Graph) validateSource(src Node, bus int) (Format, error) {
	if bus < 0 || bus >= src.NumOutputs() {
		return Format{}, newError(ErrBusOutOfRange, "output bus %d on %q with %d outputs",
			bus, src.Name(), src.NumOutputs())
	}
	return src.OutputFormat(bus), nil
}

func (g *Graph) validateDest(format Format, dst Node) error {
	if dst.NumOutputs() == 0 {
		return nil
	}
	if want := dst.OutputFormat(0); !format.SameRate(want) {
		return newError(ErrFormatMismatch, "connection rate %g Hz, %q runs at %g Hz",
			format.SampleRate, dst.Name(), want.SampleRate)
	}
	return nil
}

// reachable reports whether to can be reached from from by following outputs
func (g *Graph) reachable(from, to NodeID) bool {
	seen := map[NodeID]bool{from: true}
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := g.nodes[id]
		if n == nil {
			continue
		}
		for bus := range n.NumOutputs() {
			for _, c := range g.outputs[busKey{id, bus}] {
				next := c.Dest.ID()
				if next == to {
					return true
				}
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}
	}
	return false
}

func (g *Graph) connectionsTouching(n Node) []*Connection {
	var out []*Connection
	for _, bus := range g.fed[n.ID()] {
		out = append(out, g.inputs[busKey{n.ID(), bus}])
	}
	for bus := range n.NumOutputs() {
		out = append(out, g.outputs[busKey{n.ID(), bus}]...)
	}
	return out
}

func (g *Graph) addConnection(c *Connection) {
	id := c.Dest.ID()
	g.inputs[busKey{id, c.DestBus}] = c
	if i, found := slices.BinarySearch(g.fed[id], c.DestBus); !found {
		g.fed[id] = slices.Insert(g.fed[id], i, c.DestBus)
	}
	outKey := busKey{c.Source.ID(), c.SourceBus}
	g.outputs[outKey] = append(g.outputs[outKey], c)
}

// removeConnection deletes c. With updatePlan set, a live mixer left without
// inputs leaves the render plan.
func (g *Graph) removeConnection(c *Connection, updatePlan bool) {
	id := c.Dest.ID()
	delete(g.inputs, busKey{id, c.DestBus})
	if i, found := slices.BinarySearch(g.fed[id], c.DestBus); found {
		g.fed[id] = slices.Delete(g.fed[id], i, i+1)
		if len(g.fed[id]) == 0 {
			delete(g.fed, id)
		}
	}

	outKey := busKey{c.Source.ID(), c.SourceBus}
	conns := g.outputs[outKey]
	for i, oc := range conns {
		if oc == c {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(g.outputs, outKey)
	} else {
		g.outputs[outKey] = conns
	}

	if updatePlan && g.live && g.plan[c.Dest.ID()] && !g.hasInputs(c.Dest) {
		delete(g.plan, c.Dest.ID())
	}
}

func (g *Graph) hasInputs(n Node) bool { return len(g.fed[n.ID()]) > 0 }

// firstFreeBus returns the lowest bus missing from the ascending, distinct
// list of connected buses
func firstFreeBus(connected []int) int {
	return sort.Search(len(connected), func(i int) bool { return connected[i] != i })
}

func (g *Graph) reportSize() {
	GetMetrics().UpdateGraphSize(len(g.nodes), len(g.inputs))
}
