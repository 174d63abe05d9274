package audiocore

// Inputs gives a rendering node access to its upstream connections
type Inputs interface {
	// Pull renders whatever feeds the given input bus into dst. It reports
	// false and silences dst when no active connection feeds the bus.
	Pull(bus int, dst *PCMBuffer) (bool, error)

	// Frames returns the number of frames requested in the current cycle
	Frames() int

	// Connected returns the input buses that have a connection, in
	// ascending order. The slice must not be modified.
	Connected() []int
}

// Node is a unit of audio processing in the graph.
//
// Render fills dst, whose frame length is already set to the number of
// requested frames, with the output of the given bus. Nodes that cannot
// produce the requested frames return ErrInsufficientInput.
type Node interface {
	ID() NodeID
	Name() string
	Kind() NodeKind
	NumInputs() int
	NumOutputs() int
	OutputFormat(bus int) Format
	Render(in Inputs, bus int, dst *PCMBuffer) error
}

// BaseNode implements the identity half of Node. Concrete nodes embed it and
// add Render.
type BaseNode struct {
	id      NodeID
	name    string
	kind    NodeKind
	inputs  int
	outputs int
	format  Format
}

// NewBaseNode creates the identity of a node with a fresh ID
func NewBaseNode(name string, kind NodeKind, inputs, outputs int, format Format) BaseNode {
	return BaseNode{
		id:      NewNodeID(),
		name:    name,
		kind:    kind,
		inputs:  inputs,
		outputs: outputs,
		format:  format,
	}
}

func (b *BaseNode) ID() NodeID                { return b.id }
func (b *BaseNode) Name() string              { return b.name }
func (b *BaseNode) Kind() NodeKind            { return b.kind }
func (b *BaseNode) NumInputs() int            { return b.inputs }
func (b *BaseNode) NumOutputs() int           { return b.outputs }
func (b *BaseNode) OutputFormat(_ int) Format { return b.format }

// dummySource is a silent source used to work around running-graph hazards
type dummySource struct {
	BaseNode
}

func newDummySource(format Format) *dummySource {
	return &dummySource{BaseNode: NewBaseNode("dummy", NodeKindSource, 0, 1, format)}
}

func (d *dummySource) Render(_ Inputs, _ int, dst *PCMBuffer) error {
	dst.Silence()
	return nil
}
