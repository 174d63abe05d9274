package graphfile

import (
	"path/filepath"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/audiocore/nodes"
	"github.com/tphakala/audiograph/internal/logger"
)

// Defaults for omitted node attributes
const (
	DefaultFrequency = 440.0
	DefaultAmplitude = 0.5
	// DefaultInputSeconds sizes input node queues when capacity is omitted
	DefaultInputSeconds = 1
)

// Built holds the nodes created from a definition, by name
type Built struct {
	nodes   map[string]audiocore.Node
	order   []string
	players []*nodes.Player
	inputs  map[string]*nodes.Input

	autoplay []*nodes.Player
}

// Node returns the named node. MainMixer is not included.
func (b *Built) Node(name string) (audiocore.Node, bool) {
	n, ok := b.nodes[name]
	return n, ok
}

// Names returns node names in declaration order
func (b *Built) Names() []string { return append([]string(nil), b.order...) }

// Players returns the file player nodes in declaration order
func (b *Built) Players() []*nodes.Player { return b.players }

// Inputs returns the input nodes by name
func (b *Built) Inputs() map[string]*nodes.Input { return b.inputs }

// Build creates the declared nodes and connects them in the session's graph.
// Connections are made through the session's connection manager, so a graph
// can be built into a running session.
func (d *Definition) Build(s *audiocore.Session) (*Built, error) {
	log := GetLogger()
	format := s.Graph().Format()

	b := &Built{
		nodes:  make(map[string]audiocore.Node, len(d.Nodes)),
		inputs: make(map[string]*nodes.Input),
	}
	for _, block := range d.Nodes {
		n, err := d.buildNode(block, format, b)
		if err != nil {
			return nil, err
		}
		b.nodes[block.Name] = n
		b.order = append(b.order, block.Name)
	}

	cm := s.Connections()
	main := s.Graph().MainMixer()
	for i, c := range d.Connects {
		src := b.nodes[c.From]
		var dst audiocore.Node = main
		if c.To != MainMixer {
			dst = b.nodes[c.To]
		}

		if mixer, ok := dst.(*audiocore.MixerNode); ok && c.Bus == nil {
			bus, err := cm.ConnectAppend(src, 0, mixer)
			if err != nil {
				return nil, err
			}
			log.Debug("connected",
				logger.Int("index", i),
				logger.String("from", c.From),
				logger.String("to", c.To),
				logger.Int("bus", bus))
			continue
		}

		bus := 0
		if c.Bus != nil {
			bus = *c.Bus
		}
		if err := cm.Connect(src, 0, dst, bus, audiocore.Format{}); err != nil {
			return nil, err
		}
		log.Debug("connected",
			logger.Int("index", i),
			logger.String("from", c.From),
			logger.String("to", c.To),
			logger.Int("bus", bus))
	}

	for _, p := range b.autoplay {
		p.Play()
	}
	return b, nil
}

func (d *Definition) buildNode(block *NodeBlock, engine audiocore.Format, b *Built) (audiocore.Node, error) {
	format := engine
	if block.Channels != nil {
		format.Channels = *block.Channels
	}
	if err := d.checkAttributes(block); err != nil {
		return nil, err
	}

	switch block.Kind {
	case KindTone:
		return nodes.NewTone(block.Name, format,
			floatOr(block.Frequency, DefaultFrequency),
			float32(floatOr(block.Amplitude, DefaultAmplitude)))

	case KindGain:
		return nodes.NewGain(block.Name, format, float32(floatOr(block.Gain, 1)))

	case KindMixer:
		if err := format.Validate(); err != nil {
			return nil, err
		}
		volume := floatOr(block.Volume, 1)
		if volume < 0 || volume > nodes.MaxGain {
			return nil, invalidf("mixer %q volume %g outside 0..%g", block.Name, volume, nodes.MaxGain)
		}
		m := audiocore.NewMixerNode(block.Name, format)
		m.SetVolume(float32(volume))
		return m, nil

	case KindPlayer:
		path := *block.Path
		if !filepath.IsAbs(path) && d.BaseDir != "" {
			path = filepath.Join(d.BaseDir, path)
		}
		p, err := nodes.LoadPlayer(block.Name, format, path)
		if err != nil {
			return nil, err
		}
		p.SetLoop(block.Loop != nil && *block.Loop)
		b.players = append(b.players, p)
		if block.Autoplay == nil || *block.Autoplay {
			b.autoplay = append(b.autoplay, p)
		}
		return p, nil

	case KindInput:
		capacity := int(format.SampleRate) * DefaultInputSeconds
		if block.Capacity != nil {
			capacity = *block.Capacity
		}
		in, err := nodes.NewInput(block.Name, format, capacity)
		if err != nil {
			return nil, err
		}
		b.inputs[block.Name] = in
		return in, nil
	}
	return nil, invalidf("node %q has unknown kind %q", block.Name, block.Kind)
}

// checkAttributes rejects attributes set on a kind that ignores them
func (d *Definition) checkAttributes(block *NodeBlock) error {
	set := map[string]bool{
		"frequency": block.Frequency != nil,
		"amplitude": block.Amplitude != nil,
		"gain":      block.Gain != nil,
		"volume":    block.Volume != nil,
		"path":      block.Path != nil,
		"loop":      block.Loop != nil,
		"autoplay":  block.Autoplay != nil,
		"capacity":  block.Capacity != nil,
	}
	allowed := map[string][]string{
		KindTone:   {"frequency", "amplitude"},
		KindGain:   {"gain"},
		KindMixer:  {"volume"},
		KindPlayer: {"path", "loop", "autoplay"},
		KindInput:  {"capacity"},
	}
	for _, name := range allowed[block.Kind] {
		delete(set, name)
	}
	for name, present := range set {
		if present {
			return invalidf("attribute %q does not apply to %s node %q", name, block.Kind, block.Name)
		}
	}
	return nil
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
