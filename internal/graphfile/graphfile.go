// Package graphfile loads audio graph descriptions written in HCL.
//
// A graph file declares nodes and the connections between them:
//
//	node "osc" {
//	  kind      = "tone"
//	  frequency = engine.sample_rate / 100
//	}
//
//	node "level" {
//	  kind = "gain"
//	  gain = 0.5
//	}
//
//	connect {
//	  from = "osc"
//	  to   = "level"
//	}
//
//	connect {
//	  from = "level"
//	  to   = "main"
//	}
//
// The name "main" refers to the graph's main mixer. Expressions may reference
// engine.sample_rate and engine.channels and call min, max, floor, ceil and abs.
package graphfile

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/tphakala/audiograph/internal/audiocore"
	"github.com/tphakala/audiograph/internal/errors"
	"github.com/tphakala/audiograph/internal/logger"
)

// MainMixer is the reserved node name for the graph's main mixer
const MainMixer = "main"

// Node kinds accepted in node blocks
const (
	KindTone   = "tone"
	KindGain   = "gain"
	KindPlayer = "player"
	KindMixer  = "mixer"
	KindInput  = "input"
)

// ErrInvalidGraph is returned for graph files that parse but do not describe
// a valid graph
var ErrInvalidGraph = errors.New(errors.NewStd("invalid graph file")).
	Component("graphfile").
	Category(errors.CategoryConfiguration).
	Build()

// NodeBlock is a decoded node block. Attributes that do not apply to the
// node's kind are rejected when the graph is built.
type NodeBlock struct {
	Name      string   `hcl:"name,label"`
	Kind      string   `hcl:"kind"`
	Channels  *int     `hcl:"channels,optional"`
	Frequency *float64 `hcl:"frequency,optional"`
	Amplitude *float64 `hcl:"amplitude,optional"`
	Gain      *float64 `hcl:"gain,optional"`
	Volume    *float64 `hcl:"volume,optional"`
	Path      *string  `hcl:"path,optional"`
	Loop      *bool    `hcl:"loop,optional"`
	Autoplay  *bool    `hcl:"autoplay,optional"`
	Capacity  *int     `hcl:"capacity,optional"`
}

// ConnectBlock is a decoded connect block. A nil Bus on a mixer destination
// appends to the mixer's next free bus.
type ConnectBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
	Bus  *int   `hcl:"bus,optional"`
}

// Definition is a parsed graph file
type Definition struct {
	Nodes    []*NodeBlock    `hcl:"node,block"`
	Connects []*ConnectBlock `hcl:"connect,block"`

	// BaseDir resolves relative player paths
	BaseDir string
}

// Load reads and parses the graph file at path
func Load(path string, format audiocore.Format) (*Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("graphfile").
			Category(errors.CategoryFileIO).
			Context("file_path", path).
			Build()
	}
	def, err := Parse(src, path, format)
	if err != nil {
		return nil, err
	}
	def.BaseDir = filepath.Dir(path)
	return def, nil
}

// Parse parses graph file source. filename is used in diagnostics only.
func Parse(src []byte, filename string, format audiocore.Format) (*Definition, error) {
	log := GetLogger()

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(diags, filename, "parse")
	}

	var def Definition
	diags = gohcl.DecodeBody(file.Body, evalContext(format), &def)
	if diags.HasErrors() {
		return nil, diagError(diags, filename, "decode")
	}
	if err := def.validate(); err != nil {
		return nil, err
	}

	log.Debug("graph file parsed",
		logger.String("file", filename),
		logger.Int("nodes", len(def.Nodes)),
		logger.Int("connections", len(def.Connects)))
	return &def, nil
}

func evalContext(format audiocore.Format) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"engine": cty.ObjectVal(map[string]cty.Value{
				"sample_rate": cty.NumberFloatVal(format.SampleRate),
				"channels":    cty.NumberIntVal(int64(format.Channels)),
			}),
		},
		Functions: map[string]function.Function{
			"min":   stdlib.MinFunc,
			"max":   stdlib.MaxFunc,
			"floor": stdlib.FloorFunc,
			"ceil":  stdlib.CeilFunc,
			"abs":   stdlib.AbsoluteFunc,
		},
	}
}

// validate checks names and references. Parameter ranges are checked by the
// node constructors.
func (d *Definition) validate() error {
	names := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		switch {
		case n.Name == "":
			return invalidf("node name is empty")
		case n.Name == MainMixer:
			return invalidf("node name %q is reserved", MainMixer)
		case names[n.Name]:
			return invalidf("node %q declared twice", n.Name)
		}
		names[n.Name] = true

		switch n.Kind {
		case KindTone, KindGain, KindPlayer, KindMixer, KindInput:
		default:
			return invalidf("node %q has unknown kind %q", n.Name, n.Kind)
		}
		if n.Kind == KindPlayer && (n.Path == nil || *n.Path == "") {
			return invalidf("player %q needs a path", n.Name)
		}
	}

	for i, c := range d.Connects {
		if !names[c.From] {
			return invalidf("connect %d: unknown source %q", i, c.From)
		}
		if c.To != MainMixer && !names[c.To] {
			return invalidf("connect %d: unknown destination %q", i, c.To)
		}
		if c.Bus != nil && *c.Bus < 0 {
			return invalidf("connect %d: negative bus %d", i, *c.Bus)
		}
		if c.Bus != nil && *c.Bus >= audiocore.MaxMixerBuses {
			return invalidf("connect %d: bus %d above the limit of %d", i, *c.Bus, audiocore.MaxMixerBuses-1)
		}
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return errors.Newf("%w: "+format, append([]any{ErrInvalidGraph}, args...)...).
		Component("graphfile").
		Category(errors.CategoryConfiguration).
		Build()
}

func diagError(diags hcl.Diagnostics, filename, operation string) error {
	return errors.New(diags).
		Component("graphfile").
		Category(errors.CategoryFileParsing).
		Context("file_path", filename).
		Context("operation", operation).
		Build()
}

// GetLogger returns the graphfile logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("graphfile")
}
