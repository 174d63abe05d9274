package audiocore

import (
	"slices"

	"github.com/tphakala/audiograph/internal/errors"
)

const (
	procEnsureBusCapacity = "ensure_bus_capacity"
	procPrimeMixer        = "prime_mixer"
)

// mixerGraph is the part of Graph the running-graph workarounds need
type mixerGraph interface {
	Attach(n Node) error
	Detach(n Node) error
	ConnectAppend(src Node, srcBus int, mixer Node) (int, error)
	DisconnectOutput(n Node, bus int) error
	InputBusCount(n Node) (int, error)
	HasLiveInput(n Node) (bool, error)
}

// ensureBusCapacity grows the mixer until bus is a valid input bus. Each round
// attaches a silent dummy and appends it through the safe form. All dummies
// are removed afterwards; the bus count does not shrink. It returns the
// number of dummies used.
func ensureBusCapacity(g mixerGraph, mixer Node, bus int) (int, error) {
	if bus < 0 || bus >= MaxMixerBuses {
		return 0, newError(ErrBusOutOfRange, "input bus %d on mixer %q, maximum is %d",
			bus, mixer.Name(), MaxMixerBuses-1)
	}
	count, err := g.InputBusCount(mixer)
	if err != nil {
		return 0, err
	}

	var dummies []Node
	defer func() {
		for _, d := range slices.Backward(dummies) {
			_ = g.DisconnectOutput(d, 0)
			_ = g.Detach(d)
		}
	}()

	format := mixer.OutputFormat(0)
	for attempts := 0; count <= bus; attempts++ {
		if attempts > bus {
			return len(dummies), newError(ErrBusOutOfRange,
				"mixer %q stuck at %d buses, need %d", mixer.Name(), count, bus+1)
		}

		d := newDummySource(format)
		if err := g.Attach(d); err != nil {
			return len(dummies), err
		}
		dummies = append(dummies, d)
		if _, err := g.ConnectAppend(d, 0, mixer); err != nil {
			return len(dummies), err
		}

		if count, err = g.InputBusCount(mixer); err != nil {
			return len(dummies), err
		}
	}
	return len(dummies), nil
}

// primeMixerIfEmpty engages a mixer with no live input by appending one silent
// dummy. The returned release func removes the dummy and must be called after
// the real connection is made. The release func is never nil.
func primeMixerIfEmpty(g mixerGraph, mixer Node) (release func(), used int, err error) {
	release = func() {}

	live, err := g.HasLiveInput(mixer)
	if err != nil || live {
		return release, 0, err
	}

	d := newDummySource(mixer.OutputFormat(0))
	if err := g.Attach(d); err != nil {
		return release, 0, err
	}
	if _, err := g.ConnectAppend(d, 0, mixer); err != nil {
		return release, 1, errors.Join(err, g.Detach(d))
	}

	release = func() {
		_ = g.DisconnectOutput(d, 0)
		_ = g.Detach(d)
	}
	return release, 1, nil
}
