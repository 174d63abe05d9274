package audiocore

import (
	"sync"

	"github.com/tphakala/audiograph/internal/logger"
)

// ConnectionManager connects nodes safely whether or not the transport is
// running. Unattached nodes are attached first. While running, mixer
// destinations get their bus capacity ensured and are primed with a live
// input before the real connection is made.
type ConnectionManager struct {
	mu        sync.Mutex
	graph     *Graph
	transport *Transport
	log       logger.Logger
}

// NewConnectionManager creates a connection manager for the graph and its transport
func NewConnectionManager(graph *Graph, transport *Transport, log logger.Logger) *ConnectionManager {
	if log == nil {
		log = logger.Global().Module("audiocore").Module("connections")
	}
	return &ConnectionManager{graph: graph, transport: transport, log: log}
}

// Connect connects one source bus to one destination bus
func (cm *ConnectionManager) Connect(src Node, srcBus int, dst Node, dstBus int, format Format) error {
	return cm.ConnectPoints(src, srcBus, []ConnectionPoint{{Node: dst, Bus: dstBus}}, format)
}

// ConnectPoints connects one source bus to several destinations
func (cm *ConnectionManager) ConnectPoints(src Node, srcBus int, points []ConnectionPoint, format Format) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.safeAttach(src); err != nil {
		return err
	}
	for _, p := range points {
		if err := cm.safeAttach(p.Node); err != nil {
			return err
		}
	}

	if !cm.running() {
		return cm.graph.ConnectPoints(src, srcBus, points, format)
	}

	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	for _, p := range points {
		if p.Node.Kind() != NodeKindMixer {
			continue
		}

		used, err := ensureBusCapacity(cm.graph, p.Node, p.Bus)
		GetMetrics().RecordWorkaroundDummies(procEnsureBusCapacity, used)
		if err != nil {
			return err
		}

		release, used, err := primeMixerIfEmpty(cm.graph, p.Node)
		GetMetrics().RecordWorkaroundDummies(procPrimeMixer, used)
		releases = append(releases, release)
		if err != nil {
			return err
		}

		cm.log.Debug("mixer prepared for running connection",
			logger.String("mixer", p.Node.Name()),
			logger.Int("bus", p.Bus),
			logger.Bool("primed", used > 0))
	}

	return cm.graph.ConnectPoints(src, srcBus, points, format)
}

// ConnectAppend connects src to the next free bus of a mixer
func (cm *ConnectionManager) ConnectAppend(src Node, srcBus int, mixer *MixerNode) (int, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if err := cm.safeAttach(src); err != nil {
		return 0, err
	}
	if err := cm.safeAttach(mixer); err != nil {
		return 0, err
	}
	return cm.graph.ConnectAppend(src, srcBus, mixer)
}

// Disconnect removes the connection feeding an input bus
func (cm *ConnectionManager) Disconnect(dst Node, bus int) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.graph.DisconnectInput(dst, bus)
}

// safeAttach attaches the node unless it is already attached
func (cm *ConnectionManager) safeAttach(n Node) error {
	if n == nil {
		return newError(ErrNodeNotFound, "nil node")
	}
	if cm.graph.IsAttached(n) {
		return nil
	}
	return cm.graph.Attach(n)
}

// running reports whether running-graph hazards apply. The graph is live
// from just before the driver starts until it stops.
func (cm *ConnectionManager) running() bool {
	return cm.transport.IsRunning() || cm.graph.Live()
}
