// Package audiocore is the audio graph engine: a graph of nodes joined by bus
// connections, a transport that drives the graph from a hardware clock or from
// the caller, and the machinery that keeps both healthy while audio flows.
//
// # Architecture Overview
//
//   - Graph: attached nodes, bus connections and the pull-model render path
//   - Transport: Stopped, Preparing, Running and RenderingOffline states
//   - ConnectionManager: connects nodes safely while the transport is running
//   - Recovery: restarts the engine after route and configuration changes
//   - OfflineRenderer: renders a fixed duration into a callback or file sink
//   - Session: owns all of the above plus the "should be running" intent
//
// # Concurrency
//
// Structural graph mutations take the graph write lock. The hardware render
// callback only ever try-locks the graph for reading; when a mutation is in
// progress the render reports StatusCannotRender and the transport outputs
// silence for that period instead of blocking the audio thread.
//
// Route and configuration notifications arrive on driver goroutines and are
// handed to the recovery loop through a bounded channel.
//
// Offline rendering runs on the caller's goroutine and is never concurrent with
// live rendering.
//
// # Running Graph Mutations
//
// A running graph has two hazards. Connecting through the explicit
// connection-point form to a mixer bus at or beyond the mixer's bus count
// fails with ErrBusOutOfRange. Connecting to a mixer that has no live input
// produces an inactive, silent connection. ConnectionManager defends against
// both with ensureBusCapacity and primeMixerIfEmpty, which use temporary
// silent dummy sources appended through the safe connection form.
//
// # Error Handling
//
// All errors use the enhanced error system with the audiocore component and a
// category. Sentinels can be matched with errors.Is through any wrapping:
//
//	if errors.Is(err, audiocore.ErrNodeNotFound) {
//	    // node was never attached
//	}
package audiocore
