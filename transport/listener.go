package transport

import "google.golang.org/grpc/status"

// Listener is the narrow capability interface the transport drives; it
// replaces the inheritance-based listener/handler hierarchy of the
// original transports with three independent callbacks (§9 design notes).
// None of these are ever invoked while the transport's mutex is held.
type Listener interface {
	// TransportReady fires once, after the first SETTINGS frame is
	// observed, before any RPC can complete successfully.
	TransportReady()

	// TransportShutdown fires exactly once, strictly before
	// TransportTerminated, with the status every still-active stream
	// above the go-away boundary was (or will be) failed with.
	TransportShutdown(st *status.Status)

	// TransportTerminated fires exactly once, after every stream has
	// reported a terminal status and no more I/O will occur.
	TransportTerminated()
}
