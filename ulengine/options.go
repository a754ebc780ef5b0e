package ulengine

import "time"

// Options carries every engine-level configuration knob. It is a plain
// struct supplied by the caller — the engine is a library, not a process,
// and never reads environment or config files itself.
type Options struct {
	// MaximumPDUsInQueue bounds the outbound pdu_queue; SendPDU blocks
	// once it is reached (the backpressure of invariant 4).
	MaximumPDUsInQueue int

	// MaxCommandBuffer and MaxDataBuffer cap the PDVStream's per-mode
	// buffer size, independent of (and combined with, via min) the
	// negotiated max PDU length.
	MaxCommandBuffer int
	MaxDataBuffer    int

	// UseRemoteAEForLogName swaps the connection's log identity to the
	// remote AE title once the handshake completes.
	UseRemoteAEForLogName bool

	// LogDataPDUs and LogDimseDatasets control verbosity of frame- and
	// message-level tracing.
	LogDataPDUs      bool
	LogDimseDatasets bool

	// MaxAsyncOpsInvoked is the local cap offered to the peer during
	// association negotiation. It is distinct from
	// Association.MaxAsyncOpsInvoked, which is what was actually
	// negotiated and what flow control checks against.
	MaxAsyncOpsInvoked uint16

	// HandshakeTimeout bounds how long the engine waits for the
	// handshake PDU (AssocAC/AssocRJ on the client side, AssocRQ on the
	// server side) before treating the peer as unresponsive.
	HandshakeTimeout time.Duration
}

// DefaultOptions returns the engine's out-of-the-box configuration.
func DefaultOptions() Options {
	return Options{
		MaximumPDUsInQueue: 16,
		MaxCommandBuffer:   1 << 16,
		MaxDataBuffer:      1 << 20,
		MaxAsyncOpsInvoked: 1,
		HandshakeTimeout:   30 * time.Second,
	}
}
