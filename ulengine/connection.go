package ulengine

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
	"github.com/kestrel-health/dicomul/ullog"
	"github.com/kestrel-health/dicomul/ulpdu"
)

// pendingRequest is one outstanding request awaiting a response, keyed by
// its MessageID in Connection.pending.
type pendingRequest struct {
	msg uldimse.Message
	pc  *ulassoc.PresentationContext
}

// outgoingMessage is one entry in msgQueue: a DIMSE message plus enough
// information to resolve a presentation context for it.
type outgoingMessage struct {
	msg       uldimse.Message
	dataset   *dicom.Dataset
	hint      ulassoc.OutgoingMessage
	isRequest bool
}

// Connection is one DICOM Upper Layer association's live state: the
// negotiated Association, the outbound PDU/message queues and their
// backpressure, the in-flight request table, and the receive
// reassembler's current command/dataset state. All of it is guarded by a
// single mutex, per the concurrency model: no field here is ever read or
// written without holding mu, except immutable configuration set once at
// construction.
type Connection struct {
	stream   ByteStream
	isServer bool
	logID    string
	options  Options
	metrics  *Metrics
	logger   ullog.Logger

	policy         ulassoc.AbstractSyntaxPolicy // server only
	cstoreProvider CStoreSinkProvider
	transcoder     Transcoder
	provider       *ProviderHandlers
	user           *UserHandlers

	implementationClassUID   string
	implementationVersion    string
	calledAETitle            string
	callingAETitle           string

	mu   sync.Mutex
	cond *sync.Cond

	// writeMu serializes every write to stream. runWriter and abortAndClose
	// run on different goroutines and can both reach for the wire at once;
	// net.Conn.Write is goroutine-safe but not atomic across two
	// unsynchronized multi-byte calls, so without this an abort racing a
	// normal PDU write could interleave bytes on the wire.
	writeMu sync.Mutex

	isConnected     bool
	association     *ulassoc.Association
	pendingProposed []ulassoc.PresentationContext // client only: proposed contexts awaiting A-ASSOCIATE-AC/RJ
	pduQueue        []ulpdu.PDU
	msgQueue        []outgoingMessage
	pending         map[uldimse.MessageID]*pendingRequest
	writing         bool
	sending         bool
	nextMessageID   uldimse.MessageID

	// Receive reassembler (C4) state: one command/dataset pair in flight
	// at a time, per spec's singular "current dimse being assembled."
	curCommand    uldimse.Message
	curCommandPC  *ulassoc.PresentationContext
	curBuf        *bytes.Buffer
	curCStoreSink Sink
	curCStoreReq  *uldimse.CStoreRq
	curCStoreMeta FileMetaInformation

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	handshakeDone chan struct{}
	handshakeOnce sync.Once
}

// finishHandshake closes handshakeDone exactly once, so a reject that races
// a later retry (or a malformed peer resending A-ASSOCIATE-AC) never
// double-closes the channel.
func (c *Connection) finishHandshake() {
	c.handshakeOnce.Do(func() { close(c.handshakeDone) })
}

// WaitForHandshake blocks until the association handshake completes (by
// acceptance, rejection, or connection close), or ctx is done.
func (c *Connection) WaitForHandshake(ctx context.Context) error {
	select {
	case <-c.handshakeDone:
		return nil
	case <-c.closed:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newConnection(stream ByteStream, isServer bool, opts Options, logID string) *Connection {
	c := &Connection{
		stream:        stream,
		isServer:      isServer,
		options:       opts,
		logID:         logID,
		logger:        ullog.Default,
		transcoder:    IdentityTranscoder{},
		isConnected:   true, // the stream is already open; PDUs may queue before Run
		pending:       make(map[uldimse.MessageID]*pendingRequest),
		closed:        make(chan struct{}),
		handshakeDone: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// LogID identifies this connection in log output: the remote AE title once
// negotiated (when Options.UseRemoteAEForLogName is set), else whatever
// was supplied at construction.
func (c *Connection) LogID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logID
}

// Association returns the negotiated association, or nil before the
// handshake completes.
func (c *Connection) Association() *ulassoc.Association {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.association
}

// IsConnected reports whether the connection is still open.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

func (c *Connection) remoteLogName() string {
	if c.association == nil {
		return ""
	}
	if c.isServer {
		return c.association.CallingAETitle
	}
	return c.association.CalledAETitle
}

// adoptRemoteLogName switches the log identity to the peer's AE title, per
// Options.UseRemoteAEForLogName, once the handshake has populated
// Association.
func (c *Connection) adoptRemoteLogName() {
	if !c.options.UseRemoteAEForLogName {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if name := c.remoteLogName(); name != "" {
		c.logID = name
	}
}

// close tears the connection down exactly once: marks it disconnected,
// wakes every waiter, closes the transport, and invokes the role's
// OnConnectionClosed upcall outside the lock (invariant 7).
func (c *Connection) close(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.isConnected = false
		c.closeErr = err
		c.mu.Unlock()
		c.cond.Broadcast()
		close(c.closed)
		if c.stream != nil {
			if cerr := c.stream.Close(); cerr != nil {
				c.logger.Debugf("%s: transport close: %v", c.logID, cerr)
			}
		}
		c.logger.Infof("%s: connection closed: %v", c.logID, err)
		if c.isServer {
			if c.provider != nil && c.provider.OnConnectionClosed != nil {
				c.provider.OnConnectionClosed(c, err)
			}
		} else if c.user != nil && c.user.OnConnectionClosed != nil {
			c.user.OnConnectionClosed(c, err)
		}
	})
}

// Close shuts the connection down from the caller's side. Idempotent.
func (c *Connection) Close() error {
	c.close(nil)
	return nil
}

// Done returns a channel closed once the connection has fully shut down,
// mirroring context.Context's cancellation idiom.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Err returns the reason the connection closed, or nil if it's still open
// or closed cleanly via Close.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Connection) abortAndClose(source ulpdu.AbortSource, reason ulpdu.AbortReason, err error) {
	c.mu.Lock()
	connected := c.isConnected
	c.mu.Unlock()
	if connected {
		abort := &ulpdu.Abort{Source: source, Reason: reason}
		if raw, encErr := ulpdu.Encode(abort); encErr == nil {
			c.writeMu.Lock()
			_, werr := c.stream.Write(raw)
			c.writeMu.Unlock()
			if werr != nil {
				c.logger.Debugf("%s: write abort: %v", c.logID, werr)
			}
		}
	}
	c.close(err)
}

func (c *Connection) protocolErrorf(format string, args ...interface{}) error {
	return &ProtocolError{Label: fmt.Sprintf(format, args...)}
}
