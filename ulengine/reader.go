package ulengine

import (
	"context"
	"errors"
	"io"

	"github.com/kestrel-health/dicomul/ulpdu"
)

// runReader is the sole reader of the transport: it frames PDUs one at a
// time and dispatches each to the handshake, release, abort, or
// reassembler path. A clean peer close (io.EOF before any header byte)
// ends the connection without an abort; anything else is classified per
// §7's error taxonomy.
func (c *Connection) runReader(ctx context.Context) {
	for {
		raw, err := ulpdu.ReadPDU(c.stream, ulpdu.MaxPDULengthSanityCap)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.close(nil)
				return
			}
			var protoErr *ulpdu.ProtocolError
			if errors.As(err, &protoErr) {
				c.abortAndClose(ulpdu.AbortSourceServiceUser, ulpdu.AbortReasonNotSpecified, &ProtocolError{Label: "read PDU", Err: err})
				return
			}
			c.close(&TransportError{Err: err})
			return
		}
		c.metrics.recordPDUReceived(len(raw.Body) + 6)

		pdu, err := ulpdu.Decode(raw)
		if err != nil {
			if ulpdu.IsReservedPDU(err) {
				c.logger.Debugf("%s: ignoring reserved PDU type", c.logID)
				continue
			}
			c.abortAndClose(ulpdu.AbortSourceServiceUser, ulpdu.AbortReasonNotSpecified, &ProtocolError{Label: "decode PDU", Err: err})
			return
		}

		if err := c.dispatchPDU(ctx, pdu); err != nil {
			c.handleDispatchError(err)
			return
		}
		if !c.IsConnected() {
			return
		}
	}
}

func (c *Connection) dispatchPDU(ctx context.Context, pdu ulpdu.PDU) error {
	switch v := pdu.(type) {
	case *ulpdu.AssociateRQOrAC:
		if v.IsRequest {
			return c.handleAssociateRQ(ctx, v)
		}
		return c.handleAssociateAC(ctx, v)

	case *ulpdu.AssociateRJ:
		return c.handleAssociateRJ(v)

	case *ulpdu.PDataTF:
		return c.handlePDataTF(ctx, v)

	case *ulpdu.ReleaseRQ:
		return c.handleReleaseRequest(ctx)

	case *ulpdu.ReleaseRP:
		return c.handleReleaseResponse()

	case *ulpdu.Abort:
		return c.handleAbort(v)

	default:
		return c.protocolErrorf("unhandled PDU type %T", v)
	}
}

// handleDispatchError classifies an error from dispatchPDU per §7:
// ProtocolError aborts and closes; TransportError closes without an abort;
// anything else (e.g. a sink I/O error wrapped by the reassembler) is
// treated as a protocol-level failure since it leaves the DIMSE stream in
// an unrecoverable state.
func (c *Connection) handleDispatchError(err error) {
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		c.abortAndClose(ulpdu.AbortSourceServiceUser, ulpdu.AbortReasonNotSpecified, err)
		return
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		c.close(err)
		return
	}
	c.abortAndClose(ulpdu.AbortSourceServiceUser, ulpdu.AbortReasonNotSpecified, err)
}

func (c *Connection) handleReleaseRequest(ctx context.Context) error {
	if c.isServer && c.provider != nil && c.provider.OnReleaseRequest != nil {
		c.provider.OnReleaseRequest(ctx, c)
	}
	return c.SendPDU(&ulpdu.ReleaseRP{})
}

func (c *Connection) handleReleaseResponse() error {
	if !c.isServer && c.user != nil && c.user.OnReleaseResponse != nil {
		c.user.OnReleaseResponse(c)
	}
	c.close(nil)
	return nil
}

func (c *Connection) handleAbort(a *ulpdu.Abort) error {
	if c.isServer {
		if c.provider != nil && c.provider.OnAbort != nil {
			c.provider.OnAbort(c, a.Source, a.Reason)
		}
	} else if c.user != nil && c.user.OnAbort != nil {
		c.user.OnAbort(c, a.Source, a.Reason)
	}
	c.close(&ProtocolError{Label: "association aborted by peer"})
	return nil
}

// SendReleaseRequest starts a graceful shutdown: the peer's A-RELEASE-RP
// arrives via UserHandlers.OnReleaseResponse (client role) and closes the
// connection.
func (c *Connection) SendReleaseRequest() error {
	return c.SendPDU(&ulpdu.ReleaseRQ{})
}
