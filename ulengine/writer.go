package ulengine

import (
	"context"

	"github.com/kestrel-health/dicomul/ulpdu"
)

// runWriter is the sole writer of the transport: it pops queued PDUs in
// FIFO order and encodes them to the wire, waking any SendPDU callers
// blocked on queue backpressure each time it makes room.
func (c *Connection) runWriter(ctx context.Context) {
	for {
		c.mu.Lock()
		for c.isConnected && len(c.pduQueue) == 0 {
			c.cond.Wait()
		}
		if len(c.pduQueue) == 0 {
			c.mu.Unlock()
			return
		}
		pdu := c.pduQueue[0]
		c.pduQueue = c.pduQueue[1:]
		c.cond.Broadcast()
		c.mu.Unlock()

		raw, err := ulpdu.Encode(pdu)
		if err != nil {
			c.close(&ProtocolError{Label: "encode outgoing PDU", Err: err})
			return
		}
		c.writeMu.Lock()
		_, werr := c.stream.Write(raw)
		c.writeMu.Unlock()
		if werr != nil {
			c.close(&TransportError{Err: werr})
			return
		}
		c.metrics.recordPDUSent(len(raw))

		if _, ok := pdu.(*ulpdu.ReleaseRP); ok {
			c.close(nil)
			return
		}
	}
}
