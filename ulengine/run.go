package ulengine

import (
	"context"
	"sync"
	"time"

	"github.com/kestrel-health/dicomul/ulpdu"
)

// Run drives the connection until it closes: the reader and writer loops
// start here, not at construction, so a host controls exactly when I/O
// begins and can cancel ctx to tear a connection down deterministically.
// Run blocks until both loops exit and returns the reason the connection
// closed (nil for a clean Close).
func (c *Connection) Run(ctx context.Context) error {
	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.runReader(ctx)
	}()
	go func() {
		defer wg.Done()
		c.runWriter(ctx)
	}()

	if c.options.HandshakeTimeout > 0 {
		go c.enforceHandshakeTimeout(c.options.HandshakeTimeout)
	}

	go func() {
		<-ctx.Done()
		c.close(ctx.Err())
	}()

	wg.Wait()
	return c.Err()
}

func (c *Connection) enforceHandshakeTimeout(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.handshakeDone:
	case <-c.closed:
	case <-timer.C:
		c.abortAndClose(ulpdu.AbortSourceServiceUser, ulpdu.AbortReasonNotSpecified, c.protocolErrorf("handshake did not complete within %s", timeout))
	}
}
