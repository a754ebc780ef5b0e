package ulengine

import "io"

// ByteStream is the transport collaborator a Connection reads PDU frames
// from and writes encoded PDUs to. *net.TCPConn and *tls.Conn both satisfy
// it directly.
type ByteStream interface {
	io.Reader
	io.Writer
	Close() error
}
