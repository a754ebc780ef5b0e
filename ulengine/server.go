package ulengine

import (
	"github.com/kestrel-health/dicomul/ulassoc"
)

// ServerConfig configures a server-role Connection.
type ServerConfig struct {
	// CalledAETitle restricts which AE title this connection accepts
	// associations for. Empty accepts any.
	CalledAETitle string

	Policy         ulassoc.AbstractSyntaxPolicy
	Provider       *ProviderHandlers
	CStoreProvider CStoreSinkProvider

	ImplementationClassUID string
	ImplementationVersion  string

	Options Options
	Metrics *Metrics
	LogID   string
}

// NewServerConnection wraps stream as the acceptor (SCP) side of one
// association: it waits for an A-ASSOCIATE-RQ once Run is called and
// answers per cfg.Policy.
func NewServerConnection(stream ByteStream, cfg ServerConfig) *Connection {
	opts := cfg.Options
	if (opts == Options{}) {
		opts = DefaultOptions()
	}
	c := newConnection(stream, true, opts, cfg.LogID)
	c.calledAETitle = cfg.CalledAETitle
	c.policy = cfg.Policy
	c.provider = cfg.Provider
	c.metrics = cfg.Metrics
	c.implementationClassUID = cfg.ImplementationClassUID
	c.implementationVersion = cfg.ImplementationVersion
	c.cstoreProvider = cfg.CStoreProvider
	if c.cstoreProvider == nil {
		c.cstoreProvider = &TempFileSinkProvider{}
	}
	return c
}
