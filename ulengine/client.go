package ulengine

// ClientConfig configures a client-role Connection.
type ClientConfig struct {
	User *UserHandlers

	ImplementationClassUID string
	ImplementationVersion  string

	Options Options
	Metrics *Metrics
	LogID   string
}

// NewClientConnection wraps stream as the requestor (SCU) side of one
// association. Call SendAssociationRequest once Run is running to begin
// the handshake.
func NewClientConnection(stream ByteStream, cfg ClientConfig) *Connection {
	opts := cfg.Options
	if (opts == Options{}) {
		opts = DefaultOptions()
	}
	c := newConnection(stream, false, opts, cfg.LogID)
	c.user = cfg.User
	c.metrics = cfg.Metrics
	c.implementationClassUID = cfg.ImplementationClassUID
	c.implementationVersion = cfg.ImplementationVersion
	return c
}
