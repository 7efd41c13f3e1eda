package domain

// Connection is one live client transport session. The claimed identity is
// resolved at connect time and never changes afterwards.
type Connection interface {
	// ID returns the opaque connection identifier.
	ID() string

	// UserID returns the authenticated identity attached at connect time.
	UserID() int64

	// SendEvent delivers a named outbound push. Fire-and-forget: no
	// acknowledgment, no retry.
	SendEvent(event string, data interface{})

	// Close tears the connection down and releases its resources.
	Close()

	// RemoteAddr returns the client address for logging.
	RemoteAddr() string
}

// ConnectionManager tracks the set of live connections.
type ConnectionManager interface {
	RegisterConn(conn Connection)
	UnregisterConn(conn Connection)
}
