package domain

import (
	"time"

	"github.com/stg-network/chat-relay/internal/config"
)

// GroupRegistry maps group keys to the set of live member connections.
// Join and Leave are idempotent; DropConnection removes a connection from
// every group it belongs to.
type GroupRegistry interface {
	Join(groupKey string, conn Connection)
	Leave(groupKey string, conn Connection)
	MembersOf(groupKey string) []Connection
	DropConnection(conn Connection)

	// Broadcast sends a named push to every current member of the group,
	// skipping except when non-nil. Returns the number of members reached.
	Broadcast(groupKey, event string, data interface{}, except Connection) int
}

// NodeInterface defines the core capabilities required by the relay.
type NodeInterface interface {
	// Configuration access
	Config() *config.Config

	// Membership state
	Registry() GroupRegistry

	// Connection management
	ConnectionManager
	GetConnectionCount() int // for health checks
	GetStartTime() time.Time // for health checks
}
