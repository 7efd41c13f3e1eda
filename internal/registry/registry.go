// Package registry holds the authoritative mapping between group keys and
// the live connections currently joined to them. It keeps a forward index
// (group -> members) and a reverse index (connection -> groups) so that
// dropping a connection costs only the groups it was actually in.
package registry

import (
	"sync"

	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"go.uber.org/zap"
)

// Registry implements domain.GroupRegistry. Both indexes are mutated under
// one lock so each join/leave is atomic with respect to concurrent
// operations on the same key.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[domain.Connection]struct{}
	conns  map[domain.Connection]map[string]struct{}

	log *zap.Logger
}

var _ domain.GroupRegistry = (*Registry)(nil)

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		groups: make(map[string]map[domain.Connection]struct{}),
		conns:  make(map[domain.Connection]map[string]struct{}),
		log:    logger.New("registry"),
	}
}

// Join adds the connection to the group. Joining a group the connection
// already belongs to is a no-op.
func (r *Registry) Join(groupKey string, conn domain.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.groups[groupKey]
	if !exists {
		members = make(map[domain.Connection]struct{})
		r.groups[groupKey] = members
		metrics.ActiveGroups.Inc()
	}
	if _, joined := members[conn]; joined {
		return
	}
	members[conn] = struct{}{}

	memberships, exists := r.conns[conn]
	if !exists {
		memberships = make(map[string]struct{})
		r.conns[conn] = memberships
	}
	memberships[groupKey] = struct{}{}

	r.log.Debug("Connection joined group",
		zap.String("group", groupKey),
		zap.String("conn_id", conn.ID()),
		zap.Int("members", len(members)))
}

// Leave removes the connection from the group. Leaving a group the
// connection is not in is a no-op. A group left with zero members is
// dropped entirely.
func (r *Registry) Leave(groupKey string, conn domain.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(groupKey, conn)
}

func (r *Registry) leaveLocked(groupKey string, conn domain.Connection) {
	members, exists := r.groups[groupKey]
	if !exists {
		return
	}
	if _, joined := members[conn]; !joined {
		return
	}
	delete(members, conn)
	if len(members) == 0 {
		delete(r.groups, groupKey)
		metrics.ActiveGroups.Dec()
	}

	if memberships, ok := r.conns[conn]; ok {
		delete(memberships, groupKey)
		if len(memberships) == 0 {
			delete(r.conns, conn)
		}
	}

	r.log.Debug("Connection left group",
		zap.String("group", groupKey),
		zap.String("conn_id", conn.ID()),
		zap.Int("members", len(members)))
}

// MembersOf returns a snapshot of the group's current members. The slice is
// safe to iterate after the lock is released.
func (r *Registry) MembersOf(groupKey string) []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[groupKey]
	if len(members) == 0 {
		return nil
	}
	out := make([]domain.Connection, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

// DropConnection removes the connection from every group it belongs to.
// Cost is proportional to the connection's own membership count, not the
// total number of groups.
func (r *Registry) DropConnection(conn domain.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	memberships, exists := r.conns[conn]
	if !exists {
		return
	}
	keys := make([]string, 0, len(memberships))
	for groupKey := range memberships {
		keys = append(keys, groupKey)
	}
	for _, groupKey := range keys {
		r.leaveLocked(groupKey, conn)
	}
}

// Broadcast delivers a named push to every current member of the group,
// skipping except when non-nil. A group with no members is a normal, silent
// outcome. Returns the number of members reached.
func (r *Registry) Broadcast(groupKey, event string, data interface{}, except domain.Connection) int {
	members := r.MembersOf(groupKey)
	if len(members) == 0 {
		return 0
	}

	sent := 0
	for _, conn := range members {
		if except != nil && conn == except {
			continue
		}
		conn.SendEvent(event, data)
		sent++
	}
	if sent > 0 {
		metrics.PushesDelivered.WithLabelValues(event).Add(float64(sent))
	}
	return sent
}

// Stats returns the current group and tracked-connection counts.
func (r *Registry) Stats() (groups, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups), len(r.conns)
}

// GroupsOf returns a snapshot of the group keys the connection is in.
func (r *Registry) GroupsOf(conn domain.Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memberships := r.conns[conn]
	if len(memberships) == 0 {
		return nil
	}
	out := make([]string, 0, len(memberships))
	for groupKey := range memberships {
		out = append(out, groupKey)
	}
	return out
}
