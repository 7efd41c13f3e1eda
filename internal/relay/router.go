package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stg-network/chat-relay/internal/domain"
	"github.com/stg-network/chat-relay/internal/logger"
	"github.com/stg-network/chat-relay/internal/metrics"
	"github.com/stg-network/chat-relay/internal/registry"
	"go.uber.org/zap"
)

// Router interprets inbound events from authenticated connections and
// dispatches them to the membership registry and outbound fan-out. A
// malformed event is dropped with a diagnostic; it never terminates the
// connection.
type Router struct {
	reg domain.GroupRegistry
	log *zap.Logger
}

// NewRouter builds a router over the given registry.
func NewRouter(reg domain.GroupRegistry) *Router {
	return &Router{
		reg: reg,
		log: logger.New("router"),
	}
}

// Register wires the router onto a new connection. A failure here is fatal
// to that one connection only; the caller force-closes it.
func (rt *Router) Register(conn domain.Connection) error {
	if rt.reg == nil {
		return fmt.Errorf("router has no registry")
	}
	rt.log.Debug("Event handlers registered",
		zap.String("conn_id", conn.ID()),
		zap.Int64("user_id", conn.UserID()))
	return nil
}

// HandleFrame processes one raw inbound message from the connection.
func (rt *Router) HandleFrame(conn domain.Connection, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		rt.drop(conn, "malformed_json", "", err)
		return
	}
	if frame.Event == "" {
		rt.drop(conn, "missing_event_name", "", nil)
		return
	}

	metrics.EventsReceived.WithLabelValues(frame.Event).Inc()
	start := time.Now()
	defer func() {
		metrics.EventProcessingDuration.WithLabelValues(frame.Event).Observe(time.Since(start).Seconds())
	}()

	evt, appErr := parseInbound(frame)
	if appErr != nil {
		rt.drop(conn, "validation_failed", frame.Event, appErr)
		return
	}

	switch evt.kind {
	case EventJoinRoom:
		rt.reg.Join(registry.RoomKey(evt.roomID), conn)
		rt.log.Debug("Joined chat room",
			zap.Int64("room_id", evt.roomID),
			zap.String("conn_id", conn.ID()))

	case EventLeaveRoom:
		rt.reg.Leave(registry.RoomKey(evt.roomID), conn)
		rt.log.Debug("Left chat room",
			zap.Int64("room_id", evt.roomID),
			zap.String("conn_id", conn.ID()))

	case EventJoinUserChannel:
		rt.reg.Join(registry.UserKey(evt.userID), conn)
		rt.log.Debug("Joined user channel",
			zap.Int64("user_id", evt.userID),
			zap.String("conn_id", conn.ID()))

	case EventChatMessage:
		// The payload was persisted and authorized by the backend before
		// the client relayed it here; it is forwarded verbatim to every
		// current member of the room, the sender's own connections
		// included.
		sent := rt.reg.Broadcast(registry.RoomKey(evt.roomID), PushNewMessage, evt.raw, nil)
		rt.log.Debug("Relayed chat message",
			zap.Int64("room_id", evt.roomID),
			zap.Int("recipients", sent))

	case EventTypingStart:
		rt.reg.Broadcast(registry.RoomKey(evt.roomID), PushUserTyping, typingPayload{
			UserID:   conn.UserID(),
			UserName: fmt.Sprintf("User_%d", conn.UserID()),
			RoomID:   evt.roomID,
		}, conn)

	case EventTypingStop:
		rt.reg.Broadcast(registry.RoomKey(evt.roomID), PushUserStoppedTyping, typingPayload{
			UserID: conn.UserID(),
			RoomID: evt.roomID,
		}, conn)
	}
}

// drop records a diagnostic for a rejected event and moves on.
func (rt *Router) drop(conn domain.Connection, reason, kind string, err error) {
	metrics.EventsDropped.WithLabelValues(reason).Inc()
	rt.log.Warn("Dropped inbound event",
		zap.String("reason", reason),
		zap.String("event", kind),
		zap.String("conn_id", conn.ID()),
		zap.Int64("user_id", conn.UserID()),
		zap.Error(err))
}
