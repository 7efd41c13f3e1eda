package relay

import (
	"encoding/json"

	"github.com/stg-network/chat-relay/internal/errors"
)

// Inbound event names accepted from clients.
const (
	EventJoinRoom        = "join_room"
	EventLeaveRoom       = "leave_room"
	EventJoinUserChannel = "join_user_channel"
	EventChatMessage     = "chat_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
)

// Outbound push names delivered to clients.
const (
	PushNewMessage        = "new_message"
	PushUserTyping        = "user_typing"
	PushUserStoppedTyping = "user_stopped_typing"
	PushImageUploaded     = "image_uploaded"
	PushMessageRead       = "message.read"
)

// Frame is the JSON envelope for inbound client events.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// roomPayload covers the events whose only required field is the room id.
type roomPayload struct {
	RoomID *int64 `json:"roomId"`
}

// userChannelPayload carries the user id for personal-channel subscription.
type userChannelPayload struct {
	UserID *int64 `json:"userId"`
}

// chatMessagePayload extracts the required fields of a persisted message.
// The full payload is relayed untouched; these fields are only checked,
// never re-encoded.
type chatMessagePayload struct {
	ID      *int64 `json:"id"`
	RoomID  *int64 `json:"room_id"`
	Content string `json:"content"`
}

// typingPayload is the push body for typing notifications.
type typingPayload struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName,omitempty"`
	RoomID   int64  `json:"roomId"`
}

// inboundEvent is a validated client event ready for dispatch.
type inboundEvent struct {
	kind   string
	roomID int64
	userID int64
	raw    json.RawMessage
}

// parseInbound runs the required-field checklist for the frame's event kind.
// Any missing field fails the whole event; no side effect may occur before
// this returns nil error.
func parseInbound(frame Frame) (*inboundEvent, *errors.AppError) {
	evt := &inboundEvent{kind: frame.Event, raw: frame.Data}

	switch frame.Event {
	case EventJoinRoom, EventLeaveRoom, EventTypingStart, EventTypingStop:
		var p roomPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errors.EventValidationError(frame.Event, "malformed payload")
		}
		if p.RoomID == nil {
			return nil, errors.EventValidationError(frame.Event, "missing roomId")
		}
		evt.roomID = *p.RoomID

	case EventJoinUserChannel:
		var p userChannelPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errors.EventValidationError(frame.Event, "malformed payload")
		}
		if p.UserID == nil {
			return nil, errors.EventValidationError(frame.Event, "missing userId")
		}
		evt.userID = *p.UserID

	case EventChatMessage:
		var p chatMessagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return nil, errors.EventValidationError(frame.Event, "malformed payload")
		}
		if p.RoomID == nil {
			return nil, errors.EventValidationError(frame.Event, "missing room_id")
		}
		if p.ID == nil {
			return nil, errors.EventValidationError(frame.Event, "missing id")
		}
		if p.Content == "" {
			return nil, errors.EventValidationError(frame.Event, "missing content")
		}
		evt.roomID = *p.RoomID

	default:
		return nil, errors.EventValidationError(frame.Event, "unknown event")
	}

	return evt, nil
}
