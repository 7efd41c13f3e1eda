package relay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name       string
		event      string
		data       string
		wantErr    bool
		wantRoomID int64
		wantUserID int64
	}{
		{name: "join room", event: EventJoinRoom, data: `{"roomId":42}`, wantRoomID: 42},
		{name: "join room missing roomId", event: EventJoinRoom, data: `{}`, wantErr: true},
		{name: "join room null payload", event: EventJoinRoom, data: `null`, wantErr: true},
		{name: "join room malformed payload", event: EventJoinRoom, data: `"42"`, wantErr: true},
		{name: "leave room", event: EventLeaveRoom, data: `{"roomId":42}`, wantRoomID: 42},
		{name: "join user channel", event: EventJoinUserChannel, data: `{"userId":7}`, wantUserID: 7},
		{name: "join user channel missing userId", event: EventJoinUserChannel, data: `{"roomId":42}`, wantErr: true},
		{name: "chat message", event: EventChatMessage, data: `{"id":501,"room_id":42,"content":"hi"}`, wantRoomID: 42},
		{name: "chat message extra fields pass", event: EventChatMessage, data: `{"id":501,"room_id":42,"content":"hi","sender":{"id":7}}`, wantRoomID: 42},
		{name: "chat message missing id", event: EventChatMessage, data: `{"room_id":42,"content":"hi"}`, wantErr: true},
		{name: "chat message missing room_id", event: EventChatMessage, data: `{"id":501,"content":"hi"}`, wantErr: true},
		{name: "chat message empty content", event: EventChatMessage, data: `{"id":501,"room_id":42,"content":""}`, wantErr: true},
		{name: "typing start", event: EventTypingStart, data: `{"roomId":42}`, wantRoomID: 42},
		{name: "typing stop", event: EventTypingStop, data: `{"roomId":42}`, wantRoomID: 42},
		{name: "typing start missing roomId", event: EventTypingStart, data: `{"userId":7}`, wantErr: true},
		{name: "unknown event", event: "shrug", data: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Frame{Event: tt.event, Data: json.RawMessage(tt.data)}
			evt, err := parseInbound(frame)

			if tt.wantErr {
				require.NotNil(t, err)
				assert.Nil(t, evt)
				return
			}
			require.Nil(t, err)
			require.NotNil(t, evt)
			assert.Equal(t, tt.event, evt.kind)
			assert.Equal(t, tt.wantRoomID, evt.roomID)
			assert.Equal(t, tt.wantUserID, evt.userID)
		})
	}
}

func TestParseInboundKeepsRawPayload(t *testing.T) {
	raw := `{"id":501,"room_id":42,"content":"hi","attachments":[{"path":"a.jpg"}]}`
	frame := Frame{Event: EventChatMessage, Data: json.RawMessage(raw)}

	evt, err := parseInbound(frame)
	require.Nil(t, err)
	assert.JSONEq(t, raw, string(evt.raw))
}
