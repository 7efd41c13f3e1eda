package relay

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stg-network/chat-relay/internal/registry"
)

type mockConn struct {
	id     string
	userID int64

	mu       sync.Mutex
	received []push
}

type push struct {
	event string
	data  interface{}
}

func (m *mockConn) ID() string         { return m.id }
func (m *mockConn) UserID() int64      { return m.userID }
func (m *mockConn) RemoteAddr() string { return "127.0.0.1:0" }
func (m *mockConn) Close()             {}

func (m *mockConn) SendEvent(event string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, push{event: event, data: data})
}

func (m *mockConn) pushes() []push {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]push(nil), m.received...)
}

func newTestRouter(t *testing.T) (*Router, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	return NewRouter(reg), reg
}

func TestRouter_JoinAndLeaveRoom(t *testing.T) {
	rt, reg := newTestRouter(t)
	conn := &mockConn{id: "c1", userID: 7}

	rt.HandleFrame(conn, []byte(`{"event":"join_room","data":{"roomId":42}}`))
	require.Len(t, reg.MembersOf(registry.RoomKey(42)), 1)

	// Joining twice is idempotent.
	rt.HandleFrame(conn, []byte(`{"event":"join_room","data":{"roomId":42}}`))
	require.Len(t, reg.MembersOf(registry.RoomKey(42)), 1)

	rt.HandleFrame(conn, []byte(`{"event":"leave_room","data":{"roomId":42}}`))
	assert.Empty(t, reg.MembersOf(registry.RoomKey(42)))
}

func TestRouter_JoinUserChannel(t *testing.T) {
	rt, reg := newTestRouter(t)
	conn := &mockConn{id: "c1", userID: 7}

	rt.HandleFrame(conn, []byte(`{"event":"join_user_channel","data":{"userId":7}}`))
	require.Len(t, reg.MembersOf(registry.UserKey(7)), 1)
	assert.Empty(t, reg.MembersOf(registry.RoomKey(7)))
}

func TestRouter_ChatMessageReachesAllMembersVerbatim(t *testing.T) {
	rt, reg := newTestRouter(t)
	sender := &mockConn{id: "c7", userID: 7}
	peer := &mockConn{id: "c9", userID: 9}
	outsider := &mockConn{id: "c5", userID: 5}
	reg.Join(registry.RoomKey(42), sender)
	reg.Join(registry.RoomKey(42), peer)
	reg.Join(registry.RoomKey(99), outsider)

	payload := `{"id":501,"room_id":42,"content":"hello","sender":{"id":7,"name":"Ada"}}`
	rt.HandleFrame(sender, []byte(`{"event":"chat_message","data":`+payload+`}`))

	// The sender's own connection receives the echo too.
	for _, conn := range []*mockConn{sender, peer} {
		got := conn.pushes()
		require.Len(t, got, 1)
		assert.Equal(t, PushNewMessage, got[0].event)
		raw, ok := got[0].data.(json.RawMessage)
		require.True(t, ok)
		assert.JSONEq(t, payload, string(raw))
	}
	assert.Empty(t, outsider.pushes())
}

func TestRouter_TypingExcludesSender(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		wantEvent string
		wantName  string
	}{
		{
			name:      "typing start carries a display name",
			frame:     `{"event":"typing_start","data":{"roomId":42}}`,
			wantEvent: PushUserTyping,
			wantName:  "User_7",
		},
		{
			name:      "typing stop omits the display name",
			frame:     `{"event":"typing_stop","data":{"roomId":42}}`,
			wantEvent: PushUserStoppedTyping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, reg := newTestRouter(t)
			sender := &mockConn{id: "c7", userID: 7}
			peer := &mockConn{id: "c9", userID: 9}
			reg.Join(registry.RoomKey(42), sender)
			reg.Join(registry.RoomKey(42), peer)

			rt.HandleFrame(sender, []byte(tt.frame))

			assert.Empty(t, sender.pushes())
			got := peer.pushes()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantEvent, got[0].event)
			body, ok := got[0].data.(typingPayload)
			require.True(t, ok)
			assert.Equal(t, int64(7), body.UserID)
			assert.Equal(t, int64(42), body.RoomID)
			assert.Equal(t, tt.wantName, body.UserName)
		})
	}
}

func TestRouter_MalformedFramesAreDroppedInIsolation(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{name: "not json", frame: `{"event":`},
		{name: "missing event name", frame: `{"data":{"roomId":42}}`},
		{name: "unknown event", frame: `{"event":"shrug","data":{}}`},
		{name: "missing required field", frame: `{"event":"join_room","data":{}}`},
		{name: "incomplete chat message", frame: `{"event":"chat_message","data":{"room_id":42}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, reg := newTestRouter(t)
			conn := &mockConn{id: "c1", userID: 7}
			peer := &mockConn{id: "c2", userID: 9}
			reg.Join(registry.RoomKey(42), peer)

			rt.HandleFrame(conn, []byte(tt.frame))

			// No side effects: nothing pushed, no membership changed.
			assert.Empty(t, peer.pushes())
			assert.Empty(t, reg.GroupsOf(conn))

			// The connection keeps working after a dropped event.
			rt.HandleFrame(conn, []byte(`{"event":"join_room","data":{"roomId":42}}`))
			require.Len(t, reg.MembersOf(registry.RoomKey(42)), 2)
		})
	}
}

func TestRouter_MessageToLeftRoomNotDelivered(t *testing.T) {
	rt, reg := newTestRouter(t)
	sender := &mockConn{id: "c7", userID: 7}
	leaver := &mockConn{id: "c9", userID: 9}
	reg.Join(registry.RoomKey(42), sender)
	reg.Join(registry.RoomKey(42), leaver)

	rt.HandleFrame(leaver, []byte(`{"event":"leave_room","data":{"roomId":42}}`))
	rt.HandleFrame(sender, []byte(`{"event":"chat_message","data":{"id":501,"room_id":42,"content":"hi"}}`))

	assert.Empty(t, leaver.pushes())
	require.Len(t, sender.pushes(), 1)
}
