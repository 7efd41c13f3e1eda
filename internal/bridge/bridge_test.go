package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stg-network/chat-relay/internal/config"
	"github.com/stg-network/chat-relay/internal/registry"
	"github.com/stg-network/chat-relay/internal/relay"
	"github.com/stg-network/chat-relay/internal/workers"
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

func newTestBridge(t *testing.T) (*Bridge, *registry.Registry) {
	t.Helper()

	reg := registry.New()
	pool := workers.NewWorkerPool(2, 16)
	t.Cleanup(pool.Stop)

	cfg := config.RedisConfig{
		ImageProcessingChannel: "image_processing_queue",
		ChatReadEventsChannel:  "chat-read-events",
		ImagePushDelay:         5 * time.Millisecond,
	}
	return New(nil, cfg, reg, pool), reg
}

func TestBridge_ImageProcessingDeliversAfterDelay(t *testing.T) {
	b, reg := newTestBridge(t)
	conn := &mockConn{id: "c1", userID: 7}
	reg.Join(registry.UserKey(7), conn)

	b.handleImageProcessing([]byte(`{"user_id":7,"path":"uploads/avatars/7.jpg"}`))

	// The push is scheduled, not immediate.
	assert.Empty(t, conn.pushes())

	require.Eventually(t, func() bool {
		return len(conn.pushes()) == 1
	}, time.Second, time.Millisecond)

	got := conn.pushes()[0]
	assert.Equal(t, relay.PushImageUploaded, got.event)
	assert.Equal(t, imageUploadedPush{UserID: 7, FilePath: "uploads/avatars/7.jpg"}, got.data)
}

func TestBridge_ImageProcessingResolvesMembershipAtFireTime(t *testing.T) {
	b, reg := newTestBridge(t)
	conn := &mockConn{id: "c1", userID: 7}

	// The user connects after the bus message arrives but before the
	// delay elapses, and must still receive the push.
	b.handleImageProcessing([]byte(`{"user_id":7,"path":"uploads/late.jpg"}`))
	reg.Join(registry.UserKey(7), conn)

	require.Eventually(t, func() bool {
		return len(conn.pushes()) == 1
	}, time.Second, time.Millisecond)
}

func TestBridge_ImageProcessingRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"user_id":`},
		{name: "missing user_id", payload: `{"path":"uploads/x.jpg"}`},
		{name: "missing path", payload: `{"user_id":7}`},
		{name: "empty path", payload: `{"user_id":7,"path":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, reg := newTestBridge(t)
			conn := &mockConn{id: "c1", userID: 7}
			reg.Join(registry.UserKey(7), conn)

			b.handleImageProcessing([]byte(tt.payload))

			time.Sleep(20 * time.Millisecond)
			assert.Empty(t, conn.pushes())
		})
	}
}

func TestBridge_ImageProcessingNoRecipientsIsSilent(t *testing.T) {
	b, _ := newTestBridge(t)

	b.handleImageProcessing([]byte(`{"user_id":99,"path":"uploads/x.jpg"}`))
	time.Sleep(20 * time.Millisecond)
}

func TestBridge_ReadReceiptDeliversToRecipientOnly(t *testing.T) {
	b, reg := newTestBridge(t)
	recipient := &mockConn{id: "c9", userID: 9}
	other := &mockConn{id: "c7", userID: 7}
	reg.Join(registry.UserKey(9), recipient)
	reg.Join(registry.UserKey(7), other)

	b.handleReadReceipt([]byte(`{"event":"chat.read","data":{"roomId":42,"messageIds":[501,502],"readAt":"2026-08-28T10:15:00Z","recipientUserId":9}}`))

	got := recipient.pushes()
	require.Len(t, got, 1)
	assert.Equal(t, relay.PushMessageRead, got[0].event)
	assert.Equal(t, messageReadPush{
		RoomID:     42,
		MessageIDs: []int64{501, 502},
		ReadAt:     "2026-08-28T10:15:00Z",
	}, got[0].data)

	// The recipient id steers delivery and never leaks into the payload.
	assert.Empty(t, other.pushes())
}

func TestBridge_ReadReceiptRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `[`},
		{name: "no data", payload: `{"event":"chat.read"}`},
		{name: "missing roomId", payload: `{"data":{"messageIds":[1],"readAt":"t","recipientUserId":9}}`},
		{name: "empty messageIds", payload: `{"data":{"roomId":42,"messageIds":[],"readAt":"t","recipientUserId":9}}`},
		{name: "missing readAt", payload: `{"data":{"roomId":42,"messageIds":[1],"recipientUserId":9}}`},
		{name: "missing recipient", payload: `{"data":{"roomId":42,"messageIds":[1],"readAt":"t"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, reg := newTestBridge(t)
			conn := &mockConn{id: "c9", userID: 9}
			reg.Join(registry.UserKey(9), conn)

			b.handleReadReceipt([]byte(tt.payload))

			assert.Empty(t, conn.pushes())
		})
	}
}
