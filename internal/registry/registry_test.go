package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestRegistry_JoinIdempotent(t *testing.T) {
	r := New()
	conn := &mockConn{id: "c1", userID: 7}

	r.Join(RoomKey(42), conn)
	r.Join(RoomKey(42), conn)

	members := r.MembersOf(RoomKey(42))
	require.Len(t, members, 1)

	groups, conns := r.Stats()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, conns)
}

func TestRegistry_LeaveIdempotent(t *testing.T) {
	r := New()
	conn := &mockConn{id: "c1"}

	// Leaving a group never joined is a no-op.
	r.Leave(RoomKey(42), conn)

	r.Join(RoomKey(42), conn)
	r.Leave(RoomKey(42), conn)
	r.Leave(RoomKey(42), conn)

	assert.Empty(t, r.MembersOf(RoomKey(42)))
	groups, conns := r.Stats()
	assert.Equal(t, 0, groups)
	assert.Equal(t, 0, conns)
}

func TestRegistry_EmptyGroupIsDropped(t *testing.T) {
	r := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}

	r.Join(RoomKey(1), c1)
	r.Join(RoomKey(1), c2)

	r.Leave(RoomKey(1), c1)
	groups, _ := r.Stats()
	require.Equal(t, 1, groups)

	r.Leave(RoomKey(1), c2)
	groups, _ = r.Stats()
	assert.Equal(t, 0, groups)
}

func TestRegistry_DropConnection(t *testing.T) {
	r := New()
	conn := &mockConn{id: "c1", userID: 7}
	other := &mockConn{id: "c2", userID: 9}

	r.Join(RoomKey(42), conn)
	r.Join(RoomKey(43), conn)
	r.Join(UserKey(7), conn)
	r.Join(RoomKey(42), other)

	r.DropConnection(conn)

	assert.Empty(t, r.GroupsOf(conn))
	assert.Empty(t, r.MembersOf(UserKey(7)))
	assert.Empty(t, r.MembersOf(RoomKey(43)))

	// Other members of shared groups are untouched.
	members := r.MembersOf(RoomKey(42))
	require.Len(t, members, 1)
	assert.Equal(t, "c2", members[0].ID())
}

func TestRegistry_KeyNamespacing(t *testing.T) {
	r := New()
	conn := &mockConn{id: "c1", userID: 7}

	require.NotEqual(t, RoomKey(7), UserKey(7))

	r.Join(RoomKey(7), conn)
	assert.Empty(t, r.MembersOf(UserKey(7)))
}

func TestRegistry_Broadcast(t *testing.T) {
	tests := []struct {
		name     string
		except   bool
		wantSent int
	}{
		{name: "all members", except: false, wantSent: 3},
		{name: "sender excluded", except: true, wantSent: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			sender := &mockConn{id: "sender"}
			recv1 := &mockConn{id: "r1"}
			recv2 := &mockConn{id: "r2"}
			outsider := &mockConn{id: "outside"}

			r.Join(RoomKey(42), sender)
			r.Join(RoomKey(42), recv1)
			r.Join(RoomKey(42), recv2)
			r.Join(RoomKey(99), outsider)

			var except *mockConn
			if tt.except {
				except = sender
			}
			var sent int
			if except != nil {
				sent = r.Broadcast(RoomKey(42), "user_typing", map[string]int{"userId": 9}, except)
			} else {
				sent = r.Broadcast(RoomKey(42), "user_typing", map[string]int{"userId": 9}, nil)
			}

			assert.Equal(t, tt.wantSent, sent)
			assert.Len(t, recv1.pushes(), 1)
			assert.Len(t, recv2.pushes(), 1)
			assert.Empty(t, outsider.pushes())
			if tt.except {
				assert.Empty(t, sender.pushes())
			} else {
				assert.Len(t, sender.pushes(), 1)
			}
		})
	}
}

func TestRegistry_BroadcastEmptyGroup(t *testing.T) {
	r := New()
	sent := r.Broadcast(UserKey(7), "image_uploaded", nil, nil)
	assert.Zero(t, sent)
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	conns := make([]*mockConn, 32)
	for i := range conns {
		conns[i] = &mockConn{id: string(rune('a' + i))}
	}

	for _, conn := range conns {
		wg.Add(1)
		go func(c *mockConn) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Join(RoomKey(1), c)
				r.Leave(RoomKey(1), c)
			}
		}(conn)
	}
	wg.Wait()

	groups, connCount := r.Stats()
	assert.Equal(t, 0, groups)
	assert.Equal(t, 0, connCount)
}
