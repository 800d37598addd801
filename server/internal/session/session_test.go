package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
)

type fakeConn struct {
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) error {
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func newTestRegistry() *Registry {
	return NewRegistry(nil, zap.NewNop())
}

func TestSendEncodesEnvelope(t *testing.T) {
	conn := &fakeConn{}
	r := newTestRegistry()
	r.Register("u1", "alice", conn)

	require.NoError(t, r.Send("u1", protocol.EvtPong, nil))
	require.Len(t, conn.frames, 1)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(conn.frames[0], &env))
	assert.Equal(t, protocol.EvtPong, env.Type)
}

func TestSendToUnknownUser(t *testing.T) {
	r := newTestRegistry()
	err := r.Send("nobody", protocol.EvtPong, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	first := &fakeConn{}
	second := &fakeConn{}
	r := newTestRegistry()

	old := r.Register("u1", "alice", first)
	sess := r.Register("u1", "alice", second)

	assert.True(t, first.closed, "superseded connection is closed")
	assert.False(t, second.closed)

	// The detached session can no longer deliver.
	assert.Error(t, old.Send(protocol.EvtPong, nil))

	// Registry sends go to the new connection.
	require.NoError(t, r.Send("u1", protocol.EvtPong, nil))
	assert.Empty(t, first.frames)
	assert.Len(t, second.frames, 1)

	got, ok := r.Get("u1")
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestRemoveOnlyDropsOwnSession(t *testing.T) {
	r := newTestRegistry()
	old := r.Register("u1", "alice", &fakeConn{})
	replacement := r.Register("u1", "alice", &fakeConn{})

	// The old connection's cleanup runs after the replacement registered;
	// it must not tear down the new session.
	r.Remove(old)
	got, ok := r.Get("u1")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	r.Remove(replacement)
	_, ok = r.Get("u1")
	assert.False(t, ok)
}

func TestSessionRoomTracking(t *testing.T) {
	r := newTestRegistry()
	sess := r.Register("u1", "alice", &fakeConn{})

	roomID, role := sess.Room()
	assert.Empty(t, roomID)
	assert.Empty(t, role)

	sess.SetRoom("lobby_1", RoleHost)
	roomID, role = sess.Room()
	assert.Equal(t, "lobby_1", roomID)
	assert.Equal(t, RoleHost, role)
	assert.Equal(t, "lobby_1", sess.RoomID())

	sess.SetRoom("game_9", RoleGuest)
	assert.Equal(t, "game_9", sess.RoomID())
}
