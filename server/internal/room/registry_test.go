package room

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
)

type sentEvent struct {
	UserID string
	Evt    protocol.EventType
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentEvent
	failed map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failed: make(map[string]bool)}
}

func (s *fakeSender) Send(userID string, evt protocol.EventType, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed[userID] {
		return errors.New("send queue full")
	}
	s.sent = append(s.sent, sentEvent{UserID: userID, Evt: evt})
	return nil
}

func (s *fakeSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, e := range s.sent {
		out = append(out, e.UserID)
	}
	sort.Strings(out)
	return out
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "lobby_abc", LobbyRoom("abc"))
	assert.Equal(t, "game_abc", GameRoom("abc"))
}

func TestJoinLeaveMembership(t *testing.T) {
	r := NewRegistry(newFakeSender(), zap.NewNop())

	r.Join("lobby_1", "u1")
	r.Join("lobby_1", "u2")
	assert.True(t, r.IsMember("lobby_1", "u1"))
	assert.True(t, r.IsMember("lobby_1", "u2"))
	assert.False(t, r.IsMember("lobby_1", "u3"))
	assert.False(t, r.IsMember("lobby_2", "u1"))

	r.Leave("lobby_1", "u1")
	assert.False(t, r.IsMember("lobby_1", "u1"))
	assert.True(t, r.IsMember("lobby_1", "u2"))

	// Leaving a room you never joined is harmless.
	r.Leave("lobby_9", "u1")
	r.Leave("lobby_1", "u9")
}

func TestMembersSnapshot(t *testing.T) {
	r := NewRegistry(newFakeSender(), zap.NewNop())
	r.Join("game_1", "u1")
	r.Join("game_1", "u2")

	got := r.Members("game_1")
	sort.Strings(got)
	assert.Equal(t, []string{"u1", "u2"}, got)
	assert.Empty(t, r.Members("game_2"))
}

func TestBroadcastReachesAllMembers(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s, zap.NewNop())
	r.Join("game_1", "u1")
	r.Join("game_1", "u2")
	r.Join("game_2", "u3")

	r.Broadcast("game_1", protocol.EvtScoreUpdate, nil)

	assert.Equal(t, []string{"u1", "u2"}, s.recipients(), "other rooms are untouched")
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	s := newFakeSender()
	r := NewRegistry(s, zap.NewNop())
	r.Join("game_1", "u1")
	r.Join("game_1", "u2")

	r.BroadcastExcept("game_1", "u1", protocol.EvtPlayerMoved, nil)

	assert.Equal(t, []string{"u2"}, s.recipients())
}

func TestBroadcastPrunesFailedMember(t *testing.T) {
	s := newFakeSender()
	s.failed["u2"] = true
	r := NewRegistry(s, zap.NewNop())
	r.Join("game_1", "u1")
	r.Join("game_1", "u2")

	r.Broadcast("game_1", protocol.EvtScoreUpdate, nil)

	assert.Equal(t, []string{"u1"}, s.recipients())
	assert.False(t, r.IsMember("game_1", "u2"), "dead connection is pruned")
	assert.True(t, r.IsMember("game_1", "u1"))
}
