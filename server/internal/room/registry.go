// Package room maps room ids to the connections currently subscribed to
// them and fans messages out to the members. Rooms carry no game state:
// gameplay simulation is client-local and lifecycle state lives in the
// store.
package room

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
)

// LobbyRoom and GameRoom derive the room id for a document, matching the
// lobby_/game_ channel names clients subscribe to.
func LobbyRoom(lobbyID string) string { return "lobby_" + lobbyID }
func GameRoom(matchID string) string  { return "game_" + matchID }

// Sender delivers an event to a single user; implemented by the session
// registry.
type Sender interface {
	Send(userID string, evt protocol.EventType, data any) error
}

// Registry tracks room membership. Membership is process-local and mutated
// only by the owning connection's handler; broadcasts take a read snapshot.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomID -> set of userIDs
	sender  Sender
	log     *zap.Logger
}

func NewRegistry(sender Sender, log *zap.Logger) *Registry {
	return &Registry{
		members: make(map[string]map[string]struct{}),
		sender:  sender,
		log:     log,
	}
}

func (r *Registry) Join(roomID, userID string) {
	r.mu.Lock()
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[userID] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) Leave(roomID, userID string) {
	r.mu.Lock()
	if set, ok := r.members[roomID]; ok {
		delete(set, userID)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
	r.mu.Unlock()
}

// IsMember reports whether userID is currently registered in roomID. This
// is the sole server-side integrity check on hot-path traffic.
func (r *Registry) IsMember(roomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.members[roomID]
	if !ok {
		return false
	}
	_, in := set[userID]
	return in
}

func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[roomID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Broadcast sends evt to every member of the room. A failed send means the
// member's outbound queue is gone or full; the member is pruned so dead
// connections do not accumulate.
func (r *Registry) Broadcast(roomID string, evt protocol.EventType, data any) {
	r.broadcast(roomID, "", evt, data)
}

// BroadcastExcept sends evt to every member but the sender. Used for
// gameplay sample relay.
func (r *Registry) BroadcastExcept(roomID, exceptUserID string, evt protocol.EventType, data any) {
	r.broadcast(roomID, exceptUserID, evt, data)
}

func (r *Registry) broadcast(roomID, exceptUserID string, evt protocol.EventType, data any) {
	for _, uid := range r.Members(roomID) {
		if uid == exceptUserID {
			continue
		}
		if err := r.sender.Send(uid, evt, data); err != nil {
			r.log.Debug("room send failed, pruning member",
				zap.String("room", roomID),
				zap.String("user", uid),
				zap.Error(err))
			r.Leave(roomID, uid)
		}
	}
}
