package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
	"github.com/Rajthegreat123/strikas/server/internal/metrics"
)

var ErrNotFound = errors.New("session not found")

// Sender is implemented by network connections.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Role is the seat a connection holds in its current room.
type Role string

const (
	RoleHost     Role = "host"
	RoleGuest    Role = "guest"
	RoleObserver Role = "observer"
)

// Session is the ephemeral per-connection record: identity, current room
// and role. It is created when the channel opens, destroyed when it closes,
// and never persisted.
type Session struct {
	UserID   string
	Username string

	mu     sync.RWMutex
	roomID string
	role   Role
	sender Sender
}

func (s *Session) SetRoom(roomID string, role Role) {
	s.mu.Lock()
	s.roomID = roomID
	s.role = role
	s.mu.Unlock()
}

func (s *Session) Room() (string, Role) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID, s.role
}

func (s *Session) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

func (s *Session) Send(evt protocol.EventType, data any) error {
	s.mu.RLock()
	sender := s.sender
	s.mu.RUnlock()
	if sender == nil {
		return errors.New("session detached")
	}
	payload, err := protocol.Encode(evt, data)
	if err != nil {
		return err
	}
	return sender.Send(payload)
}

// Registry maps a connected user to its session. One live connection per
// user: a second connection for the same identity replaces the first.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewRegistry(metrics *metrics.Metrics, log *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		metrics:  metrics,
		log:      log,
	}
}

func (r *Registry) Register(userID, username string, sender Sender) *Session {
	s := &Session{UserID: userID, Username: username, sender: sender}

	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		prev := old.sender
		old.sender = nil
		old.mu.Unlock()
		if prev != nil && prev != sender {
			_ = prev.Close()
		}
	}
	r.updateGauge()
	return s
}

// Remove drops the session only if it still belongs to sess, so a
// replacement connection is not torn down by the old connection's cleanup.
func (r *Registry) Remove(sess *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[sess.UserID]; ok && cur == sess {
		delete(r.sessions, sess.UserID)
	}
	r.mu.Unlock()
	r.updateGauge()
}

func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	s := r.sessions[userID]
	r.mu.RUnlock()
	if s == nil {
		return nil, false
	}
	return s, true
}

func (r *Registry) Send(userID string, evt protocol.EventType, data any) error {
	s, ok := r.Get(userID)
	if !ok {
		return ErrNotFound
	}
	return s.Send(evt, data)
}

func (r *Registry) updateGauge() {
	if r.metrics == nil {
		return
	}
	r.mu.RLock()
	n := len(r.sessions)
	r.mu.RUnlock()
	r.metrics.OnlineGauge.Set(float64(n))
}
