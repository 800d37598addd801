// Package lobby implements matchmaking and the lobby lifecycle: public
// join-or-create, private code create/join, membership changes with host
// migration, and disposal of abandoned lobbies.
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
	"github.com/Rajthegreat123/strikas/server/internal/room"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

// Broadcaster pushes lifecycle events to the members of a room.
type Broadcaster interface {
	Broadcast(roomID string, evt protocol.EventType, data any)
}

const (
	joinRetries    = 4
	codeGenRetries = 5
)

type Manager struct {
	rooms store.RoomStore
	bcast Broadcaster
	log   *zap.Logger
}

func NewManager(rooms store.RoomStore, bcast Broadcaster, log *zap.Logger) *Manager {
	return &Manager{rooms: rooms, bcast: bcast, log: log}
}

// JoinOrCreatePublic seats user in an open public lobby, or creates a fresh
// one when none is open. The seat is claimed under the lobby's
// compare-and-swap, so two racing callers can never both land on a lobby
// with one free seat: the loser retries against the next candidate and
// eventually creates its own lobby.
func (m *Manager) JoinOrCreatePublic(ctx context.Context, user model.PlayerRef) (*model.Lobby, error) {
	for i := 0; i < joinRetries; i++ {
		cand, err := m.rooms.FindOpenPublicLobby(ctx)
		if apperr.Is(err, apperr.NotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		if cand.Host.ID == user.ID {
			// Re-queuing hosts wait in their own lobby.
			return cand, nil
		}

		updated, err := m.rooms.UpdateLobby(ctx, cand.ID, func(l *model.Lobby) error {
			if l.IsPrivate || l.Status != model.LobbyWaiting || l.Guest != nil || l.PlayerCount >= 2 {
				return apperr.New(apperr.InvalidOperation, "lobby is full")
			}
			l.Guest = &user
			l.PlayerCount = 2
			return nil
		})
		if apperr.Is(err, apperr.InvalidOperation) || apperr.Is(err, apperr.NotFound) {
			// Lost the race for this lobby; try the next candidate.
			continue
		}
		if err != nil {
			return nil, err
		}
		m.bcast.Broadcast(room.LobbyRoom(updated.ID), protocol.EvtLobbyUpdated, updated)
		return updated, nil
	}
	return m.Create(ctx, user, false)
}

// Create makes a new lobby hosted by user. Private lobbies get a freshly
// generated code; a collision with a waiting lobby's code is retried here
// rather than surfaced.
func (m *Manager) Create(ctx context.Context, user model.PlayerRef, private bool) (*model.Lobby, error) {
	for i := 0; i < codeGenRetries; i++ {
		l := &model.Lobby{
			ID:          uuid.NewString(),
			Host:        user,
			Guest:       nil,
			IsPrivate:   private,
			PlayerCount: 1,
			Status:      model.LobbyWaiting,
			CreatedAt:   time.Now().UTC(),
		}
		if private {
			code, err := generateCode()
			if err != nil {
				return nil, err
			}
			l.Code = code
		}
		err := m.rooms.CreateLobby(ctx, l)
		if err == store.ErrCodeTaken {
			m.log.Warn("lobby code collision, regenerating", zap.String("lobby", l.ID))
			continue
		}
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	return nil, apperr.New(apperr.Internal, "failed to generate lobby code")
}

// JoinByCode seats user as the guest of the waiting lobby holding code.
func (m *Manager) JoinByCode(ctx context.Context, user model.PlayerRef, code string) (*model.Lobby, error) {
	if code == "" {
		return nil, apperr.New(apperr.InvalidOperation, "lobby code is required")
	}
	cand, err := m.rooms.FindWaitingByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	updated, err := m.rooms.UpdateLobby(ctx, cand.ID, func(l *model.Lobby) error {
		if l.Host.ID == user.ID {
			return apperr.New(apperr.InvalidOperation, "cannot join your own lobby")
		}
		if l.Guest != nil {
			return apperr.New(apperr.InvalidOperation, "lobby is already full")
		}
		if l.PlayerCount >= 2 || l.Status != model.LobbyWaiting {
			return apperr.New(apperr.InvalidOperation, "lobby is full")
		}
		l.Guest = &user
		l.PlayerCount = 2
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.bcast.Broadcast(room.LobbyRoom(updated.ID), protocol.EvtLobbyUpdated, updated)
	return updated, nil
}

// Leave removes userID from the lobby. A departing guest frees the seat; a
// departing host hands the lobby to the guest and resets it to waiting; the
// last member to leave deletes the lobby so it can never be matched again.
func (m *Manager) Leave(ctx context.Context, userID, lobbyID string) error {
	updated, err := m.rooms.UpdateLobby(ctx, lobbyID, func(l *model.Lobby) error {
		switch l.SideOf(userID) {
		case model.SideGuest:
			l.Guest = nil
			l.PlayerCount = 1
		case model.SideHost:
			if l.Guest != nil {
				l.Host = *l.Guest
				l.Guest = nil
				l.PlayerCount = 1
				if l.Status != model.LobbyWaiting {
					// The code pointer was released when the game started;
					// dropping the code keeps it joinable by id only instead
					// of leaving a code another lobby may now hold.
					l.Code = ""
				}
				l.Status = model.LobbyWaiting
			} else {
				// Lobby abandoned; count 0 keeps it out of matchmaking
				// until the delete below lands.
				l.PlayerCount = 0
			}
		default:
			return apperr.New(apperr.InvalidOperation, "not a lobby member")
		}
		return nil
	})
	if apperr.Is(err, apperr.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if updated.PlayerCount == 0 {
		return m.rooms.DeleteLobby(ctx, lobbyID)
	}
	m.bcast.Broadcast(room.LobbyRoom(lobbyID), protocol.EvtLobbyUpdated, updated)
	return nil
}

// Get returns the lobby, restricted to its members.
func (m *Manager) Get(ctx context.Context, userID, lobbyID string) (*model.Lobby, error) {
	l, err := m.rooms.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if !l.IsMember(userID) {
		return nil, apperr.New(apperr.Forbidden, "not authorized to view this lobby")
	}
	return l, nil
}

// ListPublic returns the public lobbies still waiting for players.
func (m *Manager) ListPublic(ctx context.Context) ([]*model.Lobby, error) {
	return m.rooms.ListPublicWaiting(ctx)
}
