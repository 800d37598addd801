// Package match owns the match lifecycle: promotion of a full lobby into an
// in-progress match, authoritative score bookkeeping, stat accrual on
// completion, and disconnect-triggered termination.
package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/metrics"
	"github.com/Rajthegreat123/strikas/server/internal/model"
	"github.com/Rajthegreat123/strikas/server/internal/room"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

type Broadcaster interface {
	Broadcast(roomID string, evt protocol.EventType, data any)
}

type Manager struct {
	rooms   store.RoomStore
	users   store.UserStore
	idem    store.Idempotency
	bcast   Broadcaster
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewManager(rooms store.RoomStore, users store.UserStore, idem store.Idempotency, bcast Broadcaster, m *metrics.Metrics, log *zap.Logger) *Manager {
	return &Manager{rooms: rooms, users: users, idem: idem, bcast: bcast, metrics: m, log: log}
}

// startedEvent mirrors the game-started payload: the new match id plus the
// initial match document.
type startedEvent struct {
	GameID string `json:"gameId"`
	*model.Match
}

// Start promotes a full lobby into a match. The lobby's compare-and-swap is
// the serialization point against a racing leave: either the guest is still
// seated when the swap lands, or the start fails; a match is never created
// with an empty seat.
func (m *Manager) Start(ctx context.Context, userID, lobbyID string) (*model.Match, error) {
	var created *model.Match
	now := time.Now().UTC()

	_, err := m.rooms.UpdateLobby(ctx, lobbyID, func(l *model.Lobby) error {
		if l.Host.ID != userID {
			return apperr.New(apperr.Forbidden, "only the host can start the game")
		}
		if l.Status != model.LobbyWaiting {
			return apperr.New(apperr.InvalidOperation, "game already started")
		}
		if l.Guest == nil {
			return apperr.New(apperr.InvalidOperation, "cannot start game without two players")
		}
		created = &model.Match{
			ID:      uuid.NewString(),
			LobbyID: l.ID,
			Players: model.MatchPlayers{
				Host:  l.Host,
				Guest: *l.Guest,
			},
			Status:      model.MatchInProgress,
			Score:       model.Score{},
			StartedAt:   now,
			LastUpdated: now,
		}
		l.Status = model.LobbyInGame
		l.MatchID = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.rooms.CreateMatch(ctx, created); err != nil {
		// Roll the lobby back so the pair can retry.
		if _, rbErr := m.rooms.UpdateLobby(ctx, lobbyID, func(l *model.Lobby) error {
			if l.MatchID == created.ID {
				l.Status = model.LobbyWaiting
				l.MatchID = ""
			}
			return nil
		}); rbErr != nil {
			m.log.Error("lobby rollback failed", zap.String("lobby", lobbyID), zap.Error(rbErr))
		}
		return nil, err
	}

	m.metrics.MatchesStarted.Inc()
	m.bcast.Broadcast(room.LobbyRoom(lobbyID), protocol.EvtGameStarted, startedEvent{GameID: created.ID, Match: created})
	return created, nil
}

// Get returns the match document.
func (m *Manager) Get(ctx context.Context, matchID string) (*model.Match, error) {
	return m.rooms.GetMatch(ctx, matchID)
}

// RecordGoal applies one goal for scorer. The increment and the threshold
// check run inside the match's compare-and-swap, so concurrent goal reports
// can neither lose an increment nor apply the terminal transition twice.
// Once terminal, further reports change nothing.
func (m *Manager) RecordGoal(ctx context.Context, matchID string, scorer model.Side) error {
	if scorer != model.SideHost && scorer != model.SideGuest {
		return apperr.New(apperr.InvalidOperation, "unknown scorer")
	}

	updated, err := m.rooms.UpdateMatch(ctx, matchID, func(mt *model.Match) error {
		if mt.Terminal() {
			return apperr.New(apperr.InvalidOperation, "game already over")
		}
		if scorer == model.SideHost {
			mt.Score.Host++
		} else {
			mt.Score.Guest++
		}
		now := time.Now().UTC()
		mt.LastUpdated = now
		if mt.Score.Host >= model.WinningScore || mt.Score.Guest >= model.WinningScore {
			mt.Status = model.MatchCompleted
			if mt.Score.Host >= model.WinningScore {
				mt.Winner = model.SideHost
			} else {
				mt.Winner = model.SideGuest
			}
			mt.EndedAt = &now
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.metrics.Goals.Inc()

	if updated.Status != model.MatchCompleted {
		m.bcast.Broadcast(room.GameRoom(matchID), protocol.EvtScoreUpdate, protocol.ScoreUpdate{
			Host:  updated.Score.Host,
			Guest: updated.Score.Guest,
		})
		return nil
	}

	m.settle(ctx, updated)
	m.metrics.MatchesCompleted.Inc()
	m.bcast.Broadcast(room.GameRoom(matchID), protocol.EvtGameOver, protocol.GameOver{
		Winner: string(updated.Winner),
		Score: protocol.ScoreUpdate{
			Host:  updated.Score.Host,
			Guest: updated.Score.Guest,
		},
		HostID:  updated.Players.Host.ID,
		GuestID: updated.Players.Guest.ID,
	})
	return nil
}

// settle accrues win/loss statistics exactly once per match. The two
// identity updates are independent; each is atomic for its own record.
func (m *Manager) settle(ctx context.Context, mt *model.Match) {
	ok, err := m.idem.SetIfNotExists(ctx, "settle:"+mt.ID, 10*time.Minute)
	if err != nil {
		m.log.Warn("settle idempotency check failed", zap.String("game", mt.ID), zap.Error(err))
		ok = true
	}
	if !ok {
		return
	}

	winnerID := mt.Players.Host.ID
	loserID := mt.Players.Guest.ID
	if mt.Winner == model.SideGuest {
		winnerID, loserID = loserID, winnerID
	}
	if err := m.users.RecordResult(ctx, winnerID, true); err != nil {
		m.log.Error("win accrual failed", zap.String("user", winnerID), zap.Error(err))
	}
	if err := m.users.RecordResult(ctx, loserID, false); err != nil {
		m.log.Error("loss accrual failed", zap.String("user", loserID), zap.Error(err))
	}
}

// HandleDisconnect terminates an in-progress match after one of its players
// drops. The score stays as it was and no statistics accrue.
func (m *Manager) HandleDisconnect(ctx context.Context, userID, matchID string) error {
	_, err := m.rooms.UpdateMatch(ctx, matchID, func(mt *model.Match) error {
		if mt.Terminal() {
			return apperr.New(apperr.InvalidOperation, "game already over")
		}
		if !mt.IsPlayer(userID) {
			return apperr.New(apperr.Forbidden, "not a game participant")
		}
		now := time.Now().UTC()
		mt.Status = model.MatchEnded
		mt.EndReason = model.EndReasonDisconnect
		mt.EndedAt = &now
		mt.LastUpdated = now
		return nil
	})
	if err != nil {
		return err
	}

	m.metrics.MatchesEnded.Inc()
	m.bcast.Broadcast(room.GameRoom(matchID), protocol.EvtGameEnded, protocol.GameEnded{
		Reason: model.EndReasonDisconnect,
	})
	return nil
}
