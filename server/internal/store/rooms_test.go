package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

func waitingLobby(id, hostID string, createdAt time.Time) *model.Lobby {
	return &model.Lobby{
		ID:          id,
		Host:        model.PlayerRef{ID: hostID, Username: "u-" + hostID},
		PlayerCount: 1,
		Status:      model.LobbyWaiting,
		CreatedAt:   createdAt,
	}
}

func TestMemoryRoomsUpdateAbortsOnMutateError(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()
	require.NoError(t, s.CreateLobby(ctx, waitingLobby("l1", "h1", time.Now())))

	boom := errors.New("boom")
	_, err := s.UpdateLobby(ctx, "l1", func(l *model.Lobby) error {
		l.PlayerCount = 2
		return boom
	})
	assert.ErrorIs(t, err, boom)

	l, err := s.GetLobby(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, l.PlayerCount, "aborted mutate must not persist")
}

func TestMemoryRoomsReadsAreIsolated(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()
	require.NoError(t, s.CreateLobby(ctx, waitingLobby("l1", "h1", time.Now())))

	l, err := s.GetLobby(ctx, "l1")
	require.NoError(t, err)
	l.PlayerCount = 99

	again, err := s.GetLobby(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.PlayerCount, "caller mutation must not leak into the store")
}

func TestFindOpenPublicLobbyPicksOldest(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()
	base := time.Now()
	require.NoError(t, s.CreateLobby(ctx, waitingLobby("newer", "h2", base.Add(time.Second))))
	require.NoError(t, s.CreateLobby(ctx, waitingLobby("older", "h1", base)))

	l, err := s.FindOpenPublicLobby(ctx)
	require.NoError(t, err)
	assert.Equal(t, "older", l.ID)
}

func TestFindOpenPublicLobbySkipsUnmatchable(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()

	private := waitingLobby("private", "h1", time.Now())
	private.IsPrivate = true
	private.Code = "ABC123"
	require.NoError(t, s.CreateLobby(ctx, private))

	full := waitingLobby("full", "h2", time.Now())
	full.Guest = &model.PlayerRef{ID: "g2"}
	full.PlayerCount = 2
	require.NoError(t, s.CreateLobby(ctx, full))

	inGame := waitingLobby("ingame", "h3", time.Now())
	inGame.Status = model.LobbyInGame
	require.NoError(t, s.CreateLobby(ctx, inGame))

	abandoned := waitingLobby("abandoned", "h4", time.Now())
	abandoned.PlayerCount = 0
	require.NoError(t, s.CreateLobby(ctx, abandoned))

	_, err := s.FindOpenPublicLobby(ctx)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestCreateLobbyRejectsDuplicateWaitingCode(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()

	first := waitingLobby("l1", "h1", time.Now())
	first.IsPrivate = true
	first.Code = "AAAAAA"
	require.NoError(t, s.CreateLobby(ctx, first))

	second := waitingLobby("l2", "h2", time.Now())
	second.IsPrivate = true
	second.Code = "AAAAAA"
	assert.ErrorIs(t, s.CreateLobby(ctx, second), ErrCodeTaken)

	// Once the holder is in game the code is free again.
	_, err := s.UpdateLobby(ctx, "l1", func(l *model.Lobby) error {
		l.Status = model.LobbyInGame
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, s.CreateLobby(ctx, second))
}

func TestFindWaitingByCode(t *testing.T) {
	s := NewMemoryRooms()
	ctx := context.Background()

	l := waitingLobby("l1", "h1", time.Now())
	l.IsPrivate = true
	l.Code = "XYZ789"
	require.NoError(t, s.CreateLobby(ctx, l))

	found, err := s.FindWaitingByCode(ctx, "XYZ789")
	require.NoError(t, err)
	assert.Equal(t, "l1", found.ID)

	_, err = s.FindWaitingByCode(ctx, "NOPE00")
	assert.True(t, apperr.Is(err, apperr.NotFound))

	_, err = s.UpdateLobby(ctx, "l1", func(l *model.Lobby) error {
		l.Status = model.LobbyInGame
		return nil
	})
	require.NoError(t, err)
	_, err = s.FindWaitingByCode(ctx, "XYZ789")
	assert.True(t, apperr.Is(err, apperr.NotFound), "in-game lobby code must not resolve")
}

func TestMemoryIdemClaimsOnce(t *testing.T) {
	idem := NewMemoryIdem()
	ctx := context.Background()

	ok, err := idem.SetIfNotExists(ctx, "settle:m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idem.SetIfNotExists(ctx, "settle:m1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryUsersRecordResult(t *testing.T) {
	users := NewMemoryUsers()
	ctx := context.Background()
	require.NoError(t, users.CreateUser(ctx, &model.User{ID: "u1", Username: "a", Email: "a@x"}))

	require.NoError(t, users.RecordResult(ctx, "u1", true))
	require.NoError(t, users.RecordResult(ctx, "u1", false))

	u, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Stats.Wins)
	assert.Equal(t, 1, u.Stats.Losses)
	assert.Equal(t, 2, u.Stats.GamesPlayed)

	err = users.RecordResult(ctx, "missing", true)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}
