package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/metrics"
	"github.com/Rajthegreat123/strikas/server/internal/model"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

// Collectors register globally, so one instance serves every test.
var testMetrics = metrics.NewMetrics()

type recordedEvent struct {
	Room string
	Evt  protocol.EventType
	Data any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) Broadcast(roomID string, evt protocol.EventType, data any) {
	f.mu.Lock()
	f.events = append(f.events, recordedEvent{Room: roomID, Evt: evt, Data: data})
	f.mu.Unlock()
}

func (f *fakeBroadcaster) count(evt protocol.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Evt == evt {
			n++
		}
	}
	return n
}

type fixture struct {
	mgr   *Manager
	rooms *store.MemoryRooms
	users *store.MemoryUsers
	bcast *fakeBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	rooms := store.NewMemoryRooms()
	users := store.NewMemoryUsers()
	bcast := &fakeBroadcaster{}
	mgr := NewManager(rooms, users, store.NewMemoryIdem(), bcast, testMetrics, zap.NewNop())

	require.NoError(t, users.CreateUser(ctx, &model.User{ID: "h1", Username: "host", Email: "h@x"}))
	require.NoError(t, users.CreateUser(ctx, &model.User{ID: "g1", Username: "guest", Email: "g@x"}))
	require.NoError(t, rooms.CreateLobby(ctx, &model.Lobby{
		ID:          "l1",
		Host:        model.PlayerRef{ID: "h1", Username: "host"},
		Guest:       &model.PlayerRef{ID: "g1", Username: "guest"},
		PlayerCount: 2,
		Status:      model.LobbyWaiting,
		CreatedAt:   time.Now(),
	}))

	return &fixture{mgr: mgr, rooms: rooms, users: users, bcast: bcast}
}

func (f *fixture) start(t *testing.T) *model.Match {
	t.Helper()
	mt, err := f.mgr.Start(context.Background(), "h1", "l1")
	require.NoError(t, err)
	return mt
}

func TestStartPromotesFullLobby(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mt := f.start(t)
	assert.Equal(t, model.MatchInProgress, mt.Status)
	assert.Equal(t, model.Score{}, mt.Score)
	assert.Equal(t, "h1", mt.Players.Host.ID)
	assert.Equal(t, "g1", mt.Players.Guest.ID)

	l, err := f.rooms.GetLobby(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.LobbyInGame, l.Status)
	assert.Equal(t, mt.ID, l.MatchID)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtGameStarted))
}

func TestStartRequiresHost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.mgr.Start(ctx, "g1", "l1")
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	l, err := f.rooms.GetLobby(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, model.LobbyWaiting, l.Status)
	assert.Empty(t, l.MatchID, "failed start must not leave a match behind")
}

func TestStartRequiresGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The guest left just before the host pressed start.
	_, err := f.rooms.UpdateLobby(ctx, "l1", func(l *model.Lobby) error {
		l.Guest = nil
		l.PlayerCount = 1
		return nil
	})
	require.NoError(t, err)

	_, err = f.mgr.Start(ctx, "h1", "l1")
	assert.True(t, apperr.Is(err, apperr.InvalidOperation))
}

func TestStartTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	_, err := f.mgr.Start(context.Background(), "h1", "l1")
	assert.True(t, apperr.Is(err, apperr.InvalidOperation))
}

func TestRecordGoalUpdatesScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	require.NoError(t, f.mgr.RecordGoal(ctx, mt.ID, model.SideGuest))

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{Host: 0, Guest: 1}, after.Score)
	assert.Equal(t, model.MatchInProgress, after.Status)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtScoreUpdate))
	assert.Equal(t, 0, f.bcast.count(protocol.EvtGameOver))
}

func TestRecordGoalCompletesAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	for i := 0; i < model.WinningScore; i++ {
		require.NoError(t, f.mgr.RecordGoal(ctx, mt.ID, model.SideHost))
	}

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, after.Status)
	assert.Equal(t, model.SideHost, after.Winner)
	assert.Equal(t, model.WinningScore, after.Score.Host)
	require.NotNil(t, after.EndedAt)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtGameOver))
	assert.Equal(t, model.WinningScore-1, f.bcast.count(protocol.EvtScoreUpdate))

	host, err := f.users.GetUser(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Wins: 1, Losses: 0, GamesPlayed: 1}, host.Stats)

	guest, err := f.users.GetUser(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Wins: 0, Losses: 1, GamesPlayed: 1}, guest.Stats)
}

func TestRecordGoalAfterTerminalIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	for i := 0; i < model.WinningScore; i++ {
		require.NoError(t, f.mgr.RecordGoal(ctx, mt.ID, model.SideHost))
	}

	err := f.mgr.RecordGoal(ctx, mt.ID, model.SideGuest)
	assert.True(t, apperr.Is(err, apperr.InvalidOperation))

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Score{Host: model.WinningScore, Guest: 0}, after.Score)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtGameOver))

	host, err := f.users.GetUser(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, host.Stats.GamesPlayed, "no second accrual after terminal state")
}

func TestConcurrentGoalsLoseNoIncrement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	var wg sync.WaitGroup
	for i := 0; i < model.WinningScore; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.mgr.RecordGoal(ctx, mt.ID, model.SideHost)
		}()
	}
	wg.Wait()

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WinningScore, after.Score.Host)
	assert.Equal(t, model.MatchCompleted, after.Status)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtGameOver))

	host, err := f.users.GetUser(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Wins: 1, Losses: 0, GamesPlayed: 1}, host.Stats)
}

func TestRecordGoalRejectsUnknownScorer(t *testing.T) {
	f := newFixture(t)
	mt := f.start(t)
	err := f.mgr.RecordGoal(context.Background(), mt.ID, "referee")
	assert.True(t, apperr.Is(err, apperr.InvalidOperation))
}

func TestDisconnectEndsInProgressMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	require.NoError(t, f.mgr.RecordGoal(ctx, mt.ID, model.SideHost))
	require.NoError(t, f.mgr.HandleDisconnect(ctx, "g1", mt.ID))

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchEnded, after.Status)
	assert.Equal(t, model.EndReasonDisconnect, after.EndReason)
	assert.Equal(t, model.Score{Host: 1, Guest: 0}, after.Score, "score untouched by disconnect")
	require.NotNil(t, after.EndedAt)
	assert.Empty(t, after.Winner)
	assert.Equal(t, 1, f.bcast.count(protocol.EvtGameEnded))

	host, err := f.users.GetUser(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, host.Stats, "no stat accrual on disconnect ending")
}

func TestDisconnectAfterCompletedIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	for i := 0; i < model.WinningScore; i++ {
		require.NoError(t, f.mgr.RecordGoal(ctx, mt.ID, model.SideHost))
	}

	err := f.mgr.HandleDisconnect(ctx, "g1", mt.ID)
	assert.True(t, apperr.Is(err, apperr.InvalidOperation))

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchCompleted, after.Status, "terminal state never transitions")
	assert.Equal(t, 0, f.bcast.count(protocol.EvtGameEnded))
}

func TestDisconnectByNonPlayerIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mt := f.start(t)

	err := f.mgr.HandleDisconnect(ctx, "spectator", mt.ID)
	assert.True(t, apperr.Is(err, apperr.Forbidden))

	after, err := f.rooms.GetMatch(ctx, mt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MatchInProgress, after.Status)
}
