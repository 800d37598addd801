// Package netws is the realtime relay: it authenticates each connection at
// the handshake, tracks room membership through the session registry, routes
// lifecycle events through the lobby and match managers, and forwards
// gameplay samples verbatim between the peers of a match room.
package netws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/pkg/protocol"
	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/auth"
	"github.com/Rajthegreat123/strikas/server/internal/config"
	"github.com/Rajthegreat123/strikas/server/internal/lobby"
	"github.com/Rajthegreat123/strikas/server/internal/match"
	"github.com/Rajthegreat123/strikas/server/internal/metrics"
	"github.com/Rajthegreat123/strikas/server/internal/model"
	"github.com/Rajthegreat123/strikas/server/internal/room"
	"github.com/Rajthegreat123/strikas/server/internal/session"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

const opTimeout = 5 * time.Second

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	auth     *auth.Manager
	users    store.UserStore
	sessions *session.Registry
	rooms    *room.Registry
	lobbies  *lobby.Manager
	matches  *match.Manager
}

func NewServer(cfg config.Config, log *zap.Logger, metrics *metrics.Metrics, auth *auth.Manager, users store.UserStore, sessions *session.Registry, rooms *room.Registry, lobbies *lobby.Manager, matches *match.Manager) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		auth:     auth,
		users:    users,
		sessions: sessions,
		rooms:    rooms,
		lobbies:  lobbies,
		matches:  matches,
	}
}

// ServeHTTP authenticates the handshake and runs the connection. The token
// is checked before the upgrade: an unauthenticated client never reaches a
// room operation.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	userID, err := s.auth.VerifyToken(token)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
	user, err := s.users.GetUser(ctx, userID)
	cancel()
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, s.cfg.SendQueueSize, s.cfg.ReadLimitBytes, s.metrics, s.log)
	sess := s.sessions.Register(user.ID, user.Username, client)
	s.log.Info("client connected", zap.String("user", user.ID))

	go client.WriteLoop()
	client.ReadLoop(func(data []byte) {
		s.handleMessage(sess, client, data)
	})

	client.CloseSend()
	_ = client.Close()
	s.cleanupConnection(sess)
}

// cleanupConnection runs when the channel closes: the session leaves the
// registry immediately and its room membership is unwound. A lobby seat is
// vacated, an in-progress match is terminated.
func (s *Server) cleanupConnection(sess *session.Session) {
	roomID, role := sess.Room()
	s.sessions.Remove(sess)
	if roomID == "" {
		return
	}
	s.rooms.Leave(roomID, sess.UserID)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch {
	case strings.HasPrefix(roomID, "game_"):
		if role == session.RoleObserver {
			return
		}
		matchID := strings.TrimPrefix(roomID, "game_")
		if err := s.matches.HandleDisconnect(ctx, sess.UserID, matchID); err != nil && !apperr.Is(err, apperr.InvalidOperation) {
			s.log.Warn("disconnect cleanup failed", zap.String("game", matchID), zap.Error(err))
		}
	case strings.HasPrefix(roomID, "lobby_"):
		lobbyID := strings.TrimPrefix(roomID, "lobby_")
		if err := s.lobbies.Leave(ctx, sess.UserID, lobbyID); err != nil && !apperr.Is(err, apperr.InvalidOperation) {
			s.log.Warn("lobby cleanup failed", zap.String("lobby", lobbyID), zap.Error(err))
		}
	}
	s.log.Info("client disconnected", zap.String("user", sess.UserID))
}

func (s *Server) handleMessage(sess *session.Session, c *Client, data []byte) {
	if !c.AllowMessage(s.cfg.MaxMsgPerSecond) {
		s.sendError(sess, "rate limited")
		return
	}

	env, err := protocol.Decode(data)
	if err != nil {
		s.sendError(sess, "bad envelope")
		return
	}

	switch env.Type {
	case protocol.EvtPing:
		var ping protocol.Ping
		if err := env.Bind(&ping); err == nil {
			_ = sess.Send(protocol.EvtPong, protocol.Pong{ClientTs: ping.ClientTs, ServerTs: time.Now().UnixMilli()})
		}
	case protocol.EvtJoinLobby:
		s.handleJoinLobby(sess, env)
	case protocol.EvtLeaveLobby:
		s.handleLeaveLobby(sess, env)
	case protocol.EvtStartGame:
		s.handleStartGame(sess, env)
	case protocol.EvtJoinGame:
		s.handleJoinGame(sess, env)
	case protocol.EvtPlayerUpdate:
		s.handlePlayerUpdate(sess, env)
	case protocol.EvtBallUpdate:
		s.handleBallUpdate(sess, env)
	case protocol.EvtGoalScored:
		s.handleGoalScored(sess, env)
	default:
		s.sendError(sess, "unknown event")
	}
}

func (s *Server) handleJoinLobby(sess *session.Session, env *protocol.Envelope) {
	var req protocol.JoinLobby
	if err := env.Bind(&req); err != nil {
		s.sendError(sess, "bad join-lobby")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	l, err := s.lobbies.Get(ctx, sess.UserID, req.LobbyID)
	if err != nil {
		s.sendOpError(sess, err)
		return
	}

	s.moveToRoom(sess, room.LobbyRoom(l.ID), lobbyRole(l, sess.UserID))
	s.rooms.Broadcast(room.LobbyRoom(l.ID), protocol.EvtLobbyUpdated, l)
}

func (s *Server) handleLeaveLobby(sess *session.Session, env *protocol.Envelope) {
	var req protocol.LeaveLobby
	if err := env.Bind(&req); err != nil {
		s.sendError(sess, "bad leave-lobby")
		return
	}

	lobbyRoom := room.LobbyRoom(req.LobbyID)
	s.rooms.Leave(lobbyRoom, sess.UserID)
	// Clear the session's room only if it still points at this lobby; after
	// join-game it points at the game room, which disconnect cleanup needs.
	if cur, _ := sess.Room(); cur == lobbyRoom {
		sess.SetRoom("", "")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.lobbies.Leave(ctx, sess.UserID, req.LobbyID); err != nil && !apperr.Is(err, apperr.InvalidOperation) {
		s.log.Warn("leave-lobby failed", zap.String("lobby", req.LobbyID), zap.Error(err))
	}
}

func (s *Server) handleStartGame(sess *session.Session, env *protocol.Envelope) {
	var req protocol.StartGame
	if err := env.Bind(&req); err != nil {
		s.sendError(sess, "bad start-game")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := s.matches.Start(ctx, sess.UserID, req.LobbyID); err != nil {
		s.sendOpError(sess, err)
	}
}

func (s *Server) handleJoinGame(sess *session.Session, env *protocol.Envelope) {
	var req protocol.JoinGame
	if err := env.Bind(&req); err != nil {
		s.sendError(sess, "bad join-game")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	mt, err := s.matches.Get(ctx, req.GameID)
	if err != nil {
		s.sendOpError(sess, err)
		return
	}

	s.moveToRoom(sess, room.GameRoom(mt.ID), matchRole(mt, sess.UserID))
	_ = sess.Send(protocol.EvtGameState, mt)
}

// handlePlayerUpdate forwards a player pose sample to the peer. Samples are
// relayed verbatim and never interpreted; the only check is that the sender
// is a registered member of the target room.
func (s *Server) handlePlayerUpdate(sess *session.Session, env *protocol.Envelope) {
	var sample protocol.PlayerUpdate
	if err := env.Bind(&sample); err != nil {
		return
	}
	roomID := room.GameRoom(sample.GameID)
	if !s.rooms.IsMember(roomID, sess.UserID) {
		s.dropSample(sess, roomID)
		return
	}
	s.rooms.BroadcastExcept(roomID, sess.UserID, protocol.EvtPlayerMoved, protocol.PlayerMoved{
		PlayerID: sess.UserID,
		Position: sample.Position,
		Velocity: sample.Velocity,
	})
	s.metrics.SamplesForwarded.Inc()
}

// handleBallUpdate forwards a ball pose sample. Convention makes the match
// host the ball authority; the relay does not verify that and transports
// whatever the sender emits.
func (s *Server) handleBallUpdate(sess *session.Session, env *protocol.Envelope) {
	var sample protocol.BallUpdate
	if err := env.Bind(&sample); err != nil {
		return
	}
	roomID := room.GameRoom(sample.GameID)
	if !s.rooms.IsMember(roomID, sess.UserID) {
		s.dropSample(sess, roomID)
		return
	}
	s.rooms.BroadcastExcept(roomID, sess.UserID, protocol.EvtBallUpdate, protocol.BallUpdate{
		Position: sample.Position,
		Velocity: sample.Velocity,
	})
	s.metrics.SamplesForwarded.Inc()
}

// handleGoalScored reports a goal to the match manager. Failures are logged
// and never broadcast: the goal report rides the hot path and the sender is
// trusted to the extent of room membership only.
func (s *Server) handleGoalScored(sess *session.Session, env *protocol.Envelope) {
	var req protocol.GoalScored
	if err := env.Bind(&req); err != nil {
		return
	}
	roomID := room.GameRoom(req.GameID)
	if !s.rooms.IsMember(roomID, sess.UserID) {
		s.dropSample(sess, roomID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.matches.RecordGoal(ctx, req.GameID, model.Side(req.Scorer)); err != nil {
		s.log.Debug("goal rejected", zap.String("game", req.GameID), zap.Error(err))
	}
}

// moveToRoom re-homes the session: a connection is in at most one room.
func (s *Server) moveToRoom(sess *session.Session, roomID string, role session.Role) {
	if prev, _ := sess.Room(); prev != "" && prev != roomID {
		s.rooms.Leave(prev, sess.UserID)
	}
	s.rooms.Join(roomID, sess.UserID)
	sess.SetRoom(roomID, role)
}

func (s *Server) dropSample(sess *session.Session, roomID string) {
	s.metrics.SamplesDropped.Inc()
	s.log.Debug("sample dropped, sender not in room",
		zap.String("user", sess.UserID),
		zap.String("room", roomID))
}

func (s *Server) sendError(sess *session.Session, msg string) {
	_ = sess.Send(protocol.EvtError, protocol.ErrorPayload{Message: msg})
}

// sendOpError surfaces a lifecycle failure to the originating connection
// only; lifecycle errors are never broadcast.
func (s *Server) sendOpError(sess *session.Session, err error) {
	_ = sess.Send(protocol.EvtError, protocol.ErrorPayload{Message: apperr.Message(err)})
}

func lobbyRole(l *model.Lobby, userID string) session.Role {
	switch l.SideOf(userID) {
	case model.SideHost:
		return session.RoleHost
	case model.SideGuest:
		return session.RoleGuest
	default:
		return session.RoleObserver
	}
}

func matchRole(m *model.Match, userID string) session.Role {
	switch {
	case m.Players.Host.ID == userID:
		return session.RoleHost
	case m.Players.Guest.ID == userID:
		return session.RoleGuest
	default:
		return session.RoleObserver
	}
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
