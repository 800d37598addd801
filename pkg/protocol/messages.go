package protocol

// EventType names a wire event. The names are the compatibility contract:
// clients address the server with the kebab-case client events and listen
// for the server events below.
type EventType string

// Client -> server.
const (
	EvtJoinLobby    EventType = "join-lobby"
	EvtLeaveLobby   EventType = "leave-lobby"
	EvtStartGame    EventType = "start-game"
	EvtJoinGame     EventType = "join-game"
	EvtPlayerUpdate EventType = "player-update"
	EvtBallUpdate   EventType = "ball-update"
	EvtGoalScored   EventType = "goal-scored"
	EvtPing         EventType = "ping"
)

// Server -> client. EvtBallUpdate is reused: the relayed ball sample keeps
// the same event name, minus the gameId.
const (
	EvtLobbyUpdated EventType = "lobby-updated"
	EvtGameStarted  EventType = "game-started"
	EvtGameState    EventType = "game-state"
	EvtPlayerMoved  EventType = "player-moved"
	EvtScoreUpdate  EventType = "score-update"
	EvtGameOver     EventType = "game-over"
	EvtGameEnded    EventType = "game-ended"
	EvtError        EventType = "error"
	EvtPong         EventType = "pong"
)

// Vec2 is a 2D position or velocity sample component.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type JoinLobby struct {
	LobbyID string `json:"lobbyId"`
}

type LeaveLobby struct {
	LobbyID string `json:"lobbyId"`
}

type StartGame struct {
	LobbyID string `json:"lobbyId"`
}

type JoinGame struct {
	GameID string `json:"gameId"`
}

// PlayerUpdate is a gameplay sample for the sender's own player. The server
// forwards it verbatim as EvtPlayerMoved; it is never stored.
type PlayerUpdate struct {
	GameID   string `json:"gameId,omitempty"`
	Position Vec2   `json:"position"`
	Velocity Vec2   `json:"velocity"`
}

// BallUpdate is a gameplay sample for the shared ball. By convention only
// the match host emits these; the server transports without verifying.
type BallUpdate struct {
	GameID   string `json:"gameId,omitempty"`
	Position Vec2   `json:"position"`
	Velocity Vec2   `json:"velocity"`
}

type GoalScored struct {
	GameID string `json:"gameId"`
	Scorer string `json:"scorer"` // "host" or "guest"
}

type PlayerMoved struct {
	PlayerID string `json:"playerId"`
	Position Vec2   `json:"position"`
	Velocity Vec2   `json:"velocity"`
}

type ScoreUpdate struct {
	Host  int `json:"host"`
	Guest int `json:"guest"`
}

type GameOver struct {
	Winner  string      `json:"winner"`
	Score   ScoreUpdate `json:"score"`
	HostID  string      `json:"hostId"`
	GuestID string      `json:"guestId"`
}

type GameEnded struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type Ping struct {
	ClientTs int64 `json:"ts"`
}

type Pong struct {
	ClientTs int64 `json:"ts"`
	ServerTs int64 `json:"serverTs"`
}
