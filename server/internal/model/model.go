package model

import "time"

type LobbyStatus string

const (
	LobbyWaiting LobbyStatus = "waiting"
	LobbyInGame  LobbyStatus = "in_game"
)

type MatchStatus string

const (
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchEnded      MatchStatus = "ended"
)

// Side identifies one of the two seats in a lobby or match.
type Side string

const (
	SideHost  Side = "host"
	SideGuest Side = "guest"
)

// WinningScore is the goal threshold that completes a match.
const WinningScore = 5

const EndReasonDisconnect = "player_disconnected"

// PlayerRef is the identity snapshot embedded in lobby and match documents.
type PlayerRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type Lobby struct {
	ID          string      `json:"id"`
	Host        PlayerRef   `json:"host"`
	Guest       *PlayerRef  `json:"guest"`
	IsPrivate   bool        `json:"isPrivate"`
	Code        string      `json:"code,omitempty"`
	PlayerCount int         `json:"playerCount"`
	Status      LobbyStatus `json:"status"`
	MatchID     string      `json:"gameId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// IsMember reports whether userID occupies either seat.
func (l *Lobby) IsMember(userID string) bool {
	return l.Host.ID == userID || (l.Guest != nil && l.Guest.ID == userID)
}

// SideOf returns the seat userID occupies, or "" when not a member.
func (l *Lobby) SideOf(userID string) Side {
	if l.Host.ID == userID {
		return SideHost
	}
	if l.Guest != nil && l.Guest.ID == userID {
		return SideGuest
	}
	return ""
}

func (l *Lobby) Clone() *Lobby {
	cp := *l
	if l.Guest != nil {
		g := *l.Guest
		cp.Guest = &g
	}
	return &cp
}

type Score struct {
	Host  int `json:"host"`
	Guest int `json:"guest"`
}

type MatchPlayers struct {
	Host  PlayerRef `json:"host"`
	Guest PlayerRef `json:"guest"`
}

type Match struct {
	ID          string       `json:"id"`
	LobbyID     string       `json:"lobbyId"`
	Players     MatchPlayers `json:"players"`
	Status      MatchStatus  `json:"status"`
	Score       Score        `json:"score"`
	Winner      Side         `json:"winner,omitempty"`
	StartedAt   time.Time    `json:"startedAt"`
	LastUpdated time.Time    `json:"lastUpdated"`
	EndedAt     *time.Time   `json:"endedAt,omitempty"`
	EndReason   string       `json:"endReason,omitempty"`
}

// Terminal reports whether the match reached one of its two final states.
func (m *Match) Terminal() bool {
	return m.Status == MatchCompleted || m.Status == MatchEnded
}

// IsPlayer reports whether userID is one of the two participants.
func (m *Match) IsPlayer(userID string) bool {
	return m.Players.Host.ID == userID || m.Players.Guest.ID == userID
}

func (m *Match) Clone() *Match {
	cp := *m
	if m.EndedAt != nil {
		t := *m.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

type Stats struct {
	Wins        int `json:"wins"`
	Losses      int `json:"losses"`
	GamesPlayed int `json:"gamesPlayed"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Stats        Stats     `json:"stats"`
	CreatedAt    time.Time `json:"createdAt"`
}
