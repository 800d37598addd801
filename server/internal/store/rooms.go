package store

import (
	"context"
	"errors"

	"github.com/Rajthegreat123/strikas/server/internal/model"
)

// ErrCodeTaken is returned by CreateLobby when the generated private code
// already belongs to a waiting lobby. Callers regenerate and retry.
var ErrCodeTaken = errors.New("lobby code taken")

// RoomStore is the system of record for lobby and match documents. Update
// methods apply mutate under a per-document compare-and-swap: mutate sees a
// snapshot, and the write lands only if the document is unchanged since the
// read; otherwise the whole read-mutate-write is retried. An error returned
// from mutate aborts the update and is passed through unchanged.
type RoomStore interface {
	CreateLobby(ctx context.Context, l *model.Lobby) error
	GetLobby(ctx context.Context, id string) (*model.Lobby, error)
	UpdateLobby(ctx context.Context, id string, mutate func(*model.Lobby) error) (*model.Lobby, error)
	DeleteLobby(ctx context.Context, id string) error

	// FindOpenPublicLobby returns a waiting public lobby with a free seat,
	// or NotFound. The pick is deterministic but the result may be stale;
	// callers must re-validate inside UpdateLobby.
	FindOpenPublicLobby(ctx context.Context) (*model.Lobby, error)
	FindWaitingByCode(ctx context.Context, code string) (*model.Lobby, error)
	ListPublicWaiting(ctx context.Context) ([]*model.Lobby, error)

	CreateMatch(ctx context.Context, m *model.Match) error
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	UpdateMatch(ctx context.Context, id string, mutate func(*model.Match) error) (*model.Match, error)
}
