package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

// MemoryRooms is the process-local fallback document store. A single mutex
// serializes mutations, which gives the same per-document atomicity the
// Redis transactions provide. Reads hand out clones so callers never alias
// stored documents.
type MemoryRooms struct {
	mu      sync.Mutex
	lobbies map[string]*model.Lobby
	matches map[string]*model.Match
}

func NewMemoryRooms() *MemoryRooms {
	return &MemoryRooms{
		lobbies: make(map[string]*model.Lobby),
		matches: make(map[string]*model.Match),
	}
}

func (s *MemoryRooms) CreateLobby(ctx context.Context, l *model.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.IsPrivate && l.Code != "" {
		for _, other := range s.lobbies {
			if other.Code == l.Code && other.Status == model.LobbyWaiting {
				return ErrCodeTaken
			}
		}
	}
	s.lobbies[l.ID] = l.Clone()
	return nil
}

func (s *MemoryRooms) GetLobby(ctx context.Context, id string) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "lobby not found")
	}
	return l.Clone(), nil
}

func (s *MemoryRooms) UpdateLobby(ctx context.Context, id string, mutate func(*model.Lobby) error) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "lobby not found")
	}
	next := l.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.lobbies[id] = next
	return next.Clone(), nil
}

func (s *MemoryRooms) DeleteLobby(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
	return nil
}

func (s *MemoryRooms) FindOpenPublicLobby(ctx context.Context) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []*model.Lobby
	for _, l := range s.lobbies {
		if !l.IsPrivate && l.Status == model.LobbyWaiting && l.PlayerCount == 1 {
			open = append(open, l)
		}
	}
	if len(open) == 0 {
		return nil, apperr.New(apperr.NotFound, "no open public lobby")
	}
	// Oldest lobby first, id as tie-break, so the pick is deterministic.
	sort.Slice(open, func(i, j int) bool {
		if open[i].CreatedAt.Equal(open[j].CreatedAt) {
			return open[i].ID < open[j].ID
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	return open[0].Clone(), nil
}

func (s *MemoryRooms) FindWaitingByCode(ctx context.Context, code string) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lobbies {
		if l.Code == code && l.Status == model.LobbyWaiting {
			return l.Clone(), nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "lobby not found")
}

func (s *MemoryRooms) ListPublicWaiting(ctx context.Context) ([]*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Lobby
	for _, l := range s.lobbies {
		if !l.IsPrivate && l.Status == model.LobbyWaiting {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryRooms) CreateMatch(ctx context.Context, m *model.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m.Clone()
	return nil
}

func (s *MemoryRooms) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "game not found")
	}
	return m.Clone(), nil
}

func (s *MemoryRooms) UpdateMatch(ctx context.Context, id string, mutate func(*model.Match) error) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "game not found")
	}
	next := m.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.matches[id] = next
	return next.Clone(), nil
}
