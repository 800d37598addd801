package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

const (
	lobbyPrefix      = "lobby:"
	matchPrefix      = "match:"
	codePrefix       = "lobby:code:"
	setPublicWaiting = "lobbies:public:waiting"
	setPublicOpen    = "lobbies:public:open"

	maxTxRetries = 8
)

// RedisRooms stores lobbies and matches as JSON documents and keeps index
// sets for the matchmaking queries. Document mutations run inside
// WATCH/MULTI optimistic transactions so concurrent writers never lose an
// update.
type RedisRooms struct {
	rdb *redis.Client
}

func NewRedisRooms(rdb *redis.Client) *RedisRooms {
	return &RedisRooms{rdb: rdb}
}

func (r *RedisRooms) CreateLobby(ctx context.Context, l *model.Lobby) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return err
	}
	if l.IsPrivate && l.Code != "" {
		ok, err := r.rdb.SetNX(ctx, codePrefix+l.Code, l.ID, 0).Result()
		if err != nil {
			return apperr.Wrap(apperr.Transient, "store unavailable", err)
		}
		if !ok {
			return ErrCodeTaken
		}
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lobbyPrefix+l.ID, raw, 0)
		indexLobby(ctx, pipe, l)
		return nil
	})
	if err != nil {
		return apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	return nil
}

func (r *RedisRooms) GetLobby(ctx context.Context, id string) (*model.Lobby, error) {
	raw, err := r.rdb.Get(ctx, lobbyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.New(apperr.NotFound, "lobby not found")
		}
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	var l model.Lobby
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *RedisRooms) UpdateLobby(ctx context.Context, id string, mutate func(*model.Lobby) error) (*model.Lobby, error) {
	key := lobbyPrefix + id
	var updated *model.Lobby

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return apperr.New(apperr.NotFound, "lobby not found")
				}
				return apperr.Wrap(apperr.Transient, "store unavailable", err)
			}
			var l model.Lobby
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			if err := mutate(&l); err != nil {
				return err
			}
			out, err := json.Marshal(&l)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				indexLobby(ctx, pipe, &l)
				return nil
			})
			if err == nil {
				updated = &l
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, apperr.New(apperr.Transient, "lobby update contention")
}

func (r *RedisRooms) DeleteLobby(ctx context.Context, id string) error {
	key := lobbyPrefix + id
	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return apperr.Wrap(apperr.Transient, "store unavailable", err)
			}
			var l model.Lobby
			if err := json.Unmarshal(raw, &l); err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.SRem(ctx, setPublicWaiting, id)
				pipe.SRem(ctx, setPublicOpen, id)
				if l.Code != "" {
					pipe.Del(ctx, codePrefix+l.Code)
				}
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return apperr.New(apperr.Transient, "lobby delete contention")
}

func (r *RedisRooms) FindOpenPublicLobby(ctx context.Context) (*model.Lobby, error) {
	ids, err := r.rdb.SMembers(ctx, setPublicOpen).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	for _, id := range ids {
		l, err := r.GetLobby(ctx, id)
		if apperr.Is(err, apperr.NotFound) {
			// Stale index entry left by a deleted lobby.
			r.rdb.SRem(ctx, setPublicOpen, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !l.IsPrivate && l.Status == model.LobbyWaiting && l.PlayerCount == 1 {
			return l, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "no open public lobby")
}

func (r *RedisRooms) FindWaitingByCode(ctx context.Context, code string) (*model.Lobby, error) {
	id, err := r.rdb.Get(ctx, codePrefix+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.New(apperr.NotFound, "lobby not found")
		}
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	l, err := r.GetLobby(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.Code != code || l.Status != model.LobbyWaiting {
		return nil, apperr.New(apperr.NotFound, "lobby not found")
	}
	return l, nil
}

func (r *RedisRooms) ListPublicWaiting(ctx context.Context) ([]*model.Lobby, error) {
	ids, err := r.rdb.SMembers(ctx, setPublicWaiting).Result()
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	out := make([]*model.Lobby, 0, len(ids))
	for _, id := range ids {
		l, err := r.GetLobby(ctx, id)
		if apperr.Is(err, apperr.NotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !l.IsPrivate && l.Status == model.LobbyWaiting {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *RedisRooms) CreateMatch(ctx context.Context, m *model.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, matchPrefix+m.ID, raw, 0).Err(); err != nil {
		return apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	return nil
}

func (r *RedisRooms) GetMatch(ctx context.Context, id string) (*model.Match, error) {
	raw, err := r.rdb.Get(ctx, matchPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.New(apperr.NotFound, "game not found")
		}
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	var m model.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *RedisRooms) UpdateMatch(ctx context.Context, id string, mutate func(*model.Match) error) (*model.Match, error) {
	key := matchPrefix + id
	var updated *model.Match

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return apperr.New(apperr.NotFound, "game not found")
				}
				return apperr.Wrap(apperr.Transient, "store unavailable", err)
			}
			var m model.Match
			if err := json.Unmarshal(raw, &m); err != nil {
				return err
			}
			if err := mutate(&m); err != nil {
				return err
			}
			out, err := json.Marshal(&m)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				return nil
			})
			if err == nil {
				updated = &m
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, apperr.New(apperr.Transient, "match update contention")
}

// indexLobby keeps the matchmaking index sets in step with the document.
func indexLobby(ctx context.Context, pipe redis.Pipeliner, l *model.Lobby) {
	if !l.IsPrivate && l.Status == model.LobbyWaiting {
		pipe.SAdd(ctx, setPublicWaiting, l.ID)
	} else {
		pipe.SRem(ctx, setPublicWaiting, l.ID)
	}
	// A matchable lobby always has exactly one seated player; count 0 is an
	// abandoned lobby awaiting deletion.
	if !l.IsPrivate && l.Status == model.LobbyWaiting && l.PlayerCount == 1 {
		pipe.SAdd(ctx, setPublicOpen, l.ID)
	} else {
		pipe.SRem(ctx, setPublicOpen, l.ID)
	}
	if l.Code != "" && l.Status != model.LobbyWaiting {
		pipe.Del(ctx, codePrefix+l.Code)
	}
}
