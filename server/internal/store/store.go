// Package store is the persistence layer: lobby and match documents live in
// a key-value document store (Redis in production), user accounts and their
// statistics in MySQL. Every mutation of a shared document goes through a
// per-document atomic read-modify-write; plain read-then-write is not
// exposed.
package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/server/internal/config"
)

type Store struct {
	Redis *redis.Client
	MySQL *sqlx.DB
	Rooms RoomStore
	Users UserStore
	Idem  Idempotency
	log   *zap.Logger
}

// NewStore wires the configured backends, falling back to in-memory
// implementations when a backend is absent or unreachable so the server can
// run standalone in development.
func NewStore(cfg config.Config, log *zap.Logger) (*Store, error) {
	s := &Store{log: log}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, using memory room store", zap.Error(err))
		} else {
			s.Redis = rdb
		}
	}

	if cfg.MySQLDSN != "" {
		db, err := sqlx.Connect("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Warn("mysql connect failed, using memory user store", zap.Error(err))
		} else {
			s.MySQL = db
		}
	}

	if s.Redis != nil {
		s.Rooms = NewRedisRooms(s.Redis)
		s.Idem = NewRedisIdem(s.Redis)
	} else {
		s.Rooms = NewMemoryRooms()
		s.Idem = NewMemoryIdem()
	}

	if s.MySQL != nil {
		users := NewMySQLUsers(s.MySQL)
		if err := users.Migrate(context.Background()); err != nil {
			return nil, err
		}
		s.Users = users
	} else {
		s.Users = NewMemoryUsers()
	}

	return s, nil
}

func (s *Store) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.MySQL != nil {
		_ = s.MySQL.Close()
	}
}
