package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

// UserStore owns identity records and their statistics sub-record. Stat
// accrual is an atomic per-identity read-modify-write: two concurrent
// settlements may interleave across identities but each identity's counters
// stay internally consistent.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	RecordResult(ctx context.Context, userID string, won bool) error
}

const userSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            VARCHAR(64)  PRIMARY KEY,
	username      VARCHAR(64)  NOT NULL,
	email         VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	wins          INT NOT NULL DEFAULT 0,
	losses        INT NOT NULL DEFAULT 0,
	games_played  INT NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE KEY uq_users_email (email),
	UNIQUE KEY uq_users_username (username)
)`

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Wins         int       `db:"wins"`
	Losses       int       `db:"losses"`
	GamesPlayed  int       `db:"games_played"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Stats: model.Stats{
			Wins:        r.Wins,
			Losses:      r.Losses,
			GamesPlayed: r.GamesPlayed,
		},
		CreatedAt: r.CreatedAt,
	}
}

type MySQLUsers struct {
	db *sqlx.DB
}

func NewMySQLUsers(db *sqlx.DB) *MySQLUsers {
	return &MySQLUsers{db: db}
}

func (s *MySQLUsers) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, userSchema)
	return err
}

func (s *MySQLUsers) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, wins, losses, games_played, created_at)
		 VALUES (?, ?, ?, ?, 0, 0, 0, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return apperr.New(apperr.InvalidOperation, "user already exists")
		}
		return apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	return nil
}

func (s *MySQLUsers) GetUser(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	return row.toModel(), nil
}

func (s *MySQLUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	return row.toModel(), nil
}

func (s *MySQLUsers) RecordResult(ctx context.Context, userID string, won bool) error {
	wins, losses := 0, 1
	if won {
		wins, losses = 1, 0
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET wins = wins + ?, losses = losses + ?, games_played = games_played + 1 WHERE id = ?`,
		wins, losses, userID)
	if err != nil {
		return apperr.Wrap(apperr.Transient, "store unavailable", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "user not found")
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// MemoryUsers is the process-local fallback.
type MemoryUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*model.User)}
}

func (s *MemoryUsers) CreateUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Email == u.Email || other.Username == u.Username {
			return apperr.New(apperr.InvalidOperation, "user already exists")
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryUsers) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUsers) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "user not found")
}

func (s *MemoryUsers) RecordResult(ctx context.Context, userID string, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.New(apperr.NotFound, "user not found")
	}
	if won {
		u.Stats.Wins++
	} else {
		u.Stats.Losses++
	}
	u.Stats.GamesPlayed++
	return nil
}
