// Package httpapi exposes the request/response surface: account endpoints
// and the lobby matchmaking operations. Realtime traffic lives in netws.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/auth"
	"github.com/Rajthegreat123/strikas/server/internal/lobby"
	"github.com/Rajthegreat123/strikas/server/internal/model"
	"github.com/Rajthegreat123/strikas/server/internal/store"
)

type API struct {
	auth    *auth.Manager
	users   store.UserStore
	lobbies *lobby.Manager
	log     *zap.Logger
}

func New(auth *auth.Manager, users store.UserStore, lobbies *lobby.Manager, log *zap.Logger) *API {
	return &API{auth: auth, users: users, lobbies: lobbies, log: log}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Get("/profile", a.handleProfile)
			r.Get("/verify", a.handleProfile)
		})
	})

	r.Route("/api/game", func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Post("/lobby/public", a.handlePublicLobby)
		r.Post("/lobby", a.handleCreateLobby)
		r.Post("/lobby/join-by-code", a.handleJoinByCode)
		r.Get("/lobby/{id}", a.handleGetLobby)
		r.Get("/lobbies", a.handleListLobbies)
		r.Put("/stats", a.handleUpdateStats)
	})

	return r
}

type ctxKey int

const userKey ctxKey = 0

// requireAuth validates the bearer capability and attaches the resolved
// identity to the request context.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			writeError(w, apperr.New(apperr.Unauthenticated, "no auth token"))
			return
		}
		userID, err := a.auth.VerifyToken(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			writeError(w, err)
			return
		}
		user, err := a.users.GetUser(r.Context(), userID)
		if err != nil {
			writeError(w, apperr.New(apperr.Unauthenticated, "user not found"))
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestUser(r *http.Request) *model.User {
	u, _ := r.Context().Value(userKey).(*model.User)
	return u
}

func playerRef(u *model.User) model.PlayerRef {
	return model.PlayerRef{ID: u.ID, Username: u.Username}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.HTTPStatus(err), map[string]string{"message": apperr.Message(err)})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.New(apperr.InvalidOperation, "invalid request body")
	}
	return nil
}
