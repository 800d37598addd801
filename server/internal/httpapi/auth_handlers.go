package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/auth"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, apperr.New(apperr.InvalidOperation, "username, email and password are required"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	user := &model.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.users.CreateUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		a.log.Error("token generation failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := a.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// Same answer for unknown email and wrong password.
		writeError(w, apperr.New(apperr.InvalidOperation, "invalid credentials"))
		return
	}

	token, err := a.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		a.log.Error("token generation failed", zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": requestUser(r)})
}
