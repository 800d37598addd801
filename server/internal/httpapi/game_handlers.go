package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rajthegreat123/strikas/server/internal/apperr"
	"github.com/Rajthegreat123/strikas/server/internal/model"
)

func (a *API) handlePublicLobby(w http.ResponseWriter, r *http.Request) {
	l, err := a.lobbies.JoinOrCreatePublic(r.Context(), playerRef(requestUser(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleCreateLobby(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsPrivate bool `json:"isPrivate"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, err := a.lobbies.Create(r.Context(), playerRef(requestUser(r)), req.IsPrivate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	l, err := a.lobbies.JoinByCode(r.Context(), playerRef(requestUser(r)), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	l, err := a.lobbies.Get(r.Context(), requestUser(r).ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleListLobbies(w http.ResponseWriter, r *http.Request) {
	lobbies, err := a.lobbies.ListPublic(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*model.Lobby{"lobbies": lobbies})
}

func (a *API) handleUpdateStats(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result string `json:"result"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Result != "win" && req.Result != "loss" {
		writeError(w, apperr.New(apperr.InvalidOperation, "result must be win or loss"))
		return
	}
	if err := a.users.RecordResult(r.Context(), requestUser(r).ID, req.Result == "win"); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Stats updated successfully"})
}
