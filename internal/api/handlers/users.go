package handlers

import (
	"net/http"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/api/validate"
	"github.com/baharkarakas/tokenledger/internal/services"
)

type UserHandler struct {
	Users *services.UserService
}

func NewUserHandler(us *services.UserService) *UserHandler {
	return &UserHandler{Users: us}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.Users.Get(r.Context(), uid)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

type walletReq struct {
	Address string `json:"address" validate:"required,eth_addr"`
}

// LinkWallet binds the caller's receiving address for mint credits.
func (h *UserHandler) LinkWallet(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req walletReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	u, err := h.Users.LinkWallet(r.Context(), uid, req.Address)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// List is admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users)
}
