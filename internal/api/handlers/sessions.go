package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/api/validate"
	"github.com/baharkarakas/tokenledger/internal/services"
)

type SessionHandler struct {
	Sessions *services.SessionService
}

func NewSessionHandler(ss *services.SessionService) *SessionHandler {
	return &SessionHandler{Sessions: ss}
}

type startReq struct {
	Voice  string         `json:"voice,omitempty" validate:"max=64"`
	Locale string         `json:"locale,omitempty" validate:"max=16"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Start accepts an empty body.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req startReq
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteAppError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	sess, err := h.Sessions.Start(r.Context(), uid, services.SessionMeta{
		Voice:  req.Voice,
		Locale: req.Locale,
		Meta:   req.Meta,
	})
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sess)
}

type endReq struct {
	SessionID string `json:"sessionId" validate:"required"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=ENDED"`
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req endReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	sess, err := h.Sessions.EndSession(r.Context(), uid, req.SessionID)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	sess, err := h.Sessions.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, offset := page(r)
	list, err := h.Sessions.List(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}
