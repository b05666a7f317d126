package handlers

import (
	"net/http"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/services"
)

type LedgerHandler struct {
	Ledger *services.LedgerService
}

func NewLedgerHandler(ls *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{Ledger: ls}
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	acc, err := h.Ledger.Balance(r.Context(), uid)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, acc)
}

// Entries lists the caller's entries newest first, optionally filtered by ?kind=.
func (h *LedgerHandler) Entries(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var kind *models.EntryKind
	if v := r.URL.Query().Get("kind"); v != "" {
		k, err := models.ParseEntryKind(v)
		if err != nil {
			httpx.WriteAppError(w, apperr.Wrap(apperr.KindInvalidInput, err.Error(), err))
			return
		}
		kind = &k
	}
	limit, offset := page(r)
	list, err := h.Ledger.Entries(r.Context(), uid, kind, limit, offset)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}
