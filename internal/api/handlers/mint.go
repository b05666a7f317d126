package handlers

import (
	"net/http"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/api/validate"
	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/services"
)

// an unknown tx is a client problem here, not a missing resource
var mintStatus = httpx.DefaultStatus.With(apperr.KindNotFound, http.StatusBadRequest)

type MintHandler struct {
	Mint *services.MintService
}

func NewMintHandler(ms *services.MintService) *MintHandler {
	return &MintHandler{Mint: ms}
}

type mintReq struct {
	TxHash string `json:"txHash" validate:"required"`
}

func (h *MintHandler) Credit(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req mintReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		mintStatus.Write(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		mintStatus.Write(w, err)
		return
	}
	res, err := h.Mint.CreditFromMint(r.Context(), uid, req.TxHash)
	if err != nil {
		mintStatus.Write(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
