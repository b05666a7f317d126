package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/api/validate"
	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/services"
)

const SignatureHeader = "X-Signature"

type PaymentHandler struct {
	Payments *services.PaymentService
}

func NewPaymentHandler(ps *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Payments: ps}
}

// Webhook verifies the HMAC over the raw body before decoding anything.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		httpx.WriteAppError(w, apperr.Wrap(apperr.KindInvalidInput, "unreadable body", err))
		return
	}
	if err := h.Payments.VerifySignature(body, r.Header.Get(SignatureHeader)); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	var ev services.PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		httpx.WriteAppError(w, apperr.Wrap(apperr.KindInvalidInput, "malformed JSON body", err))
		return
	}
	if err := validate.Struct(ev); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	res, err := h.Payments.Credit(r.Context(), ev)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
