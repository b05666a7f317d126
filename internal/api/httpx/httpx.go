package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/baharkarakas/tokenledger/internal/apperr"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// StatusMap maps error kinds to HTTP statuses.
type StatusMap map[apperr.Kind]int

var DefaultStatus = StatusMap{
	apperr.KindInvalidInput:        http.StatusBadRequest,
	apperr.KindInvalidTx:           http.StatusBadRequest,
	apperr.KindNotFound:            http.StatusNotFound,
	apperr.KindWalletNotLinked:     http.StatusBadRequest,
	apperr.KindInsufficientBalance: http.StatusPaymentRequired,
	apperr.KindUnauthorized:        http.StatusUnauthorized,
	apperr.KindInternal:            http.StatusInternalServerError,
}

// With returns a copy of m with kind mapped to status.
func (m StatusMap) With(kind apperr.Kind, status int) StatusMap {
	out := make(StatusMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[kind] = status
	return out
}

func (m StatusMap) status(kind apperr.Kind) int {
	if s, ok := m[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WriteAppError writes err using DefaultStatus.
func WriteAppError(w http.ResponseWriter, err error) {
	DefaultStatus.Write(w, err)
}

// Write maps err through m. Internal errors never leak their cause.
func (m StatusMap) Write(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	var details interface{}
	var d detailer
	if errors.As(err, &d) {
		details = d.Details()
		kind = apperr.KindInvalidInput
	}
	msg := apperr.MessageOf(err)
	if details != nil {
		msg = "validation failed"
	}
	WriteError(w, m.status(kind), string(kind), msg, details)
}

// detailer is implemented by validation errors that carry per-field details.
type detailer interface {
	Details() any
}

const maxBody = 1 << 20

// DecodeJSON reads at most 1MB of JSON from r into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, "malformed JSON body", err)
	}
	return nil
}
