package handlers

import (
	"net/http"
	"strconv"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
	"github.com/baharkarakas/tokenledger/internal/middleware"
)

// currentUser returns the authenticated user id or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, ok := middleware.UserID(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing principal", nil)
		return "", false
	}
	return uid, true
}

// page reads limit/offset; bad values fall back to the service defaults.
func page(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
