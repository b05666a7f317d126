package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/api/httpx"
)

func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic",
						zap.Any("err", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", RequestIDFrom(r.Context())),
						zap.Stack("stack"),
					)
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
