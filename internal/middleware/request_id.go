package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Bu pakette zaten ctxKey var; çakışmayı önlemek için farklı bir tip kullanıyoruz.
type reqIDKeyType struct{}

var requestIDKey reqIDKeyType

const requestIDHeader = "X-Request-Id"

func RequestIDFrom(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

// RequestID reuses a well-formed incoming X-Request-Id, otherwise issues a new uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		// SADECE header + context; body'ye yazmıyoruz
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
