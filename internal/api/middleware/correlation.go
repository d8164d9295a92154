package middleware

import (
	"net/http"

	"github.com/rs/xid"

	"github.com/darmiel/insurelink/internal/logging"
)

// CorrelationIDMiddleware takes the correlation id from the request or creates one,
// echoes it in the response and stores it in the request context.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(logging.CorrelationIDHeader)
		if id == "" {
			id = xid.New().String()
		}
		w.Header().Set(logging.CorrelationIDHeader, id)

		ctx := logging.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
