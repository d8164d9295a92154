package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/api/presenter"
	"github.com/darmiel/insurelink/internal/logging"
)

const providersPrefix = "/v1/providers/"

// providerFromPath returns the provider id of provider routes, or "".
func providerFromPath(path string) string {
	rest, ok := strings.CutPrefix(path, providersPrefix)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}

// LoggingMiddleware puts a request scoped logger into the context and logs every
// handled request. Provider routes carry the provider id, so one provider's traffic
// can be filtered out of the shared log.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lc := log.With().
			Str("correlation_id", logging.CorrelationCtx(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr)
		if id := providerFromPath(r.URL.Path); id != "" {
			lc = lc.Str("provider", id)
		}
		l := lc.Logger()

		ww := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(l.WithContext(r.Context())))

		var ev *zerolog.Event
		switch {
		case ww.statusCode >= 500:
			ev = l.Warn()
		case r.URL.Path == "/healthz":
			ev = l.Debug()
		default:
			ev = l.Info()
		}
		ev.Int("status", ww.statusCode).
			Int("bytes", ww.written).
			Dur("duration", time.Since(start)).
			Msg("request.handled")
	})
}

func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Ctx(r.Context()).Error().
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("panic.recovered")

				presenter.Error(w, r, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}
