package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/logging"
)

type ErrorResponse struct {
	Error         string         `json:"error"`
	Kind          core.ErrorKind `json:"kind,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	JSON(w, r, ErrorResponse{
		Error:         msg,
		CorrelationID: logging.CorrelationCtx(r.Context()),
	}, status)
}

// StatusFor maps an error kind to the HTTP status reported to clients.
func StatusFor(kind core.ErrorKind) int {
	switch kind {
	case core.KindProviderNotFound:
		return http.StatusNotFound
	case core.KindInvalidProviderConfig, core.KindInvalidClaim:
		return http.StatusBadRequest
	case core.KindInvalidCredentials, core.KindNoActiveToken:
		return http.StatusUnauthorized
	case core.KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case core.KindNoActiveSession, core.KindInvalidAuthResponse, core.KindInvalidResponse, core.KindNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Err writes err with the status of its kind. Errors without a kind are internal.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	var e *core.Error
	if !errors.As(err, &e) {
		log.Ctx(r.Context()).Error().Err(err).Msg("unclassified error")
		Error(w, r, "internal server error", http.StatusInternalServerError)
		return
	}
	status := StatusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	JSON(w, r, ErrorResponse{
		Error:         err.Error(),
		Kind:          e.Kind,
		Provider:      e.Provider,
		CorrelationID: logging.CorrelationCtx(r.Context()),
	}, status)
}
