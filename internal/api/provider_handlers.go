package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/api/presenter"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/retry"
)

// ProviderSummary is a registered provider as reported by the API. Transport and
// encryption options are omitted since they may hold secrets.
type ProviderSummary struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Endpoint   string               `json:"endpoint"`
	APIVersion string               `json:"api_version"`
	Transport  string               `json:"transport"`
	Encryption string               `json:"encryption"`
	RateLimit  core.RateLimitPolicy `json:"rate_limit"`
	State      string               `json:"state"`
	Sync       core.SyncStatus      `json:"sync"`
}

type SyncPayload struct {
	DataTypes []core.DataType `json:"data_types"`
}

type RetriesResponse struct {
	Pending []retry.Entry `json:"pending"`
	Failed  []retry.Entry `json:"failed"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

func (s *Server) summary(id string) (ProviderSummary, error) {
	sync, err := s.registry.GetSyncStatus(id)
	if err != nil {
		return ProviderSummary{}, err
	}
	inst, err := s.registry.Get(id)
	if err != nil {
		return ProviderSummary{}, err
	}
	cfg := inst.Config
	return ProviderSummary{
		ID:         cfg.ID,
		Name:       cfg.Name,
		Endpoint:   cfg.Endpoint,
		APIVersion: cfg.APIVersion,
		Transport:  cfg.Transport.Type,
		Encryption: cfg.Encryption.Type,
		RateLimit:  cfg.EffectiveRateLimit(),
		State:      string(inst.Auth.State()),
		Sync:       sync,
	}, nil
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	list := make([]ProviderSummary, 0)
	for _, cfg := range s.registry.List() {
		sum, err := s.summary(cfg.ID)
		if err != nil {
			// removed in the meantime
			continue
		}
		list = append(list, sum)
	}
	presenter.JSON(w, r, list, http.StatusOK)
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	sum, err := s.summary(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, sum, http.StatusOK)
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := DecodePayload(r, &creds, false); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("failed to decode credentials")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	tok, err := s.registry.Authenticate(r.Context(), r.PathValue("id"), creds)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, tokenInfo(tok), http.StatusOK)
}

func (s *Server) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.TokenInfo(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, info, http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	tok, err := s.registry.RefreshToken(r.Context(), r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, tokenInfo(tok), http.StatusOK)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RevokeToken(r.Context(), r.PathValue("id")); err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, StatusResponse{Status: "revoked"}, http.StatusOK)
}

func (s *Server) handleSynchronize(w http.ResponseWriter, r *http.Request) {
	var payload SyncPayload
	if err := DecodePayload(r, &payload, true /* allow empty */); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	res, err := s.registry.SynchronizeData(r.Context(), r.PathValue("id"), payload.DataTypes)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, res, http.StatusOK)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.GetSyncStatus(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, st, http.StatusOK)
}

func (s *Server) handleListRetries(w http.ResponseWriter, r *http.Request) {
	pending, failed, err := s.registry.PendingRetries(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, RetriesResponse{Pending: pending, Failed: failed}, http.StatusOK)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	report, err := s.registry.RetryFailedOperations(r.Context(), r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, report, http.StatusOK)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.registry.GetMetrics(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, m, http.StatusOK)
}

func (s *Server) handleErrorStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.registry.GetErrorStats(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, stats, http.StatusOK)
}

func (s *Server) handleCompliance(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.GetComplianceStatus(r.PathValue("id"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, st, http.StatusOK)
}

func (s *Server) handleRegisterProvider(w http.ResponseWriter, r *http.Request) {
	var cfg core.ProviderConfig
	if err := DecodePayload(r, &cfg, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := s.registry.Register(r.Context(), cfg); err != nil {
		presenter.Err(w, r, err)
		return
	}
	sum, err := s.summary(cfg.ID)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, sum, http.StatusCreated)
}

func (s *Server) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.Context(), r.PathValue("id")); err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, StatusResponse{Status: "removed"}, http.StatusOK)
}
