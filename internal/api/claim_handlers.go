package api

import (
	"net/http"

	"github.com/darmiel/insurelink/internal/api/presenter"
	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
)

func (s *Server) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	var claim core.Claim
	if err := DecodePayload(r, &claim, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	resp, err := s.registry.SubmitClaim(r.Context(), r.PathValue("id"), claim)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, resp, http.StatusCreated)
}

func (s *Server) handleClaimStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.GetClaimStatus(r.Context(), r.PathValue("id"), r.PathValue("claim"))
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, st, http.StatusOK)
}

func (s *Server) handleUpdateClaim(w http.ResponseWriter, r *http.Request) {
	var claim core.Claim
	if err := DecodePayload(r, &claim, false); err != nil {
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}
	claimID := r.PathValue("claim")
	if claim.ID == "" {
		claim.ID = claimID
	}
	if claim.ID != claimID {
		presenter.Error(w, r, "claim id in body does not match the path", http.StatusBadRequest)
		return
	}
	resp, err := s.registry.UpdateClaim(r.Context(), r.PathValue("id"), claim)
	if err != nil {
		presenter.Err(w, r, err)
		return
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}

func tokenInfo(tok core.AuthToken) core.TokenInfo {
	return audit.DescribeToken(tok)
}
