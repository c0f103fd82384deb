package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	apperrors "github.com/yield-ledger/internal/errors"
)

type createDistributionRequest struct {
	Amount uint64 `json:"amount"`
}

// handleCreateDistribution allocates reserve value across the validated
// snapshot's holders.
func (s *Server) handleCreateDistribution(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req createDistributionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	view, err := s.yieldService.CreateDistribution(r.Context(), caller, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	id, catErr := distributionID(r)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	view, err := s.yieldService.GetDistribution(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handlePayout pushes a distribution's unpaid shares to their holders.
// Failed transfers are reported, not fatal; the call can be repeated.
func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	id, catErr := distributionID(r)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	result, err := s.yieldService.Payout(r.Context(), caller, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleClaim lets a holder pull their own share of a distribution.
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderCallerAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	id, catErr := distributionID(r)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	amount, err := s.yieldService.Claim(r.Context(), caller, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"distributionId": id,
		"holder":         caller.Hex(),
		"amount":         amount,
	})
}

// handleClaimable reports the total unclaimed amount across all
// distributions for one holder.
func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		addrErr := apperrors.NewInvalidAddressError(raw)
		respondError(w, addrErr.StatusCode, addrErr.Code, addrErr.Message, addrErr.Details)
		return
	}
	holder := common.HexToAddress(raw)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holder":    holder.Hex(),
		"claimable": s.yieldService.Claimable(r.Context(), holder),
	})
}

func distributionID(r *http.Request) (uint64, *apperrors.CategorizedError) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.NewInvalidParameterError("id", "must be a positive integer")
	}
	return id, nil
}
