package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/yield-ledger/internal/errors"
)

// handleTakeSnapshot opens a new snapshot. The supply checkpoint is read
// from the token ledger, not the request.
func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	summary, err := s.yieldService.TakeSnapshot(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, summary)
}

type addHoldersRequest struct {
	Holders  []string `json:"holders"`
	Balances []uint64 `json:"balances"`
}

// handleAddHolders appends a batch of holder balances to the open snapshot.
func (s *Server) handleAddHolders(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req addHoldersRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	holders := make([]common.Address, 0, len(req.Holders))
	for _, raw := range req.Holders {
		if !common.IsHexAddress(raw) {
			addrErr := apperrors.NewInvalidAddressError(raw)
			respondError(w, addrErr.StatusCode, addrErr.Code, addrErr.Message, addrErr.Details)
			return
		}
		holders = append(holders, common.HexToAddress(raw))
	}

	summary, err := s.yieldService.AddHolders(r.Context(), caller, holders, req.Balances)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// handleValidateSnapshot seals the open snapshot after checking its sum
// against the checkpoint supply.
func (s *Server) handleValidateSnapshot(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	summary, err := s.yieldService.ValidateSnapshot(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCurrentSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.yieldService.CurrentSnapshot(r.Context()))
}
