package api

import (
	"net/http"
)

func (s *Server) handleGetReserve(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.yieldService.Reserve(r.Context()))
}

type depositRequest struct {
	Label  string `json:"label"`
	Amount uint64 `json:"amount"`
}

// handleDeposit moves value from the caller into the yield reserve.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req depositRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	view, err := s.yieldService.Deposit(r.Context(), caller, req.Label, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, view)
}

type withdrawRequest struct {
	Amount uint64 `json:"amount"`
}

// handleWithdraw returns undistributed reserve value to the admin.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req withdrawRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	view, err := s.yieldService.WithdrawReserve(r.Context(), caller, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}
