package api

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	apperrors "github.com/yield-ledger/internal/errors"
)

type stakeRequest struct {
	Amount uint64 `json:"amount"`
}

// handleStake opens or tops up the caller's stake position.
func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderCallerAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req stakeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	summary, err := s.stakeService.Stake(r.Context(), caller, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, summary)
}

// handleUnstake fully exits the caller's position, paying principal plus
// any accrued rewards.
func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderCallerAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	payout, err := s.stakeService.Unstake(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holder": caller.Hex(),
		"payout": payout,
	})
}

// handleClaimRewards pays out accrued rewards without touching principal.
func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderCallerAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	rewards, err := s.stakeService.ClaimRewards(r.Context(), caller)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"holder":  caller.Hex(),
		"rewards": rewards,
	})
}

func (s *Server) handleStakeSummary(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		addrErr := apperrors.NewInvalidAddressError(raw)
		respondError(w, addrErr.StatusCode, addrErr.Code, addrErr.Message, addrErr.Details)
		return
	}

	respondJSON(w, http.StatusOK, s.stakeService.Summary(r.Context(), common.HexToAddress(raw)))
}

func (s *Server) handleGetStakingConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stakeService.Config(r.Context()))
}

type updateStakingConfigRequest struct {
	APYBasisPoints *uint64 `json:"apyBasisPoints"`
	LockPeriod     *string `json:"lockPeriod"`
	Paused         *bool   `json:"paused"`
}

// handleUpdateStakingConfig applies a partial update to the staking
// parameters. Omitted fields are left unchanged.
func (s *Server) handleUpdateStakingConfig(w http.ResponseWriter, r *http.Request) {
	caller, catErr := callerAddress(r, HeaderAdminAddress)
	if catErr != nil {
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
		return
	}

	var req updateStakingConfigRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error(), nil)
		return
	}

	var lockPeriod *time.Duration
	if req.LockPeriod != nil {
		d, err := time.ParseDuration(*req.LockPeriod)
		if err != nil || d < 0 {
			paramErr := apperrors.NewInvalidParameterError("lockPeriod", "must be a non-negative duration such as \"720h\"")
			respondError(w, paramErr.StatusCode, paramErr.Code, paramErr.Message, paramErr.Details)
			return
		}
		lockPeriod = &d
	}

	cfg, err := s.stakeService.UpdateConfig(r.Context(), caller, req.APYBasisPoints, lockPeriod, req.Paused)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}
