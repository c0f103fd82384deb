package ledger

import (
	"fmt"

	"github.com/yield-ledger/internal/types"
)

// Stable error codes reported by the ledger engines. The API layer maps
// these onto HTTP status codes; they are part of the external contract.
const (
	CodeSnapshotActive       = "SNAPSHOT_ACTIVE"
	CodeSnapshotNotActive    = "SNAPSHOT_NOT_ACTIVE"
	CodeSnapshotNotValidated = "SNAPSHOT_NOT_VALIDATED"
	CodeLengthMismatch       = "LENGTH_MISMATCH"
	CodeEmptyBatch           = "EMPTY_BATCH"
	CodeZeroAddress          = "ZERO_ADDRESS"
	CodeSupplyMismatch       = "SUPPLY_MISMATCH"
	CodeNoSnapshotData       = "NO_SNAPSHOT_DATA"
	CodeInsufficientReserve  = "INSUFFICIENT_RESERVE"
	CodeZeroAmount           = "ZERO_AMOUNT"
	CodeUnknownDistribution  = "UNKNOWN_DISTRIBUTION"
	CodeAlreadyCompleted     = "ALREADY_COMPLETED"
	CodeAlreadyClaimed       = "ALREADY_CLAIMED"
	CodeNothingToClaim       = "NOTHING_TO_CLAIM"
	CodeNoActiveStake        = "NO_ACTIVE_STAKE"
	CodeLockNotElapsed       = "LOCK_NOT_ELAPSED"
	CodeTransferFailed       = "TRANSFER_FAILED"
	CodeAPYTooHigh           = "APY_TOO_HIGH"
	CodeStakingPaused        = "STAKING_PAUSED"
	CodeUnauthorized         = "UNAUTHORIZED"
)

func errSnapshotActive() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeSnapshotActive,
		Message: "a snapshot capture is already in progress",
	}
}

func errSnapshotNotActive() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeSnapshotNotActive,
		Message: "no snapshot capture is in progress",
	}
}

func errLengthMismatch(holders, balances int) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeLengthMismatch,
		Message: fmt.Sprintf("holders and balances differ in length: %d vs %d", holders, balances),
		Details: map[string]interface{}{
			"holders":  holders,
			"balances": balances,
		},
	}
}

func errEmptyBatch() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeEmptyBatch,
		Message: "holder batch is empty",
	}
}

func errZeroAddress() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeZeroAddress,
		Message: "holder address must not be the zero address",
	}
}

func errSupplyMismatch(sum, supply uint64) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeSupplyMismatch,
		Message: fmt.Sprintf("recorded balances sum to %d, snapshot supply is %d", sum, supply),
		Details: map[string]interface{}{
			"balanceSum":  sum,
			"totalSupply": supply,
		},
	}
}

func errNoSnapshotData() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeNoSnapshotData,
		Message: "no validated snapshot with holder data is available",
	}
}

func errInsufficientReserve(requested, available uint64) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeInsufficientReserve,
		Message: fmt.Sprintf("requested %d exceeds undistributed reserve %d", requested, available),
		Details: map[string]interface{}{
			"requested": requested,
			"available": available,
		},
	}
}

func errZeroAmount() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeZeroAmount,
		Message: "amount must be greater than zero",
	}
}

func errUnknownDistribution(id uint64) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeUnknownDistribution,
		Message: fmt.Sprintf("distribution not found: %d", id),
		Details: map[string]interface{}{
			"distributionId": id,
		},
	}
}

func errAlreadyCompleted(id uint64) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeAlreadyCompleted,
		Message: fmt.Sprintf("distribution %d has already completed payout", id),
		Details: map[string]interface{}{
			"distributionId": id,
		},
	}
}

func errAlreadyClaimed(id uint64, holder string) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeAlreadyClaimed,
		Message: fmt.Sprintf("holder %s already claimed distribution %d", holder, id),
		Details: map[string]interface{}{
			"distributionId": id,
			"holder":         holder,
		},
	}
}

func errNothingToClaim() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeNothingToClaim,
		Message: "nothing to claim",
	}
}

func errNoActiveStake(holder string) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeNoActiveStake,
		Message: fmt.Sprintf("no active stake position for %s", holder),
		Details: map[string]interface{}{
			"holder": holder,
		},
	}
}

func errLockNotElapsed(remaining string) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeLockNotElapsed,
		Message: fmt.Sprintf("lock period has not elapsed, %s remaining", remaining),
		Details: map[string]interface{}{
			"remaining": remaining,
		},
	}
}

func errTransferFailed(cause error) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeTransferFailed,
		Message: fmt.Sprintf("token transfer failed: %v", cause),
	}
}

func errAPYTooHigh(requested, max uint64) *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeAPYTooHigh,
		Message: fmt.Sprintf("apy %d basis points exceeds maximum %d", requested, max),
		Details: map[string]interface{}{
			"requested": requested,
			"max":       max,
		},
	}
}

func errStakingPaused() *types.ServiceError {
	return &types.ServiceError{
		Code:    CodeStakingPaused,
		Message: "staking is paused",
	}
}

// ErrorCode extracts the stable code from a ledger error, or "" for
// errors that did not originate here.
func ErrorCode(err error) string {
	if svcErr, ok := err.(*types.ServiceError); ok {
		return svcErr.Code
	}
	return ""
}
